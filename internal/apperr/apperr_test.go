package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		notFound     bool
		invalidState bool
		validation   bool
	}{
		{name: "not found", err: NotFound("employee %d", 4), notFound: true},
		{name: "invalid state", err: InvalidState("no active entry"), invalidState: true},
		{name: "validation", err: Validation("bad time %q", "25:00"), validation: true},
		{name: "forbidden is invalid state", err: fmt.Errorf("approve: %w", ErrForbidden), invalidState: true},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.notFound, IsNotFound(tc.err))
			assert.Equal(t, tc.invalidState, IsInvalidState(tc.err))
			assert.Equal(t, tc.validation, IsValidation(tc.err))
		})
	}
}

func TestMessageKeepsContext(t *testing.T) {
	err := NotFound("shift %d", 12)
	assert.Equal(t, "not found: shift 12", err.Error())
}
