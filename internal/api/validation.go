package api

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"zeiterfassung-backend/internal/parse"
)

var registerOnce sync.Once

// RegisterValidators adds the "hhmm" and "weekday" tags to gin's validator.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err = v.RegisterValidation("hhmm", validHHMM); err != nil {
			return
		}
		err = v.RegisterValidation("weekday", validWeekday)
	})
	return err
}

func validHHMM(fl validator.FieldLevel) bool {
	_, err := parse.Clock(fl.Field().String())
	return err == nil
}

func validWeekday(fl validator.FieldLevel) bool {
	d := fl.Field().Int()
	return d >= 0 && d <= 6
}
