package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_GetEmployee(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedName     string
		expectNotFound   bool
	}{
		{
			name: "Employee exists",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "employees" WHERE "employees"."id" = $1 ORDER BY "employees"."id" LIMIT $2`)).
					WithArgs(7, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "category", "active"}).
						AddRow(7, "Anna", "Schmidt", "A", true))
			},
			expectedName: "Anna Schmidt",
		},
		{
			name: "Employee missing maps to not found",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "employees" WHERE "employees"."id" = $1 ORDER BY "employees"."id" LIMIT $2`)).
					WithArgs(7, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectNotFound: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			tc.mockExpectations(mock)

			s := NewGormStore(gormDB)
			e, err := s.GetEmployee(context.Background(), 7)

			if tc.expectNotFound {
				assert.True(t, apperr.IsNotFound(err), "got %v", err)
				assert.Nil(t, e)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedName, e.FullName())
				assert.Equal(t, model.CategoryA, e.Category)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_ListOpenEntries(t *testing.T) {
	gormDB, mock := newTestDB(t)
	checkIn := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "time_entries" WHERE employee_id = $1 AND check_out IS NULL ORDER BY id DESC`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "employee_id", "site_id", "check_in", "check_out"}).
			AddRow(12, 5, 3, checkIn.Add(time.Hour), nil).
			AddRow(9, 5, 2, checkIn, nil))

	s := NewGormStore(gormDB)
	entries, err := s.ListEntries(context.Background(), EntryFilter{EmployeeID: 5, OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(12), entries[0].ID)
	assert.True(t, entries[1].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_DeleteShiftMissing(t *testing.T) {
	gormDB, mock := newTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "shifts" WHERE "shifts"."id" = $1`)).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := NewGormStore(gormDB).DeleteShift(context.Background(), 3)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindWarning(t *testing.T) {
	gormDB, mock := newTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "warnings" WHERE employee_id = $1 AND warning_type = $2 AND is_resolved = $3 ORDER BY id DESC LIMIT $4`)).
		WithArgs(4, model.WarningNoShow, false, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "employee_id", "warning_type", "is_resolved"}).
			AddRow(31, 4, model.WarningNoShow, false))

	w, err := NewGormStore(gormDB).FindWarning(context.Background(), WarningFilter{
		EmployeeID:     4,
		Type:           model.WarningNoShow,
		UnresolvedOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(31), w.ID)
	assert.False(t, w.Resolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_TransactionRollsBack(t *testing.T) {
	gormDB, mock := newTestDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "warnings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	err := NewGormStore(gormDB).Transaction(context.Background(), func(tx Store) error {
		if err := tx.CreateWarning(context.Background(), &model.Warning{
			EmployeeID: 4,
			Type:       model.WarningNoShow,
			Message:    "missing",
		}); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SaveSubscription(t *testing.T) {
	gormDB, mock := newTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "push_subscriptions" ("endpoint","p256dh","auth","user_id","created_at") VALUES ($1,$2,$3,$4,$5) ON CONFLICT ("endpoint") DO UPDATE SET`)).
		WithArgs("https://push.example/abc", "key", "secret", 2, Any{}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := NewGormStore(gormDB).SaveSubscription(context.Background(), &model.PushSubscription{
		Endpoint: "https://push.example/abc",
		P256DH:   "key",
		Auth:     "secret",
		UserID:   2,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a custom matcher for sqlmock that matches any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
