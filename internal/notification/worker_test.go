package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/logging"
	"zeiterfassung-backend/internal/store"
)

// mockSender is a mock implementation of the PushSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type chanSink struct {
	got chan Message
	err error
}

func (s *chanSink) Name() string { return "chan" }

func (s *chanSink) Send(_ context.Context, msg Message) error {
	s.got <- msg
	return s.err
}

type mockMailer struct {
	sent []*gomail.Message
	err  error
}

func (m *mockMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.sent = append(m.sent, msgs...)
	return m.err
}

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

func TestWorkerPool_Notify(t *testing.T) {
	wp := NewWorkerPool(1, logging.Discard())

	require.NoError(t, wp.Notify(context.Background(), "Anna Schmidt", "no_show", "nicht erschienen"))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "Anna Schmidt", job.EmployeeName)
		assert.Equal(t, "no_show", job.WarningType)
		assert.False(t, job.RaisedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be queued")
	}
}

func TestWorkerPool_NotifyHonoursContext(t *testing.T) {
	wp := NewWorkerPool(1, logging.Discard())
	for i := 0; i < cap(wp.Jobs()); i++ {
		require.NoError(t, wp.Notify(context.Background(), "x", "no_show", "fill"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := wp.Notify(ctx, "x", "no_show", "dropped")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerPool_DeliversToEverySink(t *testing.T) {
	failing := &chanSink{got: make(chan Message, 1), err: errors.New("smtp down")}
	ok := &chanSink{got: make(chan Message, 1)}
	wp := NewWorkerPool(2, logging.Discard(), failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	require.NoError(t, wp.Notify(ctx, "Ben", "excessive_hours", "11h"))

	for _, s := range []*chanSink{failing, ok} {
		select {
		case msg := <-s.got:
			assert.Equal(t, "11h", msg.Text)
		case <-time.After(time.Second):
			t.Fatal("sink was not called")
		}
	}
}

func TestEmailSink(t *testing.T) {
	assert.Nil(t, NewEmailSink(config.EmailConfig{}), "no host disables mail")

	mailer := &mockMailer{}
	sink := &EmailSink{mailer: mailer, from: "zeit@example.com", to: []string{"buero@example.com", "chef@example.com"}}
	err := sink.Send(context.Background(), Message{
		EmployeeName: "Anna Schmidt",
		WarningType:  "no_show",
		Text:         "Anna Schmidt ist nicht erschienen",
		RaisedAt:     time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"buero@example.com", "chef@example.com"}, mailer.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Warnung no_show: Anna Schmidt"}, mailer.sent[0].GetHeader("Subject"))

	mailer.err = errors.New("refused")
	assert.Error(t, sink.Send(context.Background(), Message{}))
}

func TestWebPushSink(t *testing.T) {
	listQuery := regexp.QuoteMeta(`SELECT * FROM "push_subscriptions"`)
	subRows := func(endpoint string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "user_id", "created_at"}).
			AddRow(endpoint, "test_p256dh", "test_auth", 1, time.Now())
	}
	msg := Message{EmployeeName: "Anna", WarningType: "no_show", Text: "fehlt"}

	testCases := []struct {
		name       string
		endpoint   string
		status     int
		sendErr    error
		expectMore func(mock sqlmock.Sqlmock, endpoint string)
		wantErr    bool
	}{
		{
			name:     "sends warning payload",
			endpoint: "https://example.com/push",
			status:   http.StatusCreated,
		},
		{
			name:     "deletes expired subscription",
			endpoint: "https://example.com/expired",
			status:   http.StatusGone,
			expectMore: func(mock sqlmock.Sqlmock, endpoint string) {
				mock.ExpectBegin()
				mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE endpoint = \$1`).
					WithArgs(endpoint).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:     "reports transport failure",
			endpoint: "https://example.com/down",
			sendErr:  errors.New("connection refused"),
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			mock.ExpectQuery(listQuery).WillReturnRows(subRows(tc.endpoint))
			if tc.expectMore != nil {
				tc.expectMore(mock, tc.endpoint)
			}

			sink := NewWebPushSink(store.NewGormStore(gormDB), config.PushConfig{PublicKey: "pub", PrivateKey: "priv", Subject: "mailto:a@b.c"}, logging.Discard())
			require.NotNil(t, sink)
			sink.sender = &mockSender{
				SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
					assert.Equal(t, tc.endpoint, sub.Endpoint)
					assert.Equal(t, "pub", options.VAPIDPublicKey)
					var got Message
					require.NoError(t, json.Unmarshal(payload, &got))
					assert.Equal(t, msg.Text, got.Text)
					if tc.sendErr != nil {
						return nil, tc.sendErr
					}
					return &http.Response{StatusCode: tc.status, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
				},
			}

			err := sink.Send(context.Background(), msg)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSinks(t *testing.T) {
	cfg := config.Default().Notification
	assert.Len(t, Sinks(cfg, nil, logging.Discard()), 1)

	cfg.Email = config.EmailConfig{Host: "smtp.example.com", Port: 587, To: []string{"buero@example.com"}}
	cfg.Push = config.PushConfig{PublicKey: "pub", PrivateKey: "priv"}
	sinks := Sinks(cfg, nil, logging.Discard())
	require.Len(t, sinks, 3)
	assert.Equal(t, "email", sinks[1].Name())
	assert.Equal(t, "webpush", sinks[2].Name())
}
