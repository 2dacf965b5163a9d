package notification

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is one warning to deliver.
type Message struct {
	EmployeeName string    `json:"employee_name"`
	WarningType  string    `json:"warning_type"`
	Text         string    `json:"message"`
	RaisedAt     time.Time `json:"raised_at"`
}

// Sink delivers a message over one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// WorkerPool manages a pool of workers that fan warnings out to every sink.
type WorkerPool struct {
	size  int
	jobs  chan Message
	sinks []Sink
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewWorkerPool creates a new worker pool delivering to sinks.
func NewWorkerPool(size int, log logrus.FieldLogger, sinks ...Sink) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:  size,
		jobs:  make(chan Message, size*16),
		sinks: sinks,
		log:   log.WithField("component", "notification"),
		now:   time.Now,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.WithField("worker", id)
	log.Debug("worker started")
	for {
		select {
		case msg := <-wp.jobs:
			wp.deliver(ctx, log, msg)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Notify queues a warning for delivery. It blocks only until the job is
// queued or ctx is done.
func (wp *WorkerPool) Notify(ctx context.Context, employeeName, warningType, message string) error {
	msg := Message{EmployeeName: employeeName, WarningType: warningType, Text: message, RaisedAt: wp.now()}
	select {
	case wp.jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Message {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, log logrus.FieldLogger, msg Message) {
	for _, sink := range wp.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"sink":         sink.Name(),
				"warning_type": msg.WarningType,
			}).Warn("failed to deliver warning")
		}
	}
}
