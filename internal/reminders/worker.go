package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Dispatcher delivers or enqueues one reminder. *Sender sends inline and
// *SQSQueue enqueues.
type Dispatcher interface {
	Dispatch(ctx context.Context, reminderID string) error
}

// Report summarises one sweep over due reminders.
type Report struct {
	Due        int `json:"due"`
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Worker sweeps the store for due reminders and dispatches them.
type Worker struct {
	store      records.ReminderStore
	dispatcher Dispatcher
	logger     *logging.Logger
	wg         sync.WaitGroup
}

func NewWorker(store records.ReminderStore, dispatcher Dispatcher, logger *logging.Logger) *Worker {
	if store == nil {
		panic("reminders: store cannot be nil")
	}
	if dispatcher == nil {
		panic("reminders: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{store: store, dispatcher: dispatcher, logger: logger}
}

// ProcessDue dispatches every scheduled reminder due at or before now.
// Individual failures are counted and joined; the sweep continues.
func (w *Worker) ProcessDue(ctx context.Context, now time.Time) (Report, error) {
	due, err := w.store.ListDueReminders(ctx, now)
	if err != nil {
		return Report{}, err
	}
	report := Report{Due: len(due)}
	var errs []error
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		// a concurrent sweep may already own it
		claimed, err := w.store.TransitionReminder(ctx, r.ReminderID, []records.ReminderStatus{records.ReminderScheduled}, records.ReminderQueued)
		if err != nil {
			report.Failed++
			errs = append(errs, err)
			w.logger.Error("reminder claim failed", "reminder_id", r.ReminderID, "error", err)
			continue
		}
		if !claimed {
			report.Skipped++
			continue
		}
		if err := w.dispatcher.Dispatch(ctx, r.ReminderID); err != nil {
			report.Failed++
			errs = append(errs, err)
			w.logger.Error("reminder dispatch failed", "reminder_id", r.ReminderID, "error", err)
			w.release(r.ReminderID)
			continue
		}
		report.Dispatched++
	}
	if report.Due > 0 {
		w.logger.Info("reminder sweep complete", "due", report.Due, "dispatched", report.Dispatched, "failed", report.Failed)
	}
	return report, errors.Join(errs...)
}

// release returns a reminder whose dispatch failed to the next sweep.
func (w *Worker) release(reminderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.store.TransitionReminder(ctx, reminderID, []records.ReminderStatus{records.ReminderQueued}, records.ReminderScheduled); err != nil {
		w.logger.Warn("failed to release reminder", "reminder_id", reminderID, "error", err)
	}
}

// Start runs ProcessDue every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := w.ProcessDue(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn("reminder sweep had errors", "error", err)
			}
			select {
			case <-ctx.Done():
				w.logger.Debug("reminder worker stopping")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Wait blocks until the sweep loop and any consumers exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Consume receives delivery jobs from queue and sends them until ctx is
// cancelled. Jobs are deleted after a send attempt that did not error and
// after unparseable bodies.
func (w *Worker) Consume(ctx context.Context, queue *SQSQueue, sender *Sender) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		backoff := time.Second
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			messages, err := queue.Receive(ctx, 10, 20)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				w.logger.Error("failed to receive reminder jobs", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}
			backoff = time.Second
			for _, msg := range messages {
				w.handle(ctx, queue, sender, msg)
			}
		}
	}()
}

func (w *Worker) handle(ctx context.Context, queue *SQSQueue, sender *Sender, msg QueueMessage) {
	if msg.ReminderID == "" {
		w.logger.Warn("dropping malformed reminder job", "message_id", msg.ID)
	} else if _, err := sender.Send(ctx, msg.ReminderID); err != nil {
		w.logger.Error("reminder job failed", "reminder_id", msg.ReminderID, "error", err)
		return
	}
	if err := queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Error("failed to delete reminder job", "message_id", msg.ID, "error", err)
	}
}
