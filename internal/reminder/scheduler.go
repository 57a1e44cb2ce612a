package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/store"
)

// Scheduler periodically scans for incomplete tasks and sends one reminder
// per distinct owner found in the scan. It alternates between two cadences:
// a long interval while the system has no incomplete tasks and a shorter one
// while reminders are being sent, so an idle deployment stays quiet.
type Scheduler struct {
	taskStore store.TaskStore
	userStore store.UserStore
	notifier  Notifier
	logger    *slog.Logger

	// emptyInterval is the delay before the next scan when the previous one
	// found no incomplete tasks; activeInterval applies otherwise.
	emptyInterval  time.Duration
	activeInterval time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a reminder scheduler. Both intervals must be positive.
func NewScheduler(
	taskStore store.TaskStore,
	userStore store.UserStore,
	notifier Notifier,
	emptyInterval, activeInterval time.Duration,
	logger *slog.Logger,
) (*Scheduler, error) {
	if taskStore == nil {
		return nil, errors.New("task store is required")
	}
	if userStore == nil {
		return nil, errors.New("user store is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if emptyInterval <= 0 || activeInterval <= 0 {
		return nil, errors.New("scheduler intervals must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		taskStore:      taskStore,
		userStore:      userStore,
		notifier:       notifier,
		emptyInterval:  emptyInterval,
		activeInterval: activeInterval,
		logger:         logger.With(slog.String("component", "reminder_scheduler")),
	}, nil
}

// Start launches the scheduler loop in its own goroutine. The first scan
// runs immediately; subsequent scans are re-armed with the delay the
// previous pass decided.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("reminder scheduler started",
		slog.Duration("empty_interval", s.emptyInterval),
		slog.Duration("active_interval", s.activeInterval))
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Single-shot timer re-armed after every pass. A ticker would fire on a
	// fixed cadence regardless of what the previous scan found.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(s.safeRunPass(ctx))
		}
	}
}

// safeRunPass shields the loop from a panicking pass; the scheduler keeps
// running on the idle cadence after logging the panic.
func (s *Scheduler) safeRunPass(ctx context.Context) (next time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("reminder pass panicked", slog.Any("panic", rec))
			next = s.emptyInterval
		}
	}()

	next, err := s.runPass(ctx)
	if err != nil {
		s.logger.Error("reminder pass failed", slog.String("error", err.Error()))
	}
	return next
}

// runPass performs one scan and returns the delay before the next one.
// Each distinct owner with at least one incomplete task gets exactly one
// reminder per pass, however many tasks they have open. A failure for one
// owner never blocks the rest of the pass.
func (s *Scheduler) runPass(ctx context.Context) (time.Duration, error) {
	tasks, err := s.taskStore.ListIncomplete(ctx)
	if err != nil {
		return s.emptyInterval, err
	}

	if len(tasks) == 0 {
		s.logger.Debug("no incomplete tasks, idling")
		return s.emptyInterval, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(tasks))
	var sent, failed int
	for _, task := range tasks {
		if _, dup := seen[task.OwnerID]; dup {
			continue
		}
		seen[task.OwnerID] = struct{}{}

		if err := s.notifyOwner(ctx, task.OwnerID); err != nil {
			failed++
			s.logger.Warn("failed to send reminder",
				slog.String("owner_id", task.OwnerID.String()),
				slog.String("error", err.Error()))
			continue
		}
		sent++
	}

	s.logger.Info("reminder pass complete",
		slog.Int("incomplete_tasks", len(tasks)),
		slog.Int("owners", len(seen)),
		slog.Int("sent", sent),
		slog.Int("failed", failed))

	return s.activeInterval, nil
}

func (s *Scheduler) notifyOwner(ctx context.Context, ownerID uuid.UUID) error {
	user, err := s.userStore.GetByID(ctx, ownerID)
	if err != nil {
		return err
	}
	return s.notifier.SendReminder(ctx, user.Email)
}
