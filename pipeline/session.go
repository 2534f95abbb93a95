package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"focus-pipeline/models"
)

const DefaultRefreshInterval = 30 * time.Second

var ErrSessionClosed = errors.New("session closed")

// Sink receives completed snapshots. Visible is false for background
// refreshes that should not show progress to the user.
type Sink func(snap models.Snapshot, visible bool)

// Refresher is the part of Pipeline a Session drives.
type Refresher interface {
	Refresh(ctx context.Context, req Request) (models.Snapshot, error)
}

// Session binds periodic and user-triggered refreshes to one consumer.
// Results that complete after Close, or after a newer generation started,
// are dropped.
type Session struct {
	refresher Refresher
	userID    string
	interval  time.Duration
	sink      Sink
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	generation uint64
	intake     models.Intake
	started    bool
	closed     bool

	busy atomic.Bool
	wg   sync.WaitGroup
}

func NewSession(r Refresher, userID string, interval time.Duration, sink Sink, logger *slog.Logger) *Session {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		refresher: r,
		userID:    userID,
		interval:  interval,
		sink:      sink,
		logger:    logger.With("user_id", userID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs an initial refresh and then a silent refresh every interval
// until ctx is done or the session is closed. It does not block.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.started {
		return nil
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancel()
		s.loop(runCtx)
	}()
	return nil
}

func (s *Session) loop(ctx context.Context) {
	if s.busy.CompareAndSwap(false, true) {
		s.run(ctx, models.TriggerUser)
		s.busy.Store(false)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.busy.CompareAndSwap(false, true) {
				skippedTicksTotal.Inc()
				s.logger.Debug("tick skipped, refresh in flight")
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.busy.Store(false)
				s.run(ctx, models.TriggerPeriodic)
			}()
		}
	}
}

// RefreshNow runs a visible refresh with the given intake. Once the refresh
// is accepted the intake is kept for later periodic refreshes; a call
// rejected with models.ErrRefreshInProgress leaves it unchanged.
func (s *Session) RefreshNow(ctx context.Context, intake models.Intake) (models.Snapshot, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return models.Snapshot{}, ErrSessionClosed
	}

	if !s.busy.CompareAndSwap(false, true) {
		return models.Snapshot{}, models.ErrRefreshInProgress
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	s.intake = intake.Clone()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.run(ctx, models.TriggerUser)
}

func (s *Session) run(ctx context.Context, trigger models.Trigger) (models.Snapshot, error) {
	s.mu.Lock()
	gen := s.generation
	intake := s.intake.Clone()
	s.mu.Unlock()

	snap, err := s.refresher.Refresh(ctx, Request{UserID: s.userID, Trigger: trigger, Intake: intake})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRefreshInProgress):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.logger.Debug("refresh abandoned", "trigger", string(trigger), "err", err)
		default:
			s.logger.Warn("refresh failed", "trigger", string(trigger), "err", err)
		}
		return snap, err
	}

	s.mu.Lock()
	current := !s.closed && s.generation == gen
	s.mu.Unlock()
	if !current {
		s.logger.Debug("dropping stale refresh result", "run_id", snap.RunID)
		return snap, nil
	}
	if s.sink != nil {
		s.sink(snap, trigger != models.TriggerPeriodic)
	}
	return snap, nil
}

// Invalidate starts a new generation so results of refreshes already in
// flight are not published.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// Close stops the ticker, cancels in-flight refreshes and waits for the
// background goroutines to exit. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
