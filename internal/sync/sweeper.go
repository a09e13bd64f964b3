// Package sync runs the periodic reminder sweep and reports each run to
// the UI as a tea.Msg.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/alerts"
)

// SweepState is the state of the sweeper.
type SweepState int

const (
	SweepIdle SweepState = iota
	SweepRunning
	SweepError
)

// SweepStatus is a copy of the sweeper's state.
type SweepStatus struct {
	State   SweepState
	LastRun time.Time
	Error   error
}

// SweepResultMsg is a tea.Msg sent when a sweep completes.
type SweepResultMsg struct {
	Reminders      alerts.Summary
	PostsAnnounced int
	At             time.Time
	Error          error
}

// ReminderSweeper sends due deliverable reminders. *alerts.Aggregator
// satisfies it.
type ReminderSweeper interface {
	Sweep(ctx context.Context, now time.Time) (alerts.Summary, error)
}

// PostSweeper announces posts about to go out. *posts.Notifier
// satisfies it.
type PostSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// sweepTimeout is the maximum time allowed for one sweep.
const sweepTimeout = 60 * time.Second

// Sweeper runs both sweeps on a cron schedule. Runs never overlap; a
// tick that arrives while a run is in progress is skipped.
type Sweeper struct {
	schedule  string
	reminders ReminderSweeper
	posts     PostSweeper
	log       *zap.Logger
	now       func() time.Time

	cron     *cron.Cron
	resultCh chan SweepResultMsg

	mu      gosync.Mutex
	running bool
	busy    bool
	status  SweepStatus
}

// New creates a Sweeper for the cron spec schedule, e.g. "@every 15m".
// posts may be nil.
func New(schedule string, reminders ReminderSweeper, posts PostSweeper, log *zap.Logger) (*Sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		schedule:  schedule,
		reminders: reminders,
		posts:     posts,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		cron:      cron.New(),
		resultCh:  make(chan SweepResultMsg, 16),
	}, nil
}

// Start schedules the sweep and returns a tea.Cmd that waits for the
// first result.
func (s *Sweeper) Start() tea.Cmd {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		s.log.Error("scheduling sweep", zap.Error(err))
		return nil
	}
	s.cron.Start()
	s.log.Info("reminder sweep scheduled", zap.String("schedule", s.schedule))
	return s.waitForResult()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// Trigger runs a sweep now, in the background.
func (s *Sweeper) Trigger() tea.Cmd {
	go s.run()
	return nil
}

// Status returns the sweeper's current state.
func (s *Sweeper) Status() SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sweeper) run() {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.log.Debug("sweep already running, skipping")
		return
	}
	s.busy = true
	s.status.State = SweepRunning
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := s.now()
	msg := SweepResultMsg{At: now}
	msg.Reminders, msg.Error = s.reminders.Sweep(ctx, now)
	if msg.Error == nil && s.posts != nil {
		msg.PostsAnnounced, msg.Error = s.posts.Sweep(ctx, now)
	}

	s.mu.Lock()
	s.busy = false
	s.status.Error = msg.Error
	if msg.Error != nil {
		s.status.State = SweepError
	} else {
		s.status.State = SweepIdle
		s.status.LastRun = now
	}
	s.mu.Unlock()

	if msg.Error != nil {
		s.log.Warn("sweep failed", zap.Error(msg.Error))
	} else {
		s.log.Info("sweep finished",
			zap.Int("sent", msg.Reminders.Sent),
			zap.Int("duplicates", msg.Reminders.SkippedDuplicate),
			zap.Int("no_account", msg.Reminders.SkippedNoAccount),
			zap.Int("failed", msg.Reminders.Failed),
			zap.Int("posts_announced", msg.PostsAnnounced),
		)
	}
	s.sendResult(msg)
}

// sendResult sends msg on the result channel without blocking.
func (s *Sweeper) sendResult(msg SweepResultMsg) {
	select {
	case s.resultCh <- msg:
	default:
		// Drop if the UI is not keeping up.
	}
}

func (s *Sweeper) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-s.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sweep
// result. Call it again after handling each SweepResultMsg.
func (s *Sweeper) WaitForNextResult() tea.Cmd {
	return s.waitForResult()
}
