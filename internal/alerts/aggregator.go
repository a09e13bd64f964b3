// Package alerts derives overdue-deliverable and upcoming-deadline alerts
// and sends reminders for them.
package alerts

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
)

const (
	day            = 24 * time.Hour
	upcomingWindow = 7 * day

	// MaxOverdue and MaxUpcoming cap the dashboard lists.
	MaxOverdue  = 10
	MaxUpcoming = 5
)

// Store is the slice of the persistence gateway used by the aggregator.
type Store interface {
	ListOverdueCandidates(ctx context.Context) ([]model.OverdueDeliverable, error)
	ListActiveProjectDeadlines(ctx context.Context) ([]model.UpcomingDeadline, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	RecordReminder(ctx context.Context, send model.ReminderSend, n *model.Notification) (bool, error)
	LogReminderSend(ctx context.Context, send model.ReminderSend) (bool, error)
}

// Mailer emails a reminder for an overdue deliverable.
type Mailer interface {
	SendReminder(ctx context.Context, to string, d model.OverdueDeliverable) error
}

// Alerts is one computed snapshot for the dashboard.
type Alerts struct {
	Overdue  []model.OverdueDeliverable
	Upcoming []model.UpcomingDeadline

	// TotalOverdue and TotalUpcoming count matches before capping.
	TotalOverdue  int
	TotalUpcoming int

	ComputedAt time.Time
}

// Aggregator computes alerts and sends reminders.
type Aggregator struct {
	store  Store
	mailer Mailer
	log    *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMailer enables the email reminder channel.
func WithMailer(m Mailer) Option {
	return func(a *Aggregator) { a.mailer = m }
}

// WithLogger sets the aggregator logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// NewAggregator creates an Aggregator over store.
func NewAggregator(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ComputeAlerts derives the capped overdue and upcoming lists at now. It
// only reads.
func (a *Aggregator) ComputeAlerts(ctx context.Context, now time.Time) (Alerts, error) {
	overdue, err := a.overdue(ctx, now)
	if err != nil {
		return Alerts{}, err
	}

	deadlines, err := a.store.ListActiveProjectDeadlines(ctx)
	if err != nil {
		return Alerts{}, apperr.Transient("loading project deadlines", err)
	}
	upcoming := Upcoming(deadlines, now)

	out := Alerts{
		TotalOverdue:  len(overdue),
		TotalUpcoming: len(upcoming),
		ComputedAt:    now,
	}
	out.Overdue = overdue[:min(len(overdue), MaxOverdue)]
	out.Upcoming = upcoming[:min(len(upcoming), MaxUpcoming)]
	return out, nil
}

func (a *Aggregator) overdue(ctx context.Context, now time.Time) ([]model.OverdueDeliverable, error) {
	candidates, err := a.store.ListOverdueCandidates(ctx)
	if err != nil {
		return nil, apperr.Transient("loading overdue deliverables", err)
	}
	return Overdue(candidates, now), nil
}

// Overdue keeps the unapproved candidates due before now, fills in days
// overdue and severity, and sorts the most overdue first.
func Overdue(candidates []model.OverdueDeliverable, now time.Time) []model.OverdueDeliverable {
	out := make([]model.OverdueDeliverable, 0, len(candidates))
	for _, d := range candidates {
		if d.Status == model.DeliverableStatusApproved || !d.DueDate.Before(now) {
			continue
		}
		d.DaysOverdue = int(now.Sub(d.DueDate) / day)
		d.Severity = OverdueSeverity(d.DaysOverdue)
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysOverdue != out[j].DaysOverdue {
			return out[i].DaysOverdue > out[j].DaysOverdue
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

// Upcoming keeps the deadlines ending within the next seven days, fills
// in days until and severity, and sorts the soonest first.
func Upcoming(deadlines []model.UpcomingDeadline, now time.Time) []model.UpcomingDeadline {
	limit := now.Add(upcomingWindow)
	out := make([]model.UpcomingDeadline, 0, len(deadlines))
	for _, u := range deadlines {
		if u.EndDate.Before(now) || u.EndDate.After(limit) {
			continue
		}
		u.DaysUntil = int(math.Ceil(float64(u.EndDate.Sub(now)) / float64(day)))
		u.Severity = UpcomingSeverity(u.DaysUntil)
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].EndDate.Before(out[j].EndDate)
	})
	return out
}

// OverdueSeverity ranks a deliverable by how many days it is late.
func OverdueSeverity(days int) model.Severity {
	switch {
	case days >= 7:
		return model.SeverityHigh
	case days >= 3:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// UpcomingSeverity ranks a deadline by how soon it ends.
func UpcomingSeverity(days int) model.Severity {
	if days <= 2 {
		return model.SeverityHigh
	}
	return model.SeverityMedium
}

// DaysLabel renders a day count for the dashboard.
func DaysLabel(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
