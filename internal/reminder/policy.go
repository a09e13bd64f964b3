// Package reminder holds per-project reminder policies: their defaults,
// validation, and the evaluation of when a reminder is due.
package reminder

import (
	"fmt"
	"time"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
)

// Option lists offered by the settings form.
var (
	FirstOptions       = []int{1, 2, 3, 5, 7}
	SecondOptions      = []int{2, 3, 5, 7, 10, 14}
	ThirdOptions       = []int{5, 7, 10, 14, 21, 30}
	HoursBeforeOptions = []int{2, 6, 12, 24, 48, 72}
)

// Default returns the policy applied to projects without settings.
func Default() model.ReminderPolicy {
	return model.ReminderPolicy{
		OnStart:             true,
		OnDeliverableDue:    true,
		ReminderHoursBefore: 24,
		OverdueReminders:    model.OverdueReminders{First: 1, Second: 3, Third: 7},
	}
}

// OrDefault returns *p, or Default when p is nil.
func OrDefault(p *model.ReminderPolicy) model.ReminderPolicy {
	if p == nil {
		return Default()
	}
	return *p
}

// Validate checks 0 < first < second < third and a positive hour offset.
func Validate(p model.ReminderPolicy) error {
	return apperr.Check(p)
}

// Bucket identifies the reminder slot a deliverable sits in. At most one
// reminder per channel is sent for each (deliverable, bucket) pair.
type Bucket string

const (
	BucketFirst  Bucket = "first"
	BucketSecond Bucket = "second"
	BucketThird  Bucket = "third"
)

// DayBucket is the fallback slot for a deliverable below the first tier.
func DayBucket(daysOverdue int) Bucket {
	return Bucket(fmt.Sprintf("day:%d", daysOverdue))
}

// Tier returns the overdue tier reached after daysOverdue days, or false
// before the first threshold.
func Tier(p model.ReminderPolicy, daysOverdue int) (Bucket, bool) {
	o := p.OverdueReminders
	switch {
	case o.Third > 0 && daysOverdue >= o.Third:
		return BucketThird, true
	case o.Second > 0 && daysOverdue >= o.Second:
		return BucketSecond, true
	case o.First > 0 && daysOverdue >= o.First:
		return BucketFirst, true
	default:
		return "", false
	}
}

// BucketFor returns the dedupe slot for a deliverable daysOverdue days
// late under policy p, read through OrDefault. A count below the first
// tier falls back to DayBucket.
func BucketFor(p *model.ReminderPolicy, daysOverdue int) Bucket {
	if b, ok := Tier(OrDefault(p), daysOverdue); ok {
		return b
	}
	return DayBucket(daysOverdue)
}

// DueSoon reports whether now falls in the pre-deadline window
// [due - ReminderHoursBefore, due) and the policy asks for it.
func DueSoon(p model.ReminderPolicy, due, now time.Time) bool {
	if !p.OnDeliverableDue || p.ReminderHoursBefore <= 0 {
		return false
	}
	start := due.Add(-time.Duration(p.ReminderHoursBefore) * time.Hour)
	return !now.Before(start) && now.Before(due)
}
