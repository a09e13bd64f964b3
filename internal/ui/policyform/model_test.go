package policyform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/epikom-hub/internal/model"
)

func TestIntOptionsKeepsUnlistedCurrent(t *testing.T) {
	values := []int{1, 3, 7}

	opts := intOptions(values, 5, "%d days")
	got := make([]int, len(opts))
	for i, o := range opts {
		got[i] = o.Value
	}
	assert.Equal(t, []int{1, 3, 5, 7}, got)
	assert.Equal(t, "5 days", opts[2].Key)
	assert.Equal(t, []int{1, 3, 7}, values)

	assert.Len(t, intOptions(values, 3, "%d"), 3)
}

func TestSummary(t *testing.T) {
	p := model.ReminderPolicy{
		OnStart:             true,
		OnDeliverableDue:    false,
		ReminderHoursBefore: 24,
	}
	p.OverdueReminders.First = 1
	p.OverdueReminders.Second = 3
	p.OverdueReminders.Third = 7

	assert.Equal(t,
		"Project start notice: on\n"+
			"Pre-deadline notice: off (24 hours before)\n"+
			"Overdue reminders: 1, 3 and 7 days late",
		Summary(p),
	)
}
