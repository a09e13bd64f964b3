package reminder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/reminder"
	"github.com/nhle/epikom-hub/tests/testutil"
)

func policy(first, second, third, hours int) model.ReminderPolicy {
	return model.ReminderPolicy{
		OnDeliverableDue:    true,
		ReminderHoursBefore: hours,
		OverdueReminders:    model.OverdueReminders{First: first, Second: second, Third: third},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    model.ReminderPolicy
		field string
	}{
		{"default", reminder.Default(), ""},
		{"tight", policy(1, 2, 3, 1), ""},
		{"zero first", policy(0, 3, 7, 24), "overdue_reminders.first"},
		{"second equals first", policy(3, 3, 7, 24), "overdue_reminders.second"},
		{"third before second", policy(1, 7, 5, 24), "overdue_reminders.third"},
		{"zero hours", policy(1, 3, 7, 0), "reminder_hours_before"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reminder.Validate(tt.in)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestBucketFor(t *testing.T) {
	p := policy(1, 3, 7, 24)

	tests := []struct {
		days int
		want reminder.Bucket
	}{
		{0, "day:0"},
		{1, reminder.BucketFirst},
		{2, reminder.BucketFirst},
		{3, reminder.BucketSecond},
		{6, reminder.BucketSecond},
		{7, reminder.BucketThird},
		{40, reminder.BucketThird},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reminder.BucketFor(&p, tt.days), "days=%d", tt.days)
	}

	assert.Equal(t, reminder.BucketSecond, reminder.BucketFor(nil, 5))
	assert.Equal(t, reminder.Bucket("day:0"), reminder.BucketFor(nil, 0))
}

func TestDueSoon(t *testing.T) {
	due := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	p := policy(1, 3, 7, 24)

	assert.False(t, reminder.DueSoon(p, due, due.Add(-25*time.Hour)))
	assert.True(t, reminder.DueSoon(p, due, due.Add(-24*time.Hour)))
	assert.True(t, reminder.DueSoon(p, due, due.Add(-time.Minute)))
	assert.False(t, reminder.DueSoon(p, due, due))

	p.OnDeliverableDue = false
	assert.False(t, reminder.DueSoon(p, due, due.Add(-time.Hour)))
}

func TestOptionListsAreValidTogether(t *testing.T) {
	for _, first := range reminder.FirstOptions {
		for _, second := range reminder.SecondOptions {
			if second <= first {
				continue
			}
			assert.NoError(t, reminder.Validate(policy(first, second, 30, 24)))
		}
	}
}

func TestUpdatePolicy(t *testing.T) {
	s := testutil.NewTestStore(t)
	fx := testutil.Seed(t, s)
	svc := reminder.NewService(s, nil)
	ctx := context.Background()

	got, err := svc.Policy(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.Default(), got)

	err = svc.UpdatePolicy(ctx, *fx.Member, fx.Project.ID, policy(2, 5, 10, 12))
	assert.True(t, apperr.IsPermission(err))

	err = svc.UpdatePolicy(ctx, *fx.Admin, fx.Project.ID, policy(5, 2, 10, 12))
	assert.True(t, apperr.IsValidation(err))

	got, err = svc.Policy(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.Default(), got)

	want := policy(2, 5, 10, 12)
	require.NoError(t, svc.UpdatePolicy(ctx, *fx.Admin, fx.Project.ID, want))
	got, err = svc.Policy(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.Policy(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))
}
