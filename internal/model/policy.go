package model

// OverdueReminders holds the day offsets past a deliverable's due date
// at which the first, second and third reminders fire.
type OverdueReminders struct {
	First  int `json:"first" mapstructure:"first" validate:"gt=0"`
	Second int `json:"second" mapstructure:"second" validate:"gtfield=First"`
	Third  int `json:"third" mapstructure:"third" validate:"gtfield=Second"`
}

// ReminderPolicy is the per-project configuration of when reminder and
// pre-deadline notifications fire. It is embedded in a project's
// notification_settings.
type ReminderPolicy struct {
	// OnStart records whether the project wants a start notice. It is kept
	// and edited with the policy; the reminder sweep does not read it.
	OnStart bool `json:"on_start" mapstructure:"on_start"`

	// OnDeliverableDue sends a pre-deadline notification
	// ReminderHoursBefore hours before each deliverable is due.
	OnDeliverableDue bool `json:"on_deliverable_due" mapstructure:"on_deliverable_due"`

	// ReminderHoursBefore is the hour offset before a scheduled event.
	ReminderHoursBefore int `json:"reminder_hours_before" mapstructure:"reminder_hours_before" validate:"gt=0"`

	// OverdueReminders are the day offsets past due.
	OverdueReminders OverdueReminders `json:"overdue_reminders" mapstructure:"overdue_reminders"`
}
