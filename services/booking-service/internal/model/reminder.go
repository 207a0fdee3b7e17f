package model

import "time"

type ReminderChannel string

const (
	ChannelEmail ReminderChannel = "email"
	ChannelSMS   ReminderChannel = "sms"
	ChannelPush  ReminderChannel = "push"
)

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Reminder is one scheduled notification for an appointment. It holds an
// appointment id back-reference only, never a live pointer.
type Reminder struct {
	ID            string
	AppointmentID string
	Channel       ReminderChannel
	Recipient     string
	ScheduledAt   time.Time
	SentAt        *time.Time
	Status        ReminderStatus
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
