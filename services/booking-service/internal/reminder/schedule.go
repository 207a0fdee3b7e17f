package reminder

import (
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// The reminder schedule is a fixed policy: every appointment gets exactly
// these three reminders, pending, in one batch. An empty recipient (no phone
// on file) still yields a row; it fails at delivery and follows the normal
// retry path.
var scheduleOffsets = []struct {
	before  time.Duration
	channel model.ReminderChannel
}{
	{24 * time.Hour, model.ChannelEmail},
	{1 * time.Hour, model.ChannelEmail},
	{15 * time.Minute, model.ChannelSMS},
}

func buildSchedule(appt *model.Appointment, user *model.User, now time.Time) []*model.Reminder {
	reminders := make([]*model.Reminder, 0, len(scheduleOffsets))
	for _, entry := range scheduleOffsets {
		recipient := user.Email
		if entry.channel == model.ChannelSMS {
			recipient = user.Phone
		}
		reminders = append(reminders, &model.Reminder{
			AppointmentID: appt.ID,
			Channel:       entry.channel,
			Recipient:     recipient,
			ScheduledAt:   appt.StartTime.Add(-entry.before),
			Status:        model.ReminderPending,
			RetryCount:    0,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return reminders
}
