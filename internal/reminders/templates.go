package reminders

import (
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-intake/internal/records"
)

const signOff = "\n\nBest regards,\nThe Medical Scheduling Team"

// EmailSubject is "Appointment Reminder - MM/DD/YYYY".
func EmailSubject(b records.Booking) string {
	return "Appointment Reminder - " + b.Start.Format("01/02/2006")
}

// EmailBody renders the long-form reminder for t.
func EmailBody(t records.ReminderType, b records.Booking, p records.Patient) string {
	name := p.Name
	if name == "" {
		name = "Patient"
	}
	location := b.Location
	if location == "" {
		location = "our clinic"
	}

	var s strings.Builder
	fmt.Fprintf(&s, "Dear %s,\n\nThis is a reminder about your upcoming appointment:\n\n", name)
	fmt.Fprintf(&s, "Date: %s\nTime: %s\nDoctor: Dr. %s\nLocation: %s\n\n",
		b.Start.Format("Monday, January 2, 2006"), b.Start.Format("3:04 PM"), b.Doctor, location)

	switch t {
	case records.ReminderInitial:
		s.WriteString("Your appointment is scheduled for one week from now. Please make sure to:\n\n" +
			"- Mark your calendar\n- Arrange transportation if needed\n- Prepare any questions you'd like to ask\n\n" +
			"You'll receive additional reminders with more details closer to your appointment date.\n\n" +
			"If you need to reschedule, please call us at least 24 hours in advance.")
	case records.ReminderFormCheck:
		s.WriteString("Your appointment is in 3 days!\n\n" +
			"IMPORTANT: Have you completed your intake forms yet?\n\n" +
			"If you haven't received them or need assistance, please let us know immediately. " +
			"Completing these forms in advance helps ensure your appointment runs smoothly.\n\n" +
			"Please confirm that you've received and completed your forms by replying to this email.\n\n" +
			"If you need to cancel or reschedule, please do so at least 24 hours in advance.")
	case records.ReminderConfirmation:
		s.WriteString("Your appointment is TOMORROW!\n\nFinal checklist:\n" +
			"- Intake forms completed?\n- Insurance card ready?\n- Photo ID available?\n- List of current medications?\n\n" +
			"PLEASE CONFIRM: Will you be able to keep this appointment?\n\n" +
			"If you cannot attend, please contact us immediately as this affects other patients' scheduling.\n\n" +
			"We look forward to seeing you tomorrow!")
	default:
		s.WriteString("Please don't forget about your upcoming appointment.\n\n" +
			"If you have any questions or need to make changes, please contact us.")
	}
	s.WriteString(signOff)
	return s.String()
}

// SMSBody renders the short-form reminder for t.
func SMSBody(t records.ReminderType, b records.Booking) string {
	date := b.Start.Format("01/02/2006")
	clock := b.Start.Format("03:04PM")
	switch t {
	case records.ReminderInitial:
		return fmt.Sprintf("Reminder: Appointment with Dr. %s on %s at %s. More details to follow.", b.Doctor, date, clock)
	case records.ReminderFormCheck:
		return fmt.Sprintf("Appointment in 3 days (%s at %s). Have you completed your intake forms? Reply if you need help.", date, clock)
	case records.ReminderConfirmation:
		return fmt.Sprintf("Appointment TOMORROW %s at %s with Dr. %s. Please confirm you can attend. Bring ID & insurance card.", date, clock, b.Doctor)
	default:
		return fmt.Sprintf("Appointment reminder: %s at %s with Dr. %s.", date, clock, b.Doctor)
	}
}
