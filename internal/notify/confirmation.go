package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Confirmation is what the patient is told once an appointment is final.
type Confirmation struct {
	ClinicName      string
	ClinicPhone     string
	PatientName     string
	Email           string
	AppointmentID   string
	Doctor          string
	Location        string
	Start           time.Time
	DurationMinutes int
	Carrier         string
	MemberID        string
	GroupNumber     string
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<html>
<body>
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h1>Appointment Confirmed!</h1>
<p>Dear {{.PatientName}},</p>
<p>Your appointment has been successfully scheduled. Here are your details:</p>
<h3>Appointment Details</h3>
<ul>
<li><strong>Date:</strong> {{.Date}}</li>
<li><strong>Time:</strong> {{.Time}}</li>
<li><strong>Doctor:</strong> Dr. {{.Doctor}}</li>
<li><strong>Duration:</strong> {{.DurationMinutes}} minutes</li>
<li><strong>Location:</strong> {{.Location}}</li>
<li><strong>Appointment ID:</strong> {{.AppointmentID}}</li>
</ul>
<h3>Insurance Information</h3>
<ul>
<li><strong>Carrier:</strong> {{.Carrier}}</li>
<li><strong>Member ID:</strong> {{.MemberID}}</li>
<li><strong>Group Number:</strong> {{.GroupNumber}}</li>
</ul>
<h3>Important Reminders</h3>
<ul>
<li>Please arrive 15 minutes early for check-in</li>
<li>Bring a valid photo ID</li>
<li>Bring your insurance card</li>
<li>Complete your intake forms before your visit</li>
<li>Bring a list of current medications</li>
</ul>
<p><strong>Need to make changes?</strong><br>
Contact us{{if .ClinicPhone}} at {{.ClinicPhone}}{{end}} at least 24 hours in advance to reschedule or cancel your appointment.</p>
<p>We look forward to seeing you!</p>
<p>Best regards,<br>{{.ClinicName}}</p>
</div>
</body>
</html>`))

type confirmationView struct {
	Confirmation
	Date string
	Time string
}

// ConfirmationEmail renders the confirmation as plain text and HTML.
func ConfirmationEmail(c Confirmation) (EmailMessage, error) {
	if c.GroupNumber == "" {
		c.GroupNumber = "N/A"
	}
	if c.ClinicName == "" {
		c.ClinicName = defaultFromName
	}
	view := confirmationView{
		Confirmation: c,
		Date:         c.Start.Format("Monday, January 2, 2006"),
		Time:         c.Start.Format("3:04 PM"),
	}

	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render confirmation: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Dear %s,\n\nYour appointment has been successfully scheduled.\n\n", c.PatientName)
	fmt.Fprintf(&text, "Date: %s\nTime: %s\nDoctor: Dr. %s\nDuration: %d minutes\nLocation: %s\nAppointment ID: %s\n\n",
		view.Date, view.Time, c.Doctor, c.DurationMinutes, c.Location, c.AppointmentID)
	fmt.Fprintf(&text, "Insurance: %s, member ID %s, group %s\n\n", c.Carrier, c.MemberID, c.GroupNumber)
	text.WriteString("Please arrive 15 minutes early and bring a photo ID, your insurance card and a list of current medications.\n")
	text.WriteString("Contact us at least 24 hours in advance to reschedule or cancel.\n\n")
	text.WriteString("Best regards,\n" + c.ClinicName)

	return EmailMessage{
		To:      c.Email,
		ToName:  c.PatientName,
		Subject: "Appointment Confirmation - " + c.Start.Format("01/02/2006"),
		Body:    text.String(),
		HTML:    html.String(),
	}, nil
}
