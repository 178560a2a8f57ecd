package records

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	appointmentPrefix = "APT"
	appointmentSuffix = 6
	idAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	patientIDLength   = 8

	// AppointmentIDLength is the fixed length of every appointment id.
	AppointmentIDLength = len(appointmentPrefix) + 8 + appointmentSuffix
)

var appointmentIDPattern = regexp.MustCompile(`^APT\d{8}[A-Z0-9]{6}$`)

// NewAppointmentID returns APT + YYYYMMDD + six uppercase alphanumerics.
func NewAppointmentID(now time.Time) string {
	var b strings.Builder
	b.Grow(AppointmentIDLength)
	b.WriteString(appointmentPrefix)
	b.WriteString(now.Format("20060102"))
	max := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < appointmentSuffix; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(fmt.Sprintf("records: read random: %v", err))
		}
		b.WriteByte(idAlphabet[n.Int64()])
	}
	return b.String()
}

// ValidAppointmentID reports whether id has the appointment id shape.
func ValidAppointmentID(id string) bool {
	return appointmentIDPattern.MatchString(id)
}

// NewPatientID returns a short random patient id.
func NewPatientID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:patientIDLength]
}

// ReminderID builds the reminder id for an appointment and offset.
func ReminderID(appointmentID string, daysBefore int) string {
	return fmt.Sprintf("%s_%dd", appointmentID, daysBefore)
}
