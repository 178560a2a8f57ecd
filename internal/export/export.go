// Package export writes a per-appointment summary for front-desk staff.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/wolfman30/clinic-intake/internal/records"
)

// Header is the column order of every export.
var Header = []string{
	"Appointment ID", "Patient Name", "Date of Birth", "Email", "Phone", "Doctor",
	"Appointment Date", "Appointment Time", "Duration (minutes)", "Location", "Patient Type",
	"Insurance Carrier", "Member ID", "Group Number", "Status", "Created At",
}

// Row is one appointment summary.
type Row struct {
	Booking     records.Booking
	Patient     records.Patient
	PatientType string
	Insurance   records.Insurance
}

// Values renders the row in Header order.
func (r Row) Values() []string {
	status := string(r.Booking.Status)
	if status == "" {
		status = string(records.BookingConfirmed)
	}
	return []string{
		r.Booking.AppointmentID,
		r.Patient.Name,
		r.Patient.DateOfBirth,
		r.Patient.Email,
		r.Patient.Phone,
		r.Booking.Doctor,
		r.Booking.Start.Format("2006-01-02"),
		r.Booking.Start.Format("15:04"),
		strconv.Itoa(r.Booking.DurationMinutes),
		r.Booking.Location,
		r.PatientType,
		r.Insurance.Carrier,
		r.Insurance.MemberID,
		r.Insurance.GroupNumber,
		status,
		r.Booking.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// Exporter persists a row and returns where it went.
type Exporter interface {
	Export(ctx context.Context, row Row) (string, error)
}

// fileName is appointment_{id}_{timestamp}.csv.
func fileName(row Row, now time.Time) string {
	id := row.Booking.AppointmentID
	if id == "" {
		id = "UNKNOWN"
	}
	return fmt.Sprintf("appointment_%s_%s.csv", id, now.Format("20060102_150405"))
}

func encode(withHeader bool, rows ...[]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if withHeader {
		if err := w.Write(Header); err != nil {
			return nil, fmt.Errorf("export: write header: %w", err)
		}
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return nil, fmt.Errorf("export: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush: %w", err)
	}
	return buf.Bytes(), nil
}
