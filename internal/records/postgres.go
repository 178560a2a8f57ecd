package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists patients, appointments and reminders in Postgres.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over a pgx pool or connection.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("records: db cannot be nil")
	}
	return &PostgresStore{db: db}
}

const patientColumns = `patient_id, name, date_of_birth, email, phone, preferred_doctor, location, first_visit, usual_doctor, insurance_carrier, member_id, group_number`

const bookingColumns = `appointment_id, patient_id, doctor, datetime, duration, location, status, created_at`

const reminderColumns = `reminder_id, appointment_id, patient_id, reminder_datetime, days_before, type, status, response`

func (s *PostgresStore) FindPatients(ctx context.Context, name, dob string) ([]Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE lower(name) = lower($1)
		ORDER BY created_seq ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("records: find patients: %w", err)
	}
	defer rows.Close()
	matches, err := scanPatients(rows)
	if err != nil {
		return nil, err
	}
	return refineByDOB(matches, dob), nil
}

func (s *PostgresStore) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	if p.PatientID == "" {
		p.PatientID = NewPatientID()
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (patient_id) DO NOTHING`,
		p.PatientID, p.Name, p.DateOfBirth, p.Email, p.Phone, p.PreferredDoctor, p.Location,
		p.FirstVisit, p.UsualDoctor, p.InsuranceCarrier, p.MemberID, p.GroupNumber,
	)
	if err != nil {
		return Patient{}, fmt.Errorf("records: create patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Patient{}, fmt.Errorf("records: create patient %s: %w", p.PatientID, ErrDuplicate)
	}
	return p, nil
}

func (s *PostgresStore) GetPatient(ctx context.Context, id string) (Patient, error) {
	rows, err := s.db.Query(ctx, `SELECT `+patientColumns+` FROM patients WHERE patient_id = $1`, id)
	if err != nil {
		return Patient{}, fmt.Errorf("records: get patient: %w", err)
	}
	defer rows.Close()
	patients, err := scanPatients(rows)
	if err != nil {
		return Patient{}, err
	}
	if len(patients) == 0 {
		return Patient{}, ErrNotFound
	}
	return patients[0], nil
}

func (s *PostgresStore) UpdatePatient(ctx context.Context, p Patient) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE patients SET name = $2, date_of_birth = $3, email = $4, phone = $5,
			preferred_doctor = $6, location = $7, usual_doctor = $8,
			insurance_carrier = $9, member_id = $10, group_number = $11
		WHERE patient_id = $1`,
		p.PatientID, p.Name, p.DateOfBirth, p.Email, p.Phone, p.PreferredDoctor, p.Location,
		p.UsualDoctor, p.InsuranceCarrier, p.MemberID, p.GroupNumber,
	)
	if err != nil {
		return fmt.Errorf("records: update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveBooking inserts the appointment only if no confirmed appointment for the
// same doctor and location overlaps it.
func (s *PostgresStore) SaveBooking(ctx context.Context, b Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO appointments (`+bookingColumns+`)
		SELECT $1::text, $2::text, $3::text, $4::timestamptz, $5::int, $6::text, $7::text, $8::timestamptz
		WHERE $7::text <> 'confirmed' OR NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE lower(doctor) = lower($3::text) AND lower(location) = lower($6::text)
				AND status = 'confirmed'
				AND datetime < $9::timestamptz
				AND datetime + make_interval(mins => duration) > $4::timestamptz
		)
		ON CONFLICT (appointment_id) DO NOTHING`,
		b.AppointmentID, b.PatientID, b.Doctor, b.Start, b.DurationMinutes, b.Location,
		string(b.Status), b.CreatedAt, b.End(),
	)
	if err != nil {
		return fmt.Errorf("records: save booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, id string) (Booking, error) {
	bookings, err := s.queryBookings(ctx, "get booking",
		`SELECT `+bookingColumns+` FROM appointments WHERE appointment_id = $1`, id)
	if err != nil {
		return Booking{}, err
	}
	if len(bookings) == 0 {
		return Booking{}, ErrNotFound
	}
	return bookings[0], nil
}

func (s *PostgresStore) ListPatientBookings(ctx context.Context, patientID string) ([]Booking, error) {
	return s.queryBookings(ctx, "list patient bookings",
		`SELECT `+bookingColumns+` FROM appointments WHERE patient_id = $1 ORDER BY datetime ASC`, patientID)
}

func (s *PostgresStore) ListDoctorBookings(ctx context.Context, doctor, location string) ([]Booking, error) {
	return s.queryBookings(ctx, "list doctor bookings", `
		SELECT `+bookingColumns+` FROM appointments
		WHERE lower(doctor) = lower($1) AND lower(location) = lower($2)
		ORDER BY datetime ASC`, doctor, location)
}

func (s *PostgresStore) queryBookings(ctx context.Context, op, sql string, args ...any) ([]Booking, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("records: %s: %w", op, err)
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		var b Booking
		var status string
		if err := rows.Scan(&b.AppointmentID, &b.PatientID, &b.Doctor, &b.Start, &b.DurationMinutes,
			&b.Location, &status, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("records: scan booking: %w", err)
		}
		b.Status = BookingStatus(status)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateBookingStatus(ctx context.Context, id string, status BookingStatus) error {
	if status != BookingCancelled && status != BookingConfirmed {
		return ErrInvalidTransition
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1
		WHERE appointment_id = $2 AND (status = $1 OR status = 'confirmed')`, string(status), id)
	if err != nil {
		return fmt.Errorf("records: update booking status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetBooking(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (s *PostgresStore) SaveReminder(ctx context.Context, r Reminder) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reminder_id) DO UPDATE SET
			reminder_datetime = EXCLUDED.reminder_datetime,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			response = EXCLUDED.response`,
		r.ReminderID, r.AppointmentID, r.PatientID, r.ReminderAt, r.DaysBefore,
		string(r.Type), string(r.Status), r.Response,
	)
	if err != nil {
		return fmt.Errorf("records: save reminder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReminder(ctx context.Context, id string) (Reminder, error) {
	reminders, err := s.queryReminders(ctx, "get reminder",
		`SELECT `+reminderColumns+` FROM reminders WHERE reminder_id = $1`, id)
	if err != nil {
		return Reminder{}, err
	}
	if len(reminders) == 0 {
		return Reminder{}, ErrNotFound
	}
	return reminders[0], nil
}

func (s *PostgresStore) ListAppointmentReminders(ctx context.Context, appointmentID string) ([]Reminder, error) {
	return s.queryReminders(ctx, "list appointment reminders", `
		SELECT `+reminderColumns+` FROM reminders
		WHERE appointment_id = $1
		ORDER BY reminder_datetime ASC`, appointmentID)
}

func (s *PostgresStore) ListDueReminders(ctx context.Context, asOf time.Time) ([]Reminder, error) {
	return s.queryReminders(ctx, "list due reminders", `
		SELECT `+reminderColumns+` FROM reminders
		WHERE status = 'scheduled' AND reminder_datetime <= $1
		ORDER BY reminder_datetime ASC`, asOf)
}

func (s *PostgresStore) queryReminders(ctx context.Context, op, sql string, args ...any) ([]Reminder, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("records: %s: %w", op, err)
	}
	defer rows.Close()
	var out []Reminder
	for rows.Next() {
		var r Reminder
		var typ, status string
		if err := rows.Scan(&r.ReminderID, &r.AppointmentID, &r.PatientID, &r.ReminderAt,
			&r.DaysBefore, &typ, &status, &r.Response); err != nil {
			return nil, fmt.Errorf("records: scan reminder: %w", err)
		}
		r.Type = ReminderType(typ)
		r.Status = ReminderStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateReminderStatus(ctx context.Context, id string, status ReminderStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE reminders SET status = $1 WHERE reminder_id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("records: update reminder status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TransitionReminder(ctx context.Context, id string, from []ReminderStatus, to ReminderStatus) (bool, error) {
	statuses := make([]string, len(from))
	for i, st := range from {
		statuses[i] = string(st)
	}
	tag, err := s.db.Exec(ctx, `UPDATE reminders SET status = $1 WHERE reminder_id = $2 AND status = ANY($3)`,
		string(to), id, statuses)
	if err != nil {
		return false, fmt.Errorf("records: transition reminder: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.GetReminder(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) UpdateReminderResponse(ctx context.Context, id string, status ReminderStatus, response string) error {
	tag, err := s.db.Exec(ctx, `UPDATE reminders SET status = $1, response = $2 WHERE reminder_id = $3`,
		string(status), response, id)
	if err != nil {
		return fmt.Errorf("records: update reminder response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatients(rows pgx.Rows) ([]Patient, error) {
	var out []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.PatientID, &p.Name, &p.DateOfBirth, &p.Email, &p.Phone,
			&p.PreferredDoctor, &p.Location, &p.FirstVisit, &p.UsualDoctor,
			&p.InsuranceCarrier, &p.MemberID, &p.GroupNumber); err != nil {
			return nil, fmt.Errorf("records: scan patient: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("records: scan patient: %w", err)
	}
	return out, nil
}
