package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// PatientType classifies the person being booked.
type PatientType string

const (
	PatientNew       PatientType = "new"
	PatientReturning PatientType = "returning"
)

// Appointment lengths by patient type.
const (
	NewPatientMinutes       = 60
	ReturningPatientMinutes = 30
)

const firstVisitLayout = "2006-01-02"

// ErrIncompleteIdentity is returned when the name needed for a lookup is missing.
var ErrIncompleteIdentity = errors.New("lookup: patient name is required")

// Resolution is the outcome of matching a patient against the record store.
type Resolution struct {
	PatientType     PatientType     `json:"patient_type"`
	PatientID       string          `json:"patient_id"`
	Record          records.Patient `json:"patient_record"`
	DurationMinutes int             `json:"appointment_duration"`
	Message         string          `json:"message"`
}

// Resolver matches identity against the patient store.
type Resolver struct {
	store  records.PatientStore
	now    func() time.Time
	logger *logging.Logger
}

// NewResolver creates a resolver over store.
func NewResolver(store records.PatientStore, logger *logging.Logger) *Resolver {
	if store == nil {
		panic("lookup: patient store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{store: store, now: time.Now, logger: logger}
}

// WithClock overrides the clock used for first-visit dates.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Resolve finds a returning patient or creates a new one. A hit never writes.
func (r *Resolver) Resolve(ctx context.Context, info intake.PatientInfo) (Resolution, error) {
	if info.Name == "" {
		return Resolution{}, ErrIncompleteIdentity
	}
	matches, err := r.store.FindPatients(ctx, info.Name, info.DateOfBirth)
	if err != nil {
		return Resolution{}, fmt.Errorf("lookup: find patient: %w", err)
	}

	if len(matches) > 0 {
		best := pickBest(matches)
		if len(matches) > 1 {
			r.logger.Info("multiple patient records matched, using most recent first visit",
				"matches", len(matches), "patient_id", best.PatientID)
		}
		return Resolution{
			PatientType:     PatientReturning,
			PatientID:       best.PatientID,
			Record:          best,
			DurationMinutes: ReturningPatientMinutes,
			Message:         returningMessage(info, best),
		}, nil
	}

	created, err := r.store.CreatePatient(ctx, records.Patient{
		Name:            info.Name,
		DateOfBirth:     info.DateOfBirth,
		Email:           info.Email,
		Phone:           info.Phone,
		PreferredDoctor: info.PreferredDoctor,
		Location:        info.Location,
		FirstVisit:      r.now().Format(firstVisitLayout),
		UsualDoctor:     info.PreferredDoctor,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("lookup: create patient: %w", err)
	}
	r.logger.Info("new patient record created", "patient_id", created.PatientID)
	return Resolution{
		PatientType:     PatientNew,
		PatientID:       created.PatientID,
		Record:          created,
		DurationMinutes: NewPatientMinutes,
		Message:         newPatientMessage(info),
	}, nil
}

// pickBest prefers the most recent first visit; ties keep store order.
func pickBest(matches []records.Patient) records.Patient {
	ordered := append([]records.Patient(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return firstVisit(ordered[i]).After(firstVisit(ordered[j]))
	})
	return ordered[0]
}

func firstVisit(p records.Patient) time.Time {
	for _, layout := range []string{firstVisitLayout, "01/02/2006", time.RFC3339} {
		if t, err := time.Parse(layout, p.FirstVisit); err == nil {
			return t
		}
	}
	return time.Time{}
}

func returningMessage(info intake.PatientInfo, p records.Patient) string {
	since := p.FirstVisit
	if since == "" {
		since = "your last visit"
	}
	doctor := p.UsualDoctor
	if doctor == "" {
		doctor = info.PreferredDoctor
	}
	return fmt.Sprintf("Welcome back, %s! I found your record in our system. I see you've been a patient since %s. "+
		"Would you like to schedule with Dr. %s as usual, or would you prefer a different doctor today?",
		info.Name, since, doctor)
}

func newPatientMessage(info intake.PatientInfo) string {
	return fmt.Sprintf("Welcome to our clinic, %s! I don't see you in our system yet, so you'll be scheduled as a new patient. "+
		"This means we'll reserve %d minutes for your appointment to allow time for a comprehensive evaluation. "+
		"You'll also receive intake forms to complete before your visit. Let's find you an available appointment time.",
		info.Name, NewPatientMinutes)
}
