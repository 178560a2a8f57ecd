// Package availability generates bookable slots from recurring weekly doctor
// schedules and books them without double-booking.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const clockLayout = "15:04"

// DayHours is one working window. Nil means the doctor does not work that day.
type DayHours struct {
	Start string `json:"start"` // "09:00" in 24-hour format
	End   string `json:"end"`   // "17:00" in 24-hour format
}

func (h *DayHours) bounds(day time.Time) (time.Time, time.Time, error) {
	start, err := time.Parse(clockLayout, h.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("availability: parse start %q: %w", h.Start, err)
	}
	end, err := time.Parse(clockLayout, h.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("availability: parse end %q: %w", h.End, err)
	}
	y, m, d := day.Date()
	loc := day.Location()
	return time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, loc),
		time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, loc), nil
}

func (h *DayHours) hours() float64 {
	start, err1 := time.Parse(clockLayout, h.Start)
	end, err2 := time.Parse(clockLayout, h.End)
	if err1 != nil || err2 != nil || !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

// WeeklyHours maps weekdays to working windows.
type WeeklyHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// GetHoursForDay returns the window for a weekday (0=Sunday, 6=Saturday).
func (w *WeeklyHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return w.Sunday
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return nil
	}
}

// DoctorSchedule is the recurring week for one doctor at one location.
type DoctorSchedule struct {
	Doctor   string      `json:"doctor"`
	Location string      `json:"location"`
	Hours    WeeklyHours `json:"hours"`
}

// Matches compares doctor and location case-insensitively.
func (d DoctorSchedule) Matches(doctor, location string) bool {
	return strings.EqualFold(strings.TrimSpace(d.Doctor), strings.TrimSpace(doctor)) &&
		strings.EqualFold(strings.TrimSpace(d.Location), strings.TrimSpace(location))
}

// Rule is a single weekday window, the flattened form of a DoctorSchedule.
type Rule struct {
	Doctor   string
	Location string
	Weekday  time.Weekday
	Start    string
	End      string
}

// Schedule is every doctor/location week the clinic runs.
type Schedule []DoctorSchedule

// Current lets a static Schedule act as a ScheduleSource.
func (s Schedule) Current(context.Context) (Schedule, error) {
	return s, nil
}

// Find returns the week for doctor at location.
func (s Schedule) Find(doctor, location string) (DoctorSchedule, bool) {
	for _, d := range s {
		if d.Matches(doctor, location) {
			return d, true
		}
	}
	return DoctorSchedule{}, false
}

// ForDoctor returns every location week for doctor.
func (s Schedule) ForDoctor(doctor string) []DoctorSchedule {
	var out []DoctorSchedule
	for _, d := range s {
		if strings.EqualFold(strings.TrimSpace(d.Doctor), strings.TrimSpace(doctor)) {
			out = append(out, d)
		}
	}
	return out
}

// Rules flattens the schedule in weekday order starting Monday.
func (s Schedule) Rules() []Rule {
	var rules []Rule
	for _, d := range s {
		for _, wd := range weekOrder {
			h := d.Hours.GetHoursForDay(wd)
			if h == nil {
				continue
			}
			rules = append(rules, Rule{Doctor: d.Doctor, Location: d.Location, Weekday: wd, Start: h.Start, End: h.End})
		}
	}
	return rules
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func workweek(mon, fri DayHours) WeeklyHours {
	day := func(h DayHours) *DayHours { return &h }
	return WeeklyHours{
		Monday:    day(mon),
		Tuesday:   day(mon),
		Wednesday: day(mon),
		Thursday:  day(mon),
		Friday:    day(fri),
	}
}

// DefaultSchedule is used when no schedule file or stored schedule exists.
func DefaultSchedule() Schedule {
	return Schedule{
		{Doctor: "Smith", Location: "Downtown", Hours: workweek(DayHours{"09:00", "17:00"}, DayHours{"09:00", "15:00"})},
		{Doctor: "Johnson", Location: "Uptown", Hours: workweek(DayHours{"08:00", "16:00"}, DayHours{"08:00", "14:00"})},
		{Doctor: "Wilson", Location: "Midtown", Hours: workweek(DayHours{"10:00", "18:00"}, DayHours{"10:00", "16:00"})},
	}
}

// LoadScheduleFile reads a JSON schedule. An empty path yields DefaultSchedule.
func LoadScheduleFile(path string) (Schedule, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSchedule(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("availability: read schedule file: %w", err)
	}
	var s Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("availability: parse schedule file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks every window parses and ends after it starts.
func (s Schedule) Validate() error {
	for _, r := range s.Rules() {
		h := DayHours{Start: r.Start, End: r.End}
		if h.hours() <= 0 {
			return fmt.Errorf("availability: invalid window %s-%s for Dr. %s at %s on %s",
				r.Start, r.End, r.Doctor, r.Location, r.Weekday)
		}
	}
	return nil
}

// ScheduleSource supplies the schedule in effect.
type ScheduleSource interface {
	Current(ctx context.Context) (Schedule, error)
}

// RedisScheduleStore keeps the clinic schedule in Redis so operators can change
// hours without a deploy.
type RedisScheduleStore struct {
	redis    *redis.Client
	key      string
	fallback Schedule
}

// NewRedisScheduleStore falls back to fallback while nothing is stored.
func NewRedisScheduleStore(client *redis.Client, clinicID string, fallback Schedule) *RedisScheduleStore {
	if client == nil {
		panic("availability: redis client cannot be nil")
	}
	if fallback == nil {
		fallback = DefaultSchedule()
	}
	return &RedisScheduleStore{redis: client, key: fmt.Sprintf("clinic:schedule:%s", clinicID), fallback: fallback}
}

func (s *RedisScheduleStore) Current(ctx context.Context) (Schedule, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return s.fallback, nil
	}
	if err != nil {
		return nil, fmt.Errorf("availability: get schedule: %w", err)
	}
	var sched Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return nil, fmt.Errorf("availability: unmarshal schedule: %w", err)
	}
	return sched, nil
}

// Set replaces the stored schedule.
func (s *RedisScheduleStore) Set(ctx context.Context, sched Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("availability: marshal schedule: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("availability: set schedule: %w", err)
	}
	return nil
}
