package trigger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrUnknownWeekday is returned for a weekday name that is not recognised.
	ErrUnknownWeekday = errors.New("unknown weekday")
	// ErrInvalidTime is returned for a time of day that is not HH:MM.
	ErrInvalidTime = errors.New("invalid time of day")
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps a case-insensitive English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return d, nil
}

// Slot is a weekly calendar slot: one weekday at one time of day.
type Slot struct {
	Day      time.Weekday
	Hour     int
	Minute   int
	schedule cron.Schedule
}

// ParseSlot resolves a weekday name and an HH:MM 24h time into a Slot.
func ParseSlot(day, clock string) (Slot, error) {
	wd, err := ParseWeekday(day)
	if err != nil {
		return Slot{}, err
	}
	t, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	spec := fmt.Sprintf("%d %d * * %d", t.Minute(), t.Hour(), int(wd))
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return Slot{}, fmt.Errorf("building schedule %q: %w", spec, err)
	}
	return Slot{Day: wd, Hour: t.Hour(), Minute: t.Minute(), schedule: sched}, nil
}

// Next returns the first slot occurrence strictly after t.
func (s Slot) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %02d:%02d", s.Day, s.Hour, s.Minute)
}
