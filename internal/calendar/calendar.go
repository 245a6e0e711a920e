package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DayStart and DayEnd bound the bookable window, both inclusive.
	DayStart TimeOfDay = 8 * 60
	DayEnd   TimeOfDay = 17 * 60

	DefaultStepMinutes = 30
	MaxStepMinutes     = int(DayEnd - DayStart)

	dateLayout       = "2006-01-02"
	legacyDateLayout = "02/01/2006"
)

var (
	ErrInvalidTime = errors.New("time must be HH:MM")
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
	ErrInvalidStep = errors.New("step must be between 1 and 540 minutes")
)

// TimeOfDay is a wall-clock time with minute granularity, stored as minutes since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, ErrInvalidTime
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, ErrInvalidTime
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, ErrInvalidTime
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// InBusinessHours reports whether t falls inside [DayStart, DayEnd].
func InBusinessHours(t TimeOfDay) bool {
	return t >= DayStart && t <= DayEnd
}

// ParseDate accepts ISO dates and the legacy DD/MM/YYYY form, returning UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	if d, err := time.Parse(legacyDateLayout, s); err == nil {
		return d, nil
	}
	return time.Time{}, ErrInvalidDate
}

func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// DateOf drops the clock part of t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Enumerate lists every slot start from DayStart to DayEnd inclusive.
func Enumerate(stepMinutes int) ([]TimeOfDay, error) {
	if stepMinutes == 0 {
		stepMinutes = DefaultStepMinutes
	}
	if stepMinutes < 0 || stepMinutes > MaxStepMinutes {
		return nil, ErrInvalidStep
	}

	out := make([]TimeOfDay, 0, MaxStepMinutes/stepMinutes+1)
	for t := DayStart; t <= DayEnd; t += TimeOfDay(stepMinutes) {
		out = append(out, t)
	}
	return out, nil
}

// Slot is one bookable (date, time) unit.
type Slot struct {
	Date time.Time
	Time TimeOfDay
}

func NewSlot(date time.Time, t TimeOfDay) Slot {
	return Slot{Date: DateOf(date), Time: t}
}

func (s Slot) Equal(o Slot) bool {
	return s.Date.Equal(o.Date) && s.Time == o.Time
}

func (s Slot) String() string {
	return FormatDate(s.Date) + " " + s.Time.String()
}
