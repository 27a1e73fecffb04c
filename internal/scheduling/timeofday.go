package scheduling

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// TimeOfDay is a wall-clock hour and minute, as picked from the slot list.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return strconv.Itoa(100 + t.Hour)[1:] + ":" + strconv.Itoa(100 + t.Minute)[1:]
}

// ParseTimeOfDay accepts "HH:MM" (a single digit hour is tolerated).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return TimeOfDay{}, invalidTime()
	}
	h, err := atoiDigits(hh)
	if err != nil || h > 23 {
		return TimeOfDay{}, invalidTime()
	}
	m, err := atoiDigits(mm)
	if err != nil || m > 59 {
		return TimeOfDay{}, invalidTime()
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// CombineDateAndTime keeps the calendar day of date (as seen in loc) and sets
// the wall-clock time to hhmm with zero seconds. A nil loc means time.Local.
func CombineDateAndTime(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	tod, err := ParseTimeOfDay(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour, tod.Minute, 0, 0, loc), nil
}

// ParseDate reads a calendar day ("2006-01-02", interpreted in loc) or a full
// RFC 3339 timestamp.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperrors.NewFieldValidation("date", MsgDateRequired)
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperrors.NewFieldValidation("date", MsgDateInvalid)
	}
	return t, nil
}

func atoiDigits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

func invalidTime() error {
	return apperrors.NewFieldValidation("time", MsgTimeInvalid)
}
