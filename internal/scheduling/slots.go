package scheduling

import (
	"fmt"
	"time"
)

// Defaults for the slot picker of the booking form.
const (
	DefaultSlotStart = "08:00"
	DefaultSlotEnd   = "16:00"
	DefaultSlotStep  = 30 * time.Minute
)

// DaySlots lists the "HH:MM" labels from start to end inclusive, every step.
func DaySlots(start, end string, step time.Duration) ([]string, error) {
	if step < time.Minute {
		return nil, fmt.Errorf("slot step must be at least one minute, got %s", step)
	}
	from, err := ParseTimeOfDay(start)
	if err != nil {
		return nil, fmt.Errorf("invalid slot start %q: %w", start, err)
	}
	to, err := ParseTimeOfDay(end)
	if err != nil {
		return nil, fmt.Errorf("invalid slot end %q: %w", end, err)
	}

	first := time.Duration(from.Hour)*time.Hour + time.Duration(from.Minute)*time.Minute
	last := time.Duration(to.Hour)*time.Hour + time.Duration(to.Minute)*time.Minute
	if last < first {
		return nil, fmt.Errorf("slot end %s is before start %s", end, start)
	}

	var slots []string
	for d := first; d <= last; d += step {
		slots = append(slots, TimeOfDay{Hour: int(d / time.Hour), Minute: int(d % time.Hour / time.Minute)}.String())
	}
	return slots, nil
}
