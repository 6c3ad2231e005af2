package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"domingo": time.Sunday, "sunday": time.Sunday, "dom": time.Sunday, "sun": time.Sunday,
	"lunes": time.Monday, "monday": time.Monday, "lun": time.Monday, "mon": time.Monday,
	"martes": time.Tuesday, "tuesday": time.Tuesday, "mar": time.Tuesday, "tue": time.Tuesday,
	"miercoles": time.Wednesday, "wednesday": time.Wednesday, "mie": time.Wednesday, "wed": time.Wednesday,
	"jueves": time.Thursday, "thursday": time.Thursday, "jue": time.Thursday, "thu": time.Thursday,
	"viernes": time.Friday, "friday": time.Friday, "vie": time.Friday, "fri": time.Friday,
	"sabado": time.Saturday, "saturday": time.Saturday, "sab": time.Saturday, "sat": time.Saturday,
}

// Weekday parses a single Spanish or English day name. Accents and case are ignored.
func Weekday(raw string) (time.Weekday, error) {
	d, ok := weekdayNames[Fold(raw)]
	if !ok {
		return 0, fmt.Errorf("unknown weekday: %q", raw)
	}
	return d, nil
}

// Weekdays parses a weekday list stored either as a JSON array of names or as a comma
// separated string. The result is sorted and free of duplicates; an empty input yields nil.
func Weekdays(raw string) ([]time.Weekday, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	var names []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &names); err != nil {
			return nil, fmt.Errorf("invalid weekday list %q: %w", raw, err)
		}
	} else {
		names = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	}

	seen := make(map[time.Weekday]bool, len(names))
	var days []time.Weekday
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		d, err := Weekday(name)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}
