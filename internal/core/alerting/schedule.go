package alerting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleMode determines which day selector of a ScheduleSpec is meaningful
type ScheduleMode string

const (
	ScheduleHourly  ScheduleMode = "hourly"
	ScheduleWeekly  ScheduleMode = "weekly"
	ScheduleMonthly ScheduleMode = "monthly"
)

// ScheduleSpec is the structured form of a recurring schedule. Exactly one
// of DaysOfWeek, DaysOfMonth and EveryHours is meaningful per mode.
type ScheduleSpec struct {
	Mode        ScheduleMode `json:"mode" yaml:"mode"`
	Time        string       `json:"time" yaml:"time"` // HH:MM
	DaysOfWeek  []int        `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"`
	DaysOfMonth []int        `json:"days_of_month,omitempty" yaml:"days_of_month,omitempty"`
	EveryHours  int          `json:"every_hours,omitempty" yaml:"every_hours,omitempty"`
}

// DefaultSchedule is the fallback for unparseable cron input
func DefaultSchedule() ScheduleSpec {
	return ScheduleSpec{
		Mode:       ScheduleWeekly,
		Time:       "09:00",
		DaysOfWeek: []int{1, 2, 3, 4, 5},
	}
}

// DecodeCron converts a 5-field cron expression into a ScheduleSpec. It
// never fails: malformed input falls back to documented defaults and
// invalid numeric tokens are dropped.
func DecodeCron(expr string) ScheduleSpec {
	fields := strings.Fields(expr)
	if len(fields) < 5 {
		return DefaultSchedule()
	}

	minuteField, hourField, domField := fields[0], fields[1], fields[2]
	dowField := fields[4]

	// An hour field of */N is an every-N-hours schedule
	if n, ok := strings.CutPrefix(hourField, "*/"); ok {
		every, err := strconv.Atoi(n)
		if err != nil || every < 1 {
			every = 1
		}
		return ScheduleSpec{
			Mode:       ScheduleHourly,
			Time:       "09:00",
			EveryHours: every,
		}
	}

	minute := parseClockField(minuteField, 0, 59, 0)
	hour := parseClockField(hourField, 0, 23, 9)
	clock := fmt.Sprintf("%02d:%02d", hour, minute)

	if dom := parseDayList(domField, 1, 31); len(dom) > 0 {
		return ScheduleSpec{
			Mode:        ScheduleMonthly,
			Time:        clock,
			DaysOfMonth: dom,
		}
	}

	dow := parseDayList(dowField, 0, 6)
	if len(dow) == 0 {
		dow = []int{1, 2, 3, 4, 5}
	}
	return ScheduleSpec{
		Mode:       ScheduleWeekly,
		Time:       clock,
		DaysOfWeek: dow,
	}
}

// EncodeCron converts a ScheduleSpec into its canonical 5-field cron form
func EncodeCron(s ScheduleSpec) string {
	if s.Mode == ScheduleHourly {
		every := s.EveryHours
		if every < 1 {
			every = 1
		}
		if every > 24 {
			every = 24
		}
		return fmt.Sprintf("0 */%d * * *", every)
	}

	hour, minute := parseClock(s.Time)

	if s.Mode == ScheduleMonthly {
		return fmt.Sprintf("%d %d %s * *", minute, hour, joinDays(s.DaysOfMonth))
	}

	return fmt.Sprintf("%d %d * * %s", minute, hour, joinDays(s.DaysOfWeek))
}

// Validate checks that the encoded form is an acceptable cron expression
func (s ScheduleSpec) Validate() error {
	if _, err := cron.ParseStandard(EncodeCron(s)); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	return nil
}

// NextRuns returns the next count firing times after the given instant
func (s ScheduleSpec) NextRuns(after time.Time, count int) ([]time.Time, error) {
	sched, err := cron.ParseStandard(EncodeCron(s))
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	runs := make([]time.Time, 0, count)
	t := after
	for i := 0; i < count; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		runs = append(runs, t)
	}
	return runs, nil
}

// MatchesMinute reports whether the schedule fires during the minute
// containing t.
func (s ScheduleSpec) MatchesMinute(t time.Time) bool {
	sched, err := cron.ParseStandard(EncodeCron(s))
	if err != nil {
		return false
	}
	minute := t.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}

func parseClock(clock string) (hour, minute int) {
	hour, minute = 9, 0
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return hour, minute
	}
	if h, err := strconv.Atoi(parts[0]); err == nil && h >= 0 && h <= 23 {
		hour = h
	}
	if m, err := strconv.Atoi(parts[1]); err == nil && m >= 0 && m <= 59 {
		minute = m
	}
	return hour, minute
}

func parseClockField(field string, min, max, fallback int) int {
	v, err := strconv.Atoi(field)
	if err != nil || v < min || v > max {
		return fallback
	}
	return v
}

// parseDayList parses a comma-separated day list, dropping anything that
// is not an integer within [min, max]. Wildcards yield an empty list.
func parseDayList(field string, min, max int) []int {
	if strings.Contains(field, "*") {
		return nil
	}

	var days []int
	seen := make(map[int]struct{})
	for _, token := range strings.Split(field, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil || v < min || v > max {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		days = append(days, v)
	}
	sort.Ints(days)
	return days
}

func joinDays(days []int) string {
	if len(days) == 0 {
		return "*"
	}
	sorted := append([]int(nil), days...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, d := range sorted {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}
