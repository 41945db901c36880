package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/gclaussn/go-bpmn-runtime/model"
)

// BusinessCalendar resolves timer expressions to concrete points in time, relative to a clock.
type BusinessCalendar interface {
	// ResolveDueDate resolves the next due date of an expression.
	ResolveDueDate(expression string) (time.Time, error)
	// ResolveDueDateMax resolves the next due date of an expression, while an unbounded cycle is limited to a maximum number of iterations.
	ResolveDueDateMax(expression string, maxIterations int) (time.Time, error)
	// ResolveEndDate resolves the end of an expression. The zero time is returned, if the expression has no end.
	ResolveEndDate(expression string) (time.Time, error)
}

// NewBusinessCalendar returns the calendar, which is able to resolve expressions of the given timer kind.
func NewBusinessCalendar(kind model.TimerKind, clock *Clock) (BusinessCalendar, error) {
	switch kind {
	case model.TimerCycle:
		return cycleCalendar{clock}, nil
	case model.TimerDate:
		return dateCalendar{}, nil
	case model.TimerDuration:
		return durationCalendar{clock}, nil
	default:
		return nil, fmt.Errorf("unsupported timer kind %s", kind)
	}
}

// ParseCycle parses a repeating ISO 8601 interval (R[n]/[start/]duration[/end]) or a cron expression.
func ParseCycle(expression string) (Cycle, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return Cycle{}, errors.New("cycle is empty")
	}

	if expression[0] != 'R' {
		if !gronx.IsValid(expression) {
			return Cycle{}, fmt.Errorf("invalid cron expression %s", expression)
		}
		return Cycle{Repetitions: -1, Cron: expression}, nil
	}

	parts := strings.Split(expression, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Cycle{}, fmt.Errorf("invalid repeating interval %s", expression)
	}

	cycle := Cycle{Repetitions: -1}
	if len(parts[0]) > 1 {
		repetitions, err := strconv.Atoi(parts[0][1:])
		if err != nil || repetitions < 0 {
			return Cycle{}, fmt.Errorf("invalid repetitions of interval %s", expression)
		}
		cycle.Repetitions = repetitions
	}

	var durationPart string
	switch len(parts) {
	case 2:
		durationPart = parts[1]
	case 3:
		if strings.HasPrefix(parts[1], "P") {
			durationPart = parts[1]

			end, err := time.Parse(time.RFC3339, parts[2])
			if err != nil {
				return Cycle{}, fmt.Errorf("invalid end of interval %s: %v", expression, err)
			}
			cycle.End = end.UTC()
		} else {
			durationPart = parts[2]

			start, err := time.Parse(time.RFC3339, parts[1])
			if err != nil {
				return Cycle{}, fmt.Errorf("invalid start of interval %s: %v", expression, err)
			}
			cycle.Start = start.UTC()
		}
	}

	duration, err := NewISO8601Duration(durationPart)
	if err != nil {
		return Cycle{}, err
	}
	if ref := time.Unix(0, 0).UTC(); duration.IsZero() || duration.Calculate(ref).Equal(ref) {
		return Cycle{}, fmt.Errorf("interval %s has no duration", expression)
	}

	cycle.Duration = duration
	return cycle, nil
}

// Cycle is a parsed timer cycle.
type Cycle struct {
	Repetitions int // Number of remaining occurrences or -1, if unbounded.
	Start       time.Time
	Duration    ISO8601Duration
	End         time.Time
	Cron        string
}

// Consume returns the cycle after one occurrence, without start.
func (c Cycle) Consume() Cycle {
	if c.Repetitions > 0 {
		c.Repetitions--
	}
	c.Start = time.Time{}
	return c
}

func (c Cycle) IsExhausted() bool {
	return c.Repetitions == 0
}

// Next returns the next occurrence after t.
func (c Cycle) Next(t time.Time) (time.Time, error) {
	if c.Cron != "" {
		next, err := gronx.NextTickAfter(c.Cron, t, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to evaluate cron expression %s: %v", c.Cron, err)
		}
		return next.UTC().Truncate(time.Millisecond), nil
	}
	if !c.Start.IsZero() && c.Start.After(t) {
		return c.Start, nil
	}
	return c.Duration.Calculate(t), nil
}

// String returns the cycle in normalized form: R[n]/duration or a cron expression.
// Start and end are not included - the end is kept separately, when a cycle is persisted.
func (c Cycle) String() string {
	if c.Cron != "" {
		return c.Cron
	}
	if c.Repetitions < 0 {
		return "R/" + c.Duration.String()
	}
	return fmt.Sprintf("R%d/%s", c.Repetitions, c.Duration)
}

type cycleCalendar struct {
	clock *Clock
}

func (c cycleCalendar) ResolveDueDate(expression string) (time.Time, error) {
	return c.ResolveDueDateMax(expression, 0)
}

func (c cycleCalendar) ResolveDueDateMax(expression string, maxIterations int) (time.Time, error) {
	cycle, err := ParseCycle(expression)
	if err != nil {
		return time.Time{}, err
	}

	if cycle.Repetitions < 0 && maxIterations > 0 {
		cycle.Repetitions = maxIterations
	}
	if cycle.IsExhausted() {
		return time.Time{}, fmt.Errorf("cycle %s has no occurrence left", expression)
	}

	return cycle.Next(c.clock.Now())
}

func (c cycleCalendar) ResolveEndDate(expression string) (time.Time, error) {
	cycle, err := ParseCycle(expression)
	if err != nil {
		return time.Time{}, err
	}
	return cycle.End, nil
}

type dateCalendar struct{}

func (c dateCalendar) ResolveDueDate(expression string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(expression))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %s: %v", expression, err)
	}
	return t.UTC().Truncate(time.Millisecond), nil
}

func (c dateCalendar) ResolveDueDateMax(expression string, _ int) (time.Time, error) {
	return c.ResolveDueDate(expression)
}

func (c dateCalendar) ResolveEndDate(expression string) (time.Time, error) {
	return c.ResolveDueDate(expression)
}

type durationCalendar struct {
	clock *Clock
}

func (c durationCalendar) ResolveDueDate(expression string) (time.Time, error) {
	duration, err := NewISO8601Duration(strings.TrimSpace(expression))
	if err != nil {
		return time.Time{}, err
	}
	if duration.IsZero() {
		return time.Time{}, errors.New("duration is empty")
	}
	return duration.Calculate(c.clock.Now()), nil
}

func (c durationCalendar) ResolveDueDateMax(expression string, _ int) (time.Time, error) {
	return c.ResolveDueDate(expression)
}

func (c durationCalendar) ResolveEndDate(string) (time.Time, error) {
	return time.Time{}, nil
}
