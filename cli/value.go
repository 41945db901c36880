package cli

import (
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
)

// eventTypeValue is a custom flag value for an event type.
type eventTypeValue engine.EventType

func (v *eventTypeValue) Set(s string) error {
	eventType := engine.MapEventType(s)
	if eventType == 0 {
		return fmt.Errorf("invalid event type %s", s)
	}

	*v = eventTypeValue(eventType)
	return nil
}

func (v eventTypeValue) String() string {
	if v == 0 {
		return ""
	}
	return engine.EventType(v).String()
}

func (v eventTypeValue) Type() string {
	return "eventType"
}

// iso8601DurationValue is a custom flag value for a ISO 8601 duration.
type iso8601DurationValue engine.ISO8601Duration

func (v *iso8601DurationValue) Set(s string) error {
	d, err := engine.NewISO8601Duration(s)
	if err != nil {
		return err
	}

	*v = iso8601DurationValue(d)
	return nil
}

func (v iso8601DurationValue) String() string {
	return engine.ISO8601Duration(v).String()
}

func (v iso8601DurationValue) Type() string {
	return "iso8601Duration"
}

// jobTypeValue is a custom flag value for a job type.
type jobTypeValue engine.JobType

func (v *jobTypeValue) Set(s string) error {
	jobType := engine.MapJobType(s)
	if jobType == 0 {
		return fmt.Errorf("invalid job type %s", s)
	}

	*v = jobTypeValue(jobType)
	return nil
}

func (v jobTypeValue) String() string {
	if v == 0 {
		return ""
	}
	return engine.JobType(v).String()
}

func (v jobTypeValue) Type() string {
	return "jobType"
}

type timeValue time.Time

func (v *timeValue) Set(s string) error {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}

	*v = timeValue(t)
	return nil
}

func (v timeValue) String() string {
	if time.Time(v).IsZero() {
		return ""
	}
	return time.Time(v).Format(time.RFC3339)
}

func (v timeValue) Type() string {
	return "time"
}
