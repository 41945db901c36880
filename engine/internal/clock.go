package internal

import (
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
)

// SetTime moves the clock of the options forward to the time of the command.
func SetTime(ctx Context, cmd engine.SetTimeCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}

	old := ctx.Time()
	t := cmd.Time.UTC().Truncate(time.Millisecond)

	if t.Before(old) {
		return engine.Error{
			Type:  engine.ErrorConflict,
			Title: "failed to set time",
			Detail: fmt.Sprintf(
				"time %s is before engine time %s",
				t.Format(time.RFC3339),
				old.Format(time.RFC3339),
			),
		}
	}

	clock := ctx.Options().Clock
	if clock.IsFixed() {
		clock.SetFixed(t)
	} else {
		clock.Add(t.Sub(old))
	}
	return nil
}
