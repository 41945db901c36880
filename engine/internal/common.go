package internal

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
	"github.com/jackc/pgx/v5/pgtype"
)

// businessCalendar returns a calendar, which resolves expressions relative to the time of the command.
func businessCalendar(ctx Context, kind model.TimerKind) (engine.BusinessCalendar, error) {
	clock := engine.NewClock()
	clock.SetFixed(ctx.Time())
	return engine.NewBusinessCalendar(kind, clock)
}

func elementPointer(bpmnElement *model.Element) string {
	var ids []string

	curr := bpmnElement
	for {
		ids = append(ids, curr.Id)
		if curr.Parent == nil {
			break
		}
		curr = curr.Parent
	}

	ids = append(ids, "") // for leading slash

	slices.Reverse(ids)

	return strings.Join(ids, "/")
}

func int4(v int32) pgtype.Int4 {
	return pgtype.Int4{Int32: v, Valid: v != 0}
}

// mergeVariables returns a copy of variables, updated by the given values. A nil value deletes a variable.
func mergeVariables(variables map[string]any, values map[string]any) map[string]any {
	merged := maps.Clone(variables)
	if merged == nil {
		merged = make(map[string]any, len(values))
	}
	for name, value := range values {
		if value == nil {
			delete(merged, name)
		} else {
			merged[name] = value
		}
	}
	return merged
}

func sortJobs(jobs []engine.Job) {
	slices.SortFunc(jobs, func(a, b engine.Job) int {
		return cmp.Compare(a.Id, b.Id)
	})
}

func text(v string) pgtype.Text {
	return pgtype.Text{String: v, Valid: v != ""}
}

func timeOrNil(v pgtype.Timestamp) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func timestamp(v time.Time) pgtype.Timestamp {
	return pgtype.Timestamp{Time: v, Valid: !v.IsZero()}
}
