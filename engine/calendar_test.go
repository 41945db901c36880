package engine

import (
	"testing"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCycle(t *testing.T) {
	assert := assert.New(t)

	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := map[string]Cycle{
		"R/PT1H":                             {Repetitions: -1, Duration: "PT1H"},
		"R3/PT1H":                            {Repetitions: 3, Duration: "PT1H"},
		"R0/PT1H":                            {Repetitions: 0, Duration: "PT1H"},
		"R/2030-01-01T00:00:00Z/PT1H":        {Repetitions: -1, Start: start, Duration: "PT1H"},
		"R2/PT30M/2030-01-02T00:00:00Z":      {Repetitions: 2, Duration: "PT30M", End: end},
		"0 * * * *":                          {Repetitions: -1, Cron: "0 * * * *"},
		" R5/P1D ":                           {Repetitions: 5, Duration: "P1D"},
		"R/2030-01-01T01:00:00+01:00/PT1M":   {Repetitions: -1, Start: start, Duration: "PT1M"},
		"R10/PT1S/2030-01-02T01:00:00+01:00": {Repetitions: 10, Duration: "PT1S", End: end},
	}

	for expression, expected := range tests {
		t.Run(expression, func(t *testing.T) {
			cycle, err := ParseCycle(expression)
			assert.NoError(err)
			assert.Equal(expected, cycle)
		})
	}

	invalid := []string{
		"",
		"R",
		"R/",
		"Rx/PT1H",
		"R-1/PT1H",
		"R/PT",
		"R/1 hour",
		"R/PT1H/PT1H/PT1H",
		"R/not-a-date/PT1H",
		"R/PT1H/not-a-date",
		"R/PT0S",
		"R3/P0DT0H",
		"* * *",
	}

	for _, expression := range invalid {
		t.Run("invalid "+expression, func(t *testing.T) {
			_, err := ParseCycle(expression)
			assert.Error(err)
		})
	}
}

func TestCycle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	now := time.Date(2029, 12, 31, 22, 0, 0, 0, time.UTC)

	t.Run("consume", func(t *testing.T) {
		cycle, err := ParseCycle("R2/2030-01-01T00:00:00Z/PT1H")
		require.NoError(err)

		next := cycle.Consume()
		assert.Equal(1, next.Repetitions)
		assert.True(next.Start.IsZero())
		assert.False(next.IsExhausted())
		assert.Equal("R1/PT1H", next.String())

		next = next.Consume()
		assert.True(next.IsExhausted())
		assert.Equal("R0/PT1H", next.String())

		unbounded, err := ParseCycle("R/PT1H")
		require.NoError(err)
		assert.False(unbounded.Consume().IsExhausted())
		assert.Equal("R/PT1H", unbounded.Consume().String())
	})

	t.Run("next", func(t *testing.T) {
		cycle, err := ParseCycle("R/2030-01-01T00:00:00Z/PT1H")
		require.NoError(err)

		next, err := cycle.Next(now)
		require.NoError(err)
		assert.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), next)

		next, err = cycle.Consume().Next(next)
		require.NoError(err)
		assert.Equal(time.Date(2030, 1, 1, 1, 0, 0, 0, time.UTC), next)
	})

	t.Run("next cron", func(t *testing.T) {
		cycle, err := ParseCycle("0 12 * * *")
		require.NoError(err)
		assert.Equal("0 12 * * *", cycle.String())

		next, err := cycle.Next(now)
		require.NoError(err)
		assert.Equal(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC), next)
	})
}

func TestBusinessCalendar(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	clock := NewClock()
	clock.SetFixed(time.Date(2029, 12, 31, 22, 0, 0, 0, time.UTC))

	t.Run("cycle", func(t *testing.T) {
		calendar, err := NewBusinessCalendar(model.TimerCycle, clock)
		require.NoError(err)

		dueAt, err := calendar.ResolveDueDate("R3/PT1H")
		require.NoError(err)
		assert.Equal(time.Date(2029, 12, 31, 23, 0, 0, 0, time.UTC), dueAt)

		dueAt, err = calendar.ResolveDueDate("R/2030-01-01T00:00:00Z/PT1H")
		require.NoError(err)
		assert.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), dueAt)

		_, err = calendar.ResolveDueDate("R0/PT1H")
		assert.Error(err)

		dueAt, err = calendar.ResolveDueDateMax("R/PT1H", 5)
		require.NoError(err)
		assert.Equal(time.Date(2029, 12, 31, 23, 0, 0, 0, time.UTC), dueAt)

		endDate, err := calendar.ResolveEndDate("R/PT1H/2030-01-02T00:00:00Z")
		require.NoError(err)
		assert.Equal(time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), endDate)

		endDate, err = calendar.ResolveEndDate("R/PT1H")
		require.NoError(err)
		assert.True(endDate.IsZero())
	})

	t.Run("date", func(t *testing.T) {
		calendar, err := NewBusinessCalendar(model.TimerDate, clock)
		require.NoError(err)

		dueAt, err := calendar.ResolveDueDate("2030-01-01T01:00:00+01:00")
		require.NoError(err)
		assert.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), dueAt)

		_, err = calendar.ResolveDueDate("tomorrow")
		assert.Error(err)
	})

	t.Run("duration", func(t *testing.T) {
		calendar, err := NewBusinessCalendar(model.TimerDuration, clock)
		require.NoError(err)

		dueAt, err := calendar.ResolveDueDate("P1DT2H")
		require.NoError(err)
		assert.Equal(time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), dueAt)

		_, err = calendar.ResolveDueDate("")
		assert.Error(err)
		_, err = calendar.ResolveDueDate("1 day")
		assert.Error(err)

		endDate, err := calendar.ResolveEndDate("P1D")
		require.NoError(err)
		assert.True(endDate.IsZero())
	})

	t.Run("unsupported timer kind", func(t *testing.T) {
		_, err := NewBusinessCalendar(0, clock)
		assert.Error(err)
	})
}
