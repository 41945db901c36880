package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	assert := assert.New(t)

	t.Run("system time", func(t *testing.T) {
		clock := NewClock()
		assert.False(clock.IsFixed())

		now := clock.Now()
		assert.Equal(time.UTC, now.Location())
		assert.Equal(now, now.Truncate(time.Millisecond))
		assert.WithinDuration(time.Now(), now, time.Second)
	})

	t.Run("add", func(t *testing.T) {
		clock := NewClock()
		clock.Add(time.Hour)

		assert.False(clock.IsFixed())
		assert.WithinDuration(time.Now().Add(time.Hour), clock.Now(), time.Second)

		clock.Reset()
		assert.WithinDuration(time.Now(), clock.Now(), time.Second)
	})

	t.Run("fixed", func(t *testing.T) {
		fixed := time.Date(2030, 1, 1, 1, 0, 0, 123456789, time.FixedZone("CET", 3600))

		clock := NewClock()
		clock.SetFixed(fixed)

		assert.True(clock.IsFixed())
		assert.Equal(time.Date(2030, 1, 1, 0, 0, 0, 123000000, time.UTC), clock.Now())

		clock.Add(time.Minute)
		assert.Equal(time.Date(2030, 1, 1, 0, 1, 0, 123000000, time.UTC), clock.Now())

		clock.Reset()
		assert.False(clock.IsFixed())
	})
}
