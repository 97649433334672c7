package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystem_ReturnsUTC(t *testing.T) {
	now := System.Now()
	require.Equal(t, time.UTC, now.Location())
}

func TestManual_SetAndAdvance(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	m := NewManual(base)
	require.Equal(t, time.UTC, m.Now().Location())
	require.True(t, m.Now().Equal(base))

	m.Advance(time.Minute)
	require.True(t, m.Now().Equal(base.Add(time.Minute)))

	other := base.Add(24 * time.Hour)
	m.Set(other)
	require.True(t, m.Now().Equal(other))
}

func TestManual_ConcurrentAccess(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			m.Advance(time.Millisecond)
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		_ = m.Now()
	}
	<-done
}
