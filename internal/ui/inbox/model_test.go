package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBadge(t *testing.T) {
	assert.Equal(t, "3", Badge(3))
	assert.Equal(t, "99", Badge(99))
	assert.Equal(t, "99+", Badge(100))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", relativeTime(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", relativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", relativeTime(now.Add(-50*time.Hour), now))
}
