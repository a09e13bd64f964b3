package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/epikom-hub/internal/alerts"
)

func TestSummaryLine(t *testing.T) {
	assert.Equal(t, "Reminders: 0 sent", SummaryLine(alerts.Summary{}))
	assert.Equal(t,
		"Reminders: 2 sent, 1 already sent, 1 without client account, 3 failed",
		SummaryLine(alerts.Summary{Sent: 2, SkippedDuplicate: 1, SkippedNoAccount: 1, Failed: 3}),
	)
}
