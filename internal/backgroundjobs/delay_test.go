package backgroundjobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayCalculator_GetDelay(t *testing.T) {
	calc := NewDelayCalculator(testLogger())
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	def := 5 * time.Minute

	tests := []struct {
		name         string
		firstRunTime string
		want         time.Duration
	}{
		{"empty uses default", "", def},
		{"blank uses default", "   ", def},
		{"invalid uses default", "not a cron", def},
		{"later today", "0 12 * * *", 90 * time.Minute},
		{"tomorrow", "0 3 * * *", 16*time.Hour + 30*time.Minute},
		{"every quarter hour", "*/15 * * * *", 15 * time.Minute},
		{"descriptor", "@hourly", 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.GetDelay(tt.firstRunTime, now, def))
		})
	}
}
