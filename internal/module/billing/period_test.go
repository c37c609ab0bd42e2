package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentPeriod(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want string
	}{
		{
			name: "mid month",
			time: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
			want: "2026-08",
		},
		{
			name: "first instant of month",
			time: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			want: "2026-09",
		},
		{
			name: "last instant of month",
			time: time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC),
			want: "2026-08",
		},
		{
			name: "KST evening on the last day is still the same UTC month",
			time: time.Date(2026, 9, 1, 8, 0, 0, 0, time.FixedZone("KST", 9*3600)),
			want: "2026-08",
		},
		{
			name: "single digit month zero padded",
			time: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			want: "2026-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentPeriod(tt.time))
		})
	}
}

func TestPeriodBounds(t *testing.T) {
	start, end := PeriodBounds(time.Date(2026, 8, 15, 12, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPeriodBoundsDecemberRollover(t *testing.T) {
	start, end := PeriodBounds(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), end)
}
