package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evanfisk/citriage/internal/domain/model"
)

func TestClassifyActivity(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		wantTier ActivityTier
	}{
		{"10 minutes ago is hot", 10 * time.Minute, TierHot},
		{"59 minutes ago is hot (boundary)", 59 * time.Minute, TierHot},
		{"61 minutes ago is active (boundary)", 61 * time.Minute, TierActive},
		{"12 hours ago is active", 12 * time.Hour, TierActive},
		{"25 hours ago is warm (boundary)", 25 * time.Hour, TierWarm},
		{"3 days ago is warm", 3 * 24 * time.Hour, TierWarm},
		{"8 days ago is stale", 8 * 24 * time.Hour, TierStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lastActivity := time.Now().Add(-tt.elapsed)
			assert.Equal(t, tt.wantTier, classifyActivity(lastActivity))
		})
	}
}

func TestClassifyActivity_ZeroTimeIsStale(t *testing.T) {
	assert.Equal(t, TierStale, classifyActivity(time.Time{}))
}

func TestTierInterval(t *testing.T) {
	assert.Equal(t, 2*time.Minute, tierInterval(TierHot))
	assert.Equal(t, 5*time.Minute, tierInterval(TierActive))
	assert.Equal(t, 15*time.Minute, tierInterval(TierWarm))
	assert.Equal(t, 30*time.Minute, tierInterval(TierStale))
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "hot", TierHot.String())
	assert.Equal(t, "active", TierActive.String())
	assert.Equal(t, "warm", TierWarm.String())
	assert.Equal(t, "stale", TierStale.String())
}

func TestFreshestActivity(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	prs := []model.PRSnapshot{
		{Number: 1, UpdatedAt: base},
		{Number: 2, UpdatedAt: base.Add(2 * time.Hour)},
		{Number: 3, UpdatedAt: base.Add(time.Hour)},
	}

	assert.True(t, freshestActivity(prs).Equal(base.Add(2*time.Hour)))
}

func TestFreshestActivity_EmptyIsZero(t *testing.T) {
	assert.True(t, freshestActivity(nil).IsZero())
}
