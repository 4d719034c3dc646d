package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)

func TestExtendOnBidInsideThreshold(t *testing.T) {
	r := Rules{BidSeconds: 15, AntiSnipeThresholdSeconds: 5, AntiSnipeSeconds: 10}
	endsAt := t0.Add(30 * time.Second)
	bidAt := endsAt.Add(-3 * time.Second)

	got := r.ExtendOnBid(endsAt, bidAt)
	assert.Equal(t, bidAt.Add(10*time.Second), got)
	assert.True(t, got.After(endsAt))
}

func TestExtendOnBidOutsideThreshold(t *testing.T) {
	r := Rules{BidSeconds: 15, AntiSnipeThresholdSeconds: 5, AntiSnipeSeconds: 10}
	endsAt := t0.Add(30 * time.Second)

	assert.Equal(t, endsAt, r.ExtendOnBid(endsAt, t0.Add(10*time.Second)))
}

func TestExtendOnBidNeverShortens(t *testing.T) {
	r := Rules{BidSeconds: 15, AntiSnipeThresholdSeconds: 20, AntiSnipeSeconds: 2}
	endsAt := t0.Add(10 * time.Second)

	assert.Equal(t, endsAt, r.ExtendOnBid(endsAt, t0))
}

func TestExtendOnBidDisabledResets(t *testing.T) {
	r := Rules{BidSeconds: 15, AntiSnipeThresholdSeconds: 5}
	endsAt := t0.Add(30 * time.Second)
	bidAt := t0.Add(2 * time.Second)

	assert.Equal(t, bidAt.Add(15*time.Second), r.ExtendOnBid(endsAt, bidAt))
}

func TestSecondsLeft(t *testing.T) {
	endsAt := t0.Add(10 * time.Second)

	assert.Equal(t, 10, SecondsLeft(endsAt, t0))
	assert.Equal(t, 1, SecondsLeft(endsAt, endsAt.Add(-100*time.Millisecond)))
	assert.Equal(t, 0, SecondsLeft(endsAt, endsAt.Add(time.Second)))
}

func TestExpired(t *testing.T) {
	endsAt := t0.Add(time.Second)

	assert.False(t, Expired(endsAt, t0))
	assert.True(t, Expired(endsAt, endsAt))
	assert.False(t, Expired(time.Time{}, t0))
}
