package timing

import (
	"time"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// Rules is the countdown configuration shared by the reducer and the client
// bid clock so both compute the same deadlines.
type Rules struct {
	NominationSeconds         int
	BidSeconds                int
	AntiSnipeThresholdSeconds int
	AntiSnipeSeconds          int
}

// FromLeague extracts the timing rules from a league configuration.
func FromLeague(cfg models.LeagueConfig) Rules {
	cfg = cfg.WithDefaults()
	return Rules{
		NominationSeconds:         cfg.NominationSeconds,
		BidSeconds:                cfg.BidSeconds,
		AntiSnipeThresholdSeconds: cfg.AntiSnipeThresholdSeconds,
		AntiSnipeSeconds:          cfg.AntiSnipeSeconds,
	}
}

func (r Rules) AntiSnipeEnabled() bool {
	return r.AntiSnipeSeconds > 0
}

// NominationEndsAt is the deadline of a freshly nominated lot.
func (r Rules) NominationEndsAt(at time.Time) time.Time {
	return at.Add(seconds(r.NominationSeconds))
}

// ExtendOnBid returns the deadline after a bid accepted at bidAt.
//
// With anti-snipe enabled a bid landing inside the threshold moves the deadline
// to bidAt+AntiSnipeSeconds, and never earlier than it already was; a bid
// outside the threshold leaves it alone. With anti-snipe disabled every bid
// resets the full bid countdown.
func (r Rules) ExtendOnBid(endsAt, bidAt time.Time) time.Time {
	if !r.AntiSnipeEnabled() {
		return bidAt.Add(seconds(r.BidSeconds))
	}
	if endsAt.Sub(bidAt) >= seconds(r.AntiSnipeThresholdSeconds) {
		return endsAt
	}
	extended := bidAt.Add(seconds(r.AntiSnipeSeconds))
	if extended.After(endsAt) {
		return extended
	}
	return endsAt
}

// Remaining is the time left before endsAt, never negative.
func Remaining(endsAt, now time.Time) time.Duration {
	d := endsAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// SecondsLeft rounds the remaining time up to whole seconds.
func SecondsLeft(endsAt, now time.Time) int {
	d := Remaining(endsAt, now)
	return int((d + time.Second - 1) / time.Second)
}

// Expired reports whether now is at or past endsAt.
func Expired(endsAt, now time.Time) bool {
	return !endsAt.IsZero() && !now.Before(endsAt)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
