package schedule

import "time"

// RefreshPolicy centralizes the slot re-query cadence handed to clients: poll
// at Interval, and skip a poll if one already happened within Debounce.
type RefreshPolicy struct {
	Interval    time.Duration
	Debounce    time.Duration
	LastRefresh time.Time
}

func DefaultRefreshPolicy() RefreshPolicy {
	return RefreshPolicy{
		Interval: 10 * time.Second,
		Debounce: 3 * time.Second,
	}
}

// ShouldRefresh reports whether a refresh is due at now.
func (p RefreshPolicy) ShouldRefresh(now time.Time) bool {
	if p.LastRefresh.IsZero() {
		return true
	}
	since := now.Sub(p.LastRefresh)
	if since < p.Debounce {
		return false
	}
	return since >= p.Interval
}

// MarkRefreshed returns the policy advanced to a refresh at now.
func (p RefreshPolicy) MarkRefreshed(now time.Time) RefreshPolicy {
	p.LastRefresh = now
	return p
}
