package models

import "time"

// UrgencyScore maps a label type and remaining time to a normalized [0,1]
// urgency. use_by batches score higher than best_before batches at the same
// remaining time: a missed use_by date is a safety risk, a missed
// best_before date a quality risk.
func UrgencyScore(label LabelType, timeToExpiry time.Duration) float64 {
	if timeToExpiry <= 0 {
		return 1.0
	}

	days := timeToExpiry.Hours() / 24

	if label == LabelUseBy {
		switch {
		case days <= 1:
			return 0.95
		case days <= 2:
			return 0.85
		case days <= 3:
			return 0.70
		default:
			return clampScore(1 - days/7)
		}
	}

	switch {
	case days <= 1:
		return 0.80
	case days <= 3:
		return 0.60
	case days <= 7:
		return 0.40
	default:
		return clampScore(1 - days/14)
	}
}

// BatchUrgency scores a batch at the given time. Expired and quarantined
// batches are maximally urgent.
func BatchUrgency(b *Batch, now time.Time) float64 {
	if b.State() == BatchStateExpired || b.State() == BatchStateQuarantine {
		return 1.0
	}
	return UrgencyScore(b.Label(), b.ExpiresAt().Sub(now))
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
