package model

import (
	"fmt"
	"time"
)

// SyncInterval is one of the enumerated auto-sync frequencies. Adaptive
// widening and narrowing move along this set and never produce an
// arbitrary duration.
type SyncInterval int

const (
	Interval15Min SyncInterval = iota
	Interval1Hour
	Interval6Hours
	Interval24Hours
)

// intervals is ordered from most to least frequent. Widen moves right,
// Narrow moves left.
var intervals = [...]time.Duration{
	Interval15Min:   15 * time.Minute,
	Interval1Hour:   time.Hour,
	Interval6Hours:  6 * time.Hour,
	Interval24Hours: 24 * time.Hour,
}

// Duration returns the wall-clock length of the interval.
func (i SyncInterval) Duration() time.Duration {
	if i < 0 || int(i) >= len(intervals) {
		return intervals[Interval1Hour]
	}
	return intervals[i]
}

// Widen returns the next less frequent interval, clamped at 24h.
func (i SyncInterval) Widen() SyncInterval {
	if i >= Interval24Hours {
		return Interval24Hours
	}
	return i + 1
}

// Narrow returns the next more frequent interval, clamped at 15m.
func (i SyncInterval) Narrow() SyncInterval {
	if i <= Interval15Min {
		return Interval15Min
	}
	return i - 1
}

// String returns the short form used in config files and logs.
func (i SyncInterval) String() string {
	switch i {
	case Interval15Min:
		return "15m"
	case Interval1Hour:
		return "1h"
	case Interval6Hours:
		return "6h"
	case Interval24Hours:
		return "24h"
	default:
		return fmt.Sprintf("SyncInterval(%d)", int(i))
	}
}

// ParseSyncInterval parses the short form accepted in config files.
func ParseSyncInterval(s string) (SyncInterval, error) {
	switch s {
	case "15m":
		return Interval15Min, nil
	case "1h":
		return Interval1Hour, nil
	case "6h":
		return Interval6Hours, nil
	case "24h":
		return Interval24Hours, nil
	default:
		return Interval1Hour, fmt.Errorf("invalid sync interval %q: must be one of 15m, 1h, 6h, 24h", s)
	}
}
