package tabsync

import "sync/atomic"

// Stats holds atomic counters for one [Coordinator].
type Stats struct {
	Sent             atomic.Int64
	SendFailed       atomic.Int64
	Received         atomic.Int64
	Applied          atomic.Int64
	ApplyFailed      atomic.Int64
	Deferred         atomic.Int64
	DroppedMalformed atomic.Int64
	DroppedEcho      atomic.Int64
	DroppedUnknown   atomic.Int64
	DroppedIgnored   atomic.Int64
	DroppedStale     atomic.Int64
}

// Snapshot returns all counters as a string-keyed map.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"sent_total":              s.Sent.Load(),
		"send_failed_total":       s.SendFailed.Load(),
		"received_total":          s.Received.Load(),
		"applied_total":           s.Applied.Load(),
		"apply_failed_total":      s.ApplyFailed.Load(),
		"deferred_total":          s.Deferred.Load(),
		"dropped_malformed_total": s.DroppedMalformed.Load(),
		"dropped_echo_total":      s.DroppedEcho.Load(),
		"dropped_unknown_total":   s.DroppedUnknown.Load(),
		"dropped_ignored_total":   s.DroppedIgnored.Load(),
		"dropped_stale_total":     s.DroppedStale.Load(),
	}
}
