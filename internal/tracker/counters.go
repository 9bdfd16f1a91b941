package tracker

import "sync/atomic"

// Counters exposes operator diagnostics that are never part of the
// snapshot: transient-loss counts per spec.md §7. Increments are atomic
// and never allocate or block. Enqueue bumps QueueFullDrops and the
// processing loop bumps AllocSaturations; no code in this module
// increments WifiMalformedFrames or BleShortAdverts, so both stay 0.
type Counters struct {
	QueueFullDrops      atomic.Uint64
	WifiMalformedFrames atomic.Uint64
	BleShortAdverts     atomic.Uint64
	AllocSaturations    atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of the counters, safe to log or export.
type CounterSnapshot struct {
	QueueFullDrops      uint64
	WifiMalformedFrames uint64
	BleShortAdverts     uint64
	AllocSaturations    uint64
}

// Snapshot returns a consistent-enough point-in-time copy for diagnostics.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		QueueFullDrops:      c.QueueFullDrops.Load(),
		WifiMalformedFrames: c.WifiMalformedFrames.Load(),
		BleShortAdverts:     c.BleShortAdverts.Load(),
		AllocSaturations:    c.AllocSaturations.Load(),
	}
}
