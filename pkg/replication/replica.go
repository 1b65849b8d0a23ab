// Copyright 2025 Takhin Data, Inc.

package replication

import "time"

// UnknownOffset is the sentinel LEO value for a replica whose position has
// not yet been reported, or has been invalidated by a leadership change.
const UnknownOffset int64 = -1

// Replica is a partition-local record of one assigned broker's replication
// state. It is a tagged variant: Local replicas are bound to an open log
// handle and are the only ones that carry a high watermark; Remote
// replicas carry only what the leader has learned about a follower's
// position from fetch/position reports.
//
// Replica has no internal lock. All accessors must be called with the
// owning Partition's lock held.
type Replica struct {
	brokerID int32
	isLocal  bool

	leo           int64
	leoUpdateTime time.Time

	// hw is set only when isLocal is true; it is meaningless (and never
	// read) for remote replicas. While this broker leads the partition it
	// tracks the ISR-wide committed offset (maybeIncrementLeaderHW); while
	// following, it tracks min(own LEO, leader's advertised HW) so the
	// value checkpointed to disk (Coordinator.checkpointHighWatermarks)
	// reflects this broker's own view of what is safely committed even if
	// it never leads the partition.
	hw int64
}

// NewLocalReplica constructs the replica record for this broker itself.
// leo is the local log's current end offset; hw is the clamped, recovered
// high watermark computed by the caller (see Partition.getOrCreateReplica).
func NewLocalReplica(brokerID int32, leo, hw int64) *Replica {
	return &Replica{
		brokerID:      brokerID,
		isLocal:       true,
		leo:           leo,
		leoUpdateTime: time.Now(),
		hw:            hw,
	}
}

// NewRemoteReplica constructs the replica record the leader keeps for a
// follower broker. Its LEO is UnknownOffset until the follower's first
// position report arrives.
func NewRemoteReplica(brokerID int32) *Replica {
	return &Replica{
		brokerID:      brokerID,
		isLocal:       false,
		leo:           UnknownOffset,
		leoUpdateTime: time.Now(),
	}
}

// BrokerID returns the broker this replica record describes.
func (r *Replica) BrokerID() int32 { return r.brokerID }

// IsLocal reports whether this replica is bound to this broker's own log.
func (r *Replica) IsLocal() bool { return r.isLocal }

// LEO returns the replica's log end offset.
func (r *Replica) LEO() int64 { return r.leo }

// LEOUpdateTime returns when the LEO was last set.
func (r *Replica) LEOUpdateTime() time.Time { return r.leoUpdateTime }

// SetLEO stamps the update time atomically with the new value.
func (r *Replica) SetLEO(offset int64) {
	r.leo = offset
	r.leoUpdateTime = time.Now()
}

// ResetLEO invalidates the replica's LEO, used when a leadership change
// makes the prior value's provenance (a past epoch) no longer authoritative.
func (r *Replica) ResetLEO() {
	r.leo = UnknownOffset
	r.leoUpdateTime = time.Now()
}

// HighWatermark returns the local replica's high watermark: the
// ISR-committed offset while leading, or this follower's own last-known
// safe offset while following. Only meaningful for the Local replica.
func (r *Replica) HighWatermark() int64 { return r.hw }

// SetHighWatermark sets the local replica's high watermark.
func (r *Replica) SetHighWatermark(hw int64) { r.hw = hw }
