// Copyright 2025 Takhin Data, Inc.

package replication

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brokerforge/replicore/pkg/kafka/protocol"
	"github.com/brokerforge/replicore/pkg/metrics"
	"github.com/brokerforge/replicore/pkg/storage/log"
)

// partitionRole tracks which side of the leader/follower state machine a
// Partition is currently on. It exists for assertions and logging only;
// the coordinator branches on leaderReplicaID, not on role.
type partitionRole int

const (
	roleUninitialized partitionRole = iota
	roleLeader
	roleFollower
	roleRemoved
)

// LogOpener opens (creating if absent) the local broker's log for a
// partition. Supplied at Partition construction rather than stored as a
// back-reference to any wider log-manager object.
type LogOpener func(id PartitionIdentity) (*log.Log, error)

// CheckpointReader returns the last checkpointed high watermark for a
// partition, or 0 if none was ever recorded.
type CheckpointReader func(id PartitionIdentity) int64

// Partition is the per-partition leader/follower state machine: it owns
// the assigned replica set, the in-sync replica set, the high watermark,
// and the partition's local log handle. It takes its external
// collaborators (log opener, metadata store) at construction so that it
// never holds a pointer back to the Coordinator that owns it.
type Partition struct {
	id                PartitionIdentity
	localBrokerID     int32
	replicationFactor int16

	assignedReplicas map[int32]*Replica
	inSyncReplicas   map[int32]*Replica
	leaderReplicaID  *int32
	leaderEpoch      int64
	controllerEpoch  int32
	zkVersion        int64
	role             partitionRole

	openLog        LogOpener
	checkpointedHW CheckpointReader
	store          MetadataStore
	localLog       *log.Log

	mu sync.Mutex
}

// NewPartition constructs an uninitialized Partition. It is populated the
// first time a controller request mentions it and passes the epoch fence.
func NewPartition(id PartitionIdentity, localBrokerID int32, openLog LogOpener, checkpointedHW CheckpointReader, store MetadataStore) *Partition {
	return &Partition{
		id:               id,
		localBrokerID:    localBrokerID,
		assignedReplicas: make(map[int32]*Replica),
		inSyncReplicas:   make(map[int32]*Replica),
		openLog:          openLog,
		checkpointedHW:   checkpointedHW,
		store:            store,
		role:             roleUninitialized,
	}
}

// Identity returns the partition's (topic, index) identity.
func (p *Partition) Identity() PartitionIdentity { return p.id }

// getOrCreateReplica returns the Replica record for brokerID, creating it
// if absent. For the local broker this also opens the log (creating it if
// it does not yet exist) and clamps the initial HW to
// min(checkpointedHW, logEndOffset) so a HW that outlived a truncated log
// tail after a crash cannot be trusted past what the log actually holds.
// Caller must hold p.mu.
func (p *Partition) getOrCreateReplica(brokerID int32) (*Replica, error) {
	if r, ok := p.assignedReplicas[brokerID]; ok {
		return r, nil
	}

	var r *Replica
	if brokerID == p.localBrokerID {
		if p.localLog == nil {
			lg, err := p.openLog(p.id)
			if err != nil {
				return nil, fmt.Errorf("open log for %s/%d: %w", p.id.Topic, p.id.Partition, err)
			}
			p.localLog = lg
		}
		leo := p.localLog.HighWaterMark()
		checkpointed := p.checkpointedHW(p.id)
		hw := checkpointed
		if leo < hw {
			hw = leo
		}
		r = NewLocalReplica(brokerID, leo, hw)
	} else {
		r = NewRemoteReplica(brokerID)
	}

	p.assignedReplicas[brokerID] = r
	return r, nil
}

// syncAssignedReplicas brings assignedReplicas exactly in line with ar:
// replicas no longer present are dropped, new ones are created via
// getOrCreateReplica, and every remote replica's LEO is reset since it was
// last observed under a previous epoch. Caller must hold p.mu.
func (p *Partition) syncAssignedReplicas(ar []int32) error {
	wanted := make(map[int32]bool, len(ar))
	for _, brokerID := range ar {
		wanted[brokerID] = true
		if _, err := p.getOrCreateReplica(brokerID); err != nil {
			return err
		}
	}

	for brokerID := range p.assignedReplicas {
		if !wanted[brokerID] {
			delete(p.assignedReplicas, brokerID)
		}
	}

	for brokerID, r := range p.assignedReplicas {
		if brokerID != p.localBrokerID {
			r.ResetLEO()
		}
	}

	p.replicationFactor = int16(len(ar))
	return nil
}

// MakeLeader transitions the partition to leader under the epoch and ISR
// carried by the controller's request.
func (p *Partition) MakeLeader(controllerID int32, ps PartitionState, correlationID int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.controllerEpoch = ps.ControllerEpoch

	if err := p.syncAssignedReplicas(ps.AR); err != nil {
		return err
	}

	newISR := make(map[int32]*Replica, len(ps.ISR))
	for _, brokerID := range ps.ISR {
		if r, ok := p.assignedReplicas[brokerID]; ok {
			newISR[brokerID] = r
		}
	}
	p.inSyncReplicas = newISR

	p.leaderEpoch = ps.LeaderEpoch
	p.zkVersion = ps.ZkVersion
	local := p.localBrokerID
	p.leaderReplicaID = &local
	p.role = roleLeader

	p.maybeIncrementLeaderHW()
	p.publishMetrics()
	return nil
}

// MakeFollower transitions the partition to follower of ps.Leader. It
// refuses to mutate state if that leader is not among the live leaders the
// controller listed. It does not truncate the local log: that is the
// coordinator's responsibility, run after fetchers for this partition are
// stopped.
func (p *Partition) MakeFollower(controllerID int32, ps PartitionState, liveLeaders []BrokerEndpoint, correlationID int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.controllerEpoch = ps.ControllerEpoch

	found := false
	for _, b := range liveLeaders {
		if b.ID == ps.Leader {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("partition %s/%d: leader %d not in live leaders: %w", p.id.Topic, p.id.Partition, ps.Leader, errNewLeaderNotKnown)
	}

	if err := p.syncAssignedReplicas(ps.AR); err != nil {
		return err
	}

	p.inSyncReplicas = make(map[int32]*Replica)
	p.leaderEpoch = ps.LeaderEpoch
	p.zkVersion = ps.ZkVersion
	newLeader := ps.Leader
	p.leaderReplicaID = &newLeader
	p.role = roleFollower

	return nil
}

// RecordFollowerPosition is the leader-only entry point a fetcher calls
// after replaying a batch into a follower's local log.
func (p *Partition) RecordFollowerPosition(followerBrokerID int32, offset int64) (protocol.ErrorCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.assignedReplicas[followerBrokerID]
	if !ok {
		return ErrNotAssignedReplica, nil
	}
	r.SetLEO(offset)

	local, isLeader := p.localLeaderReplica()
	if isLeader {
		if _, inISR := p.inSyncReplicas[followerBrokerID]; !inISR && offset >= local.HighWatermark() {
			if err := p.expandIsr(followerBrokerID, r); err != nil {
				return protocol.None, err
			}
		}
		p.maybeIncrementLeaderHW()
	}

	p.publishMetrics()
	return protocol.None, nil
}

// expandIsr adds replicaID to the ISR via updateIsr, applying the new ISR
// locally only if the metadata-store CAS succeeds. Caller holds p.mu.
func (p *Partition) expandIsr(replicaID int32, r *Replica) error {
	ids := p.isrBrokerIDs()
	ids = append(ids, replicaID)

	_, ok, err := p.updateIsr(ids)
	if err != nil {
		return err
	}
	if ok {
		p.inSyncReplicas[replicaID] = r
		metrics.RecordISRExpand(p.id.Topic, p.id.Partition)
	}
	return nil
}

// maybeIncrementLeaderHW recomputes the HW as the minimum LEO over all ISR
// members, and advances it if that candidate is greater than the current
// HW. An ISR member whose LEO is still UnknownOffset holds the candidate
// at -1, so the HW waits for that member's first position report. It
// never decreases the HW. Caller holds p.mu; no-op unless this broker
// currently leads the partition.
func (p *Partition) maybeIncrementLeaderHW() {
	local, ok := p.localLeaderReplica()
	if !ok {
		return
	}

	candidate := local.LEO()
	for brokerID, r := range p.inSyncReplicas {
		if brokerID == p.localBrokerID {
			continue
		}
		if r.LEO() < candidate {
			candidate = r.LEO()
		}
	}

	if candidate > local.HighWatermark() {
		local.SetHighWatermark(candidate)
	}
}

// MaybeShrinkIsr drops ISR members that are either stuck (behind the
// leader's LEO and not updated within maxLagTimeMs) or slow (too many
// messages behind). Called periodically by the coordinator, only for
// partitions this broker leads.
func (p *Partition) MaybeShrinkIsr(maxLagTimeMs, maxLagMessages int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	local, ok := p.localLeaderReplica()
	if !ok {
		return nil
	}

	now := time.Now()
	var outOfSync []int32
	for brokerID, r := range p.inSyncReplicas {
		if brokerID == p.localBrokerID {
			continue
		}
		stuck := r.LEO() < local.LEO() && now.Sub(r.LEOUpdateTime()) >= time.Duration(maxLagTimeMs)*time.Millisecond
		slow := r.LEO() >= 0 && local.LEO()-r.LEO() > maxLagMessages
		if stuck || slow {
			outOfSync = append(outOfSync, brokerID)
		}
	}

	if len(outOfSync) == 0 {
		return nil
	}

	drop := make(map[int32]bool, len(outOfSync))
	for _, id := range outOfSync {
		drop[id] = true
	}

	var newISRIds []int32
	for brokerID := range p.inSyncReplicas {
		if !drop[brokerID] {
			newISRIds = append(newISRIds, brokerID)
		}
	}
	// The leader is never in outOfSync (the loop above skips it), so
	// newISRIds always retains at least the leader.

	_, ok2, err := p.updateIsr(newISRIds)
	if err != nil {
		return err
	}
	if ok2 {
		newISR := make(map[int32]*Replica, len(newISRIds))
		for _, brokerID := range newISRIds {
			newISR[brokerID] = p.inSyncReplicas[brokerID]
		}
		p.inSyncReplicas = newISR
		metrics.RecordISRShrink(p.id.Topic, p.id.Partition)
		p.maybeIncrementLeaderHW()
	}

	p.publishMetrics()
	return nil
}

// CheckEnoughReplicasReachOffset reports whether requiredAcks worth of
// ISR members have replicated up to requiredOffset.
func (p *Partition) CheckEnoughReplicasReachOffset(requiredOffset int64, requiredAcks int16) (bool, protocol.ErrorCode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.localLeaderReplica(); !ok {
		return false, protocol.NotLeaderForPartition
	}

	count := 0
	for brokerID, r := range p.inSyncReplicas {
		if brokerID == p.localBrokerID || r.LEO() >= requiredOffset {
			count++
		}
	}

	switch {
	case requiredAcks < 0:
		return count >= len(p.inSyncReplicas), protocol.None
	case requiredAcks > 0:
		return count >= int(requiredAcks), protocol.None
	default:
		return true, protocol.None
	}
}

// AppendMessagesToLeader appends one record to the local log (leader-only)
// and advances the HW if the append alone permits it (an ISR of size one).
func (p *Partition) AppendMessagesToLeader(key, value []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	local, ok := p.localLeaderReplica()
	if !ok {
		return 0, fmt.Errorf("append to %s/%d: %w", p.id.Topic, p.id.Partition, errNotLeader)
	}

	offset, err := p.localLog.Append(key, value)
	if err != nil {
		return 0, fmt.Errorf("append to leader log: %w", err)
	}
	local.SetLEO(p.localLog.HighWaterMark())
	p.maybeIncrementLeaderHW()
	p.publishMetrics()
	return offset, nil
}

// appendFromFetcher replays one record fetched from the leader into this
// (follower) partition's local log, updating the local replica's own LEO.
func (p *Partition) appendFromFetcher(record *log.Record) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.localLog == nil {
		return 0, fmt.Errorf("append from fetcher to %s/%d: local log not open", p.id.Topic, p.id.Partition)
	}
	if _, err := p.localLog.Append(record.Key, record.Value); err != nil {
		return 0, fmt.Errorf("append from fetcher: %w", err)
	}
	newLEO := p.localLog.HighWaterMark()
	if r, ok := p.assignedReplicas[p.localBrokerID]; ok {
		r.SetLEO(newLEO)
	}
	return newLEO, nil
}

// AdvanceFollowerHighWatermark is the follower-side counterpart of
// maybeIncrementLeaderHW: a fetcher calls it after replaying records from
// the leader, passing the leader's current HW so this follower's own
// replica records min(leaderHW, own LEO) as its locally-known-safe offset.
// It never decreases the value. No-op if this broker does not have a
// local replica for the partition (log not yet open) or currently leads
// it, since the leader path advances HW on its own terms.
func (p *Partition) AdvanceFollowerHighWatermark(leaderHW int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, isLeader := p.localLeaderReplica(); isLeader {
		return
	}
	r, ok := p.assignedReplicas[p.localBrokerID]
	if !ok {
		return
	}

	candidate := leaderHW
	if r.LEO() < candidate {
		candidate = r.LEO()
	}
	if candidate > r.HighWatermark() {
		r.SetHighWatermark(candidate)
	}
}

// updateIsr attempts a CAS of the partition's leader/ISR record at its
// metadata-store path, preconditioned on the cached zkVersion. On a
// precondition failure the local ISR is left untouched; the caller (a
// periodic ISR-shrink tick or a follower-position report) will see a
// fresh view and retry naturally next time. Caller holds p.mu.
func (p *Partition) updateIsr(newISRBrokerIDs []int32) (int64, bool, error) {
	sorted := append([]int32(nil), newISRBrokerIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	record := LeaderIsrRecord{
		Leader:          p.localBrokerID,
		LeaderEpoch:     p.leaderEpoch,
		ISR:             sorted,
		ControllerEpoch: p.controllerEpoch,
	}

	newVersion, ok, err := p.store.ConditionalUpdate(LeaderIsrPath(p.id.Topic, p.id.Partition), record, p.zkVersion)
	if err != nil {
		return p.zkVersion, false, err
	}
	if !ok {
		return p.zkVersion, false, nil
	}
	p.zkVersion = newVersion
	return newVersion, true, nil
}

// localLeaderReplica returns this broker's own Replica record and true iff
// this broker currently leads the partition. Caller holds p.mu.
func (p *Partition) localLeaderReplica() (*Replica, bool) {
	if p.leaderReplicaID == nil || *p.leaderReplicaID != p.localBrokerID {
		return nil, false
	}
	r, ok := p.assignedReplicas[p.localBrokerID]
	return r, ok
}

func (p *Partition) isrBrokerIDs() []int32 {
	ids := make([]int32, 0, len(p.inSyncReplicas))
	for brokerID := range p.inSyncReplicas {
		ids = append(ids, brokerID)
	}
	return ids
}

// publishMetrics emits the current ISR/replica-count/lag gauges. Caller
// holds p.mu.
func (p *Partition) publishMetrics() {
	local, isLeader := p.localLeaderReplica()
	isrSize := len(p.inSyncReplicas)
	replicasTotal := len(p.assignedReplicas)

	if !isLeader {
		metrics.UpdateReplicationMetrics(p.id.Topic, p.id.Partition, p.localBrokerID, -1, isrSize, replicasTotal)
		return
	}

	for brokerID, r := range p.assignedReplicas {
		if brokerID == p.localBrokerID {
			continue
		}
		lag := int64(-1)
		if r.LEO() != UnknownOffset {
			lag = local.LEO() - r.LEO()
		}
		metrics.UpdateReplicationMetrics(p.id.Topic, p.id.Partition, brokerID, lag, isrSize, replicasTotal)
		metrics.UpdateReplicationLagTime(p.id.Topic, p.id.Partition, brokerID, time.Since(r.LEOUpdateTime()).Milliseconds())
	}
}

// IsLeader reports whether this broker currently leads the partition.
func (p *Partition) IsLeader() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.localLeaderReplica()
	return ok
}

// LeaderEpoch returns the current leader epoch.
func (p *Partition) LeaderEpoch() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leaderEpoch
}

// IsInitialized reports whether this partition has ever been driven
// through makeLeader or makeFollower. A freshly created partition (the
// lazy stub getOrCreatePartition returns for a never-before-seen
// identity) is not subject to the stale-leader-epoch fence, since its
// zero-value leaderEpoch must not reject every topic's very first
// LeaderAndIsr assignment (itself usually epoch 0).
func (p *Partition) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role != roleUninitialized
}

// ZkVersion returns the cached metadata-store version for this partition's
// leader/ISR record.
func (p *Partition) ZkVersion() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zkVersion
}

// ISR returns a snapshot of the current in-sync replica broker IDs.
func (p *Partition) ISR() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isrBrokerIDs()
}

// AR returns a snapshot of the current assigned replica broker IDs.
func (p *Partition) AR() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int32, 0, len(p.assignedReplicas))
	for brokerID := range p.assignedReplicas {
		ids = append(ids, brokerID)
	}
	return ids
}

// HighWatermark returns the leader-local high watermark, or 0 if this
// broker does not lead the partition.
func (p *Partition) HighWatermark() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if local, ok := p.localLeaderReplica(); ok {
		return local.HighWatermark()
	}
	return 0
}

// LocalHighWatermark returns the local replica's high watermark and true,
// regardless of whether this broker currently leads or follows the
// partition, or (0, false) if no local replica exists yet (its log was
// never opened). Used by Coordinator.checkpointHighWatermarks, which must
// persist every local replica's HW, not just a leader's (spec invariant:
// a restart must be able to clamp a followed-only partition's recovered
// HW to what was actually checkpointed).
func (p *Partition) LocalHighWatermark() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.assignedReplicas[p.localBrokerID]
	if !ok {
		return 0, false
	}
	return r.HighWatermark(), true
}

// LogEndOffset returns the local log's end offset, or 0 if no local log is
// open yet.
func (p *Partition) LogEndOffset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.localLog == nil {
		return 0
	}
	return p.localLog.HighWaterMark()
}

// Read reads one record from the local log.
func (p *Partition) Read(offset int64) (*log.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.localLog == nil {
		return nil, fmt.Errorf("read %s/%d: local log not open", p.id.Topic, p.id.Partition)
	}
	return p.localLog.Read(offset)
}

// Truncate discards the local log's suffix at or after the partition's
// current HW. Used by the coordinator when a former leader becomes a
// follower, before any fetcher for this partition is (re)started.
func (p *Partition) Truncate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.localLog == nil {
		return nil
	}
	hw := int64(0)
	if local, ok := p.assignedReplicas[p.localBrokerID]; ok {
		hw = local.HighWatermark()
	}
	return p.localLog.Truncate(hw)
}

// Remove releases the partition's local log handle. Called when the
// controller orders the replica stopped with delete=true.
func (p *Partition) Remove() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.role = roleRemoved
	if p.localLog == nil {
		return nil
	}
	return p.localLog.Close()
}
