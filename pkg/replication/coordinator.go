// Copyright 2025 Takhin Data, Inc.

package replication

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/brokerforge/replicore/pkg/kafka/protocol"
	"github.com/brokerforge/replicore/pkg/logger"
	"github.com/brokerforge/replicore/pkg/storage/log"
)

// Config tunes the coordinator's periodic background tasks and ISR
// membership policy.
type Config struct {
	BrokerID              int32
	LogDir                string
	MaxSegmentSize        int64
	ReplicaLagTimeMaxMs   int64
	ReplicaLagMaxMessages int64
	IsrShrinkIntervalMs   int64
	CheckpointIntervalMs  int64
}

// Coordinator is the per-broker replication coordinator: it owns every
// partition this broker hosts (as leader or follower), fences requests by
// controller epoch, and runs the periodic ISR-shrink and HW-checkpoint
// tasks. It never calls back into the process that constructed it; the
// fetcher controller and metadata store are handed to it (and, in turn, to
// every Partition) as explicit collaborators.
type Coordinator struct {
	brokerID int32
	cfg      Config
	store    MetadataStore
	fetcher  FetcherController
	log      *logger.Logger

	checkpointsLock sync.Mutex
	checkpoints     map[string]*CheckpointStore // log dir -> store

	controllerEpoch int32

	replicaStateChangeLock sync.Mutex
	leaderPartitionsLock   sync.Mutex

	partitions       map[PartitionIdentity]*Partition
	leaderPartitions map[PartitionIdentity]*Partition

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCoordinator constructs a coordinator for one broker. store and
// fetcher are the collaborators every owned Partition will be built
// against; both may be process-local stand-ins in tests.
func NewCoordinator(cfg Config, store MetadataStore, fetcher FetcherController, log *logger.Logger) *Coordinator {
	if cfg.ReplicaLagTimeMaxMs <= 0 {
		cfg.ReplicaLagTimeMaxMs = 10000
	}
	if cfg.ReplicaLagMaxMessages <= 0 {
		cfg.ReplicaLagMaxMessages = 4000
	}
	if cfg.IsrShrinkIntervalMs <= 0 {
		cfg.IsrShrinkIntervalMs = 5000
	}
	if cfg.CheckpointIntervalMs <= 0 {
		cfg.CheckpointIntervalMs = 60000
	}

	return &Coordinator{
		brokerID:         cfg.BrokerID,
		cfg:              cfg,
		store:            store,
		fetcher:          fetcher,
		log:              log,
		checkpoints:      make(map[string]*CheckpointStore),
		partitions:       make(map[PartitionIdentity]*Partition),
		leaderPartitions: make(map[PartitionIdentity]*Partition),
		stopCh:           make(chan struct{}),
	}
}

// Start launches the periodic ISR-shrink and HW-checkpoint background
// tasks. It is safe to call once per Coordinator lifetime.
func (c *Coordinator) Start() {
	c.wg.Add(2)
	go c.runPeriodic(time.Duration(c.cfg.IsrShrinkIntervalMs)*time.Millisecond, c.shrinkIsrs)
	go c.runPeriodic(time.Duration(c.cfg.CheckpointIntervalMs)*time.Millisecond, c.checkpointHighWatermarks)
}

// Shutdown stops the background tasks and the fetcher controller, writes
// one final HW checkpoint synchronously, and closes every owned
// partition's local log.
func (c *Coordinator) Shutdown() error {
	close(c.stopCh)
	c.wg.Wait()
	if c.fetcher != nil {
		c.fetcher.Shutdown()
	}
	c.checkpointHighWatermarks()

	c.replicaStateChangeLock.Lock()
	defer c.replicaStateChangeLock.Unlock()

	var firstErr error
	for _, p := range c.partitions {
		if err := p.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Coordinator) runPeriodic(interval time.Duration, task func()) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			task()
		}
	}
}

func (c *Coordinator) shrinkIsrs() {
	c.leaderPartitionsLock.Lock()
	leaders := make([]*Partition, 0, len(c.leaderPartitions))
	for _, p := range c.leaderPartitions {
		leaders = append(leaders, p)
	}
	c.leaderPartitionsLock.Unlock()

	for _, p := range leaders {
		if err := p.MaybeShrinkIsr(c.cfg.ReplicaLagTimeMaxMs, c.cfg.ReplicaLagMaxMessages); err != nil {
			c.log.Error("isr shrink failed", "topic", p.id.Topic, "partition", p.id.Partition, "error", err)
		}
	}
}

// checkpointHighWatermarks collects, per log directory, the HW of every
// local replica that has an open log — leader or follower alike (spec
// §4.4). A follower's own recovered HW must be persisted too, or a
// restart can never clamp min(checkpointedHW, logEndOffset) for a
// partition this broker only ever followed.
func (c *Coordinator) checkpointHighWatermarks() {
	c.replicaStateChangeLock.Lock()
	byDir := make(map[string]map[PartitionIdentity]int64)
	for id, p := range c.partitions {
		hw, ok := p.LocalHighWatermark()
		if !ok {
			continue
		}
		dir := c.logDirFor(id)
		if byDir[dir] == nil {
			byDir[dir] = make(map[PartitionIdentity]int64)
		}
		byDir[dir][id] = hw
	}
	c.replicaStateChangeLock.Unlock()

	for dir, hw := range byDir {
		store, err := c.checkpointStoreFor(dir)
		if err != nil {
			c.log.Error("open checkpoint store failed", "dir", dir, "error", err)
			continue
		}
		if err := store.Write(hw); err != nil {
			c.log.Fatal("checkpoint write failed", "dir", dir, "error", err)
		}
	}
}

func (c *Coordinator) logDirFor(id PartitionIdentity) string {
	return filepath.Join(c.cfg.LogDir, fmt.Sprintf("%s-%d", id.Topic, id.Partition))
}

// checkpointStoreFor is guarded by its own lock, never replicaStateChangeLock:
// it is reachable from inside Partition.getOrCreateReplica's checkpointedHW
// callback while BecomeLeaderOrFollower still holds replicaStateChangeLock
// across makeLeaders/makeFollowers, and sync.Mutex is not reentrant.
func (c *Coordinator) checkpointStoreFor(dir string) (*CheckpointStore, error) {
	c.checkpointsLock.Lock()
	defer c.checkpointsLock.Unlock()

	if s, ok := c.checkpoints[dir]; ok {
		return s, nil
	}
	s, err := NewCheckpointStore(dir)
	if err != nil {
		return nil, err
	}
	c.checkpoints[dir] = s
	return s, nil
}

func (c *Coordinator) getOrCreatePartition(id PartitionIdentity) *Partition {
	if p, ok := c.partitions[id]; ok {
		return p
	}

	topic, partition := id.Topic, id.Partition
	p := NewPartition(id, c.brokerID,
		func(id PartitionIdentity) (*log.Log, error) {
			return log.NewLog(log.LogConfig{
				Dir:            c.logDirFor(id),
				MaxSegmentSize: c.cfg.MaxSegmentSize,
			})
		},
		func(id PartitionIdentity) int64 {
			store, err := c.checkpointStoreFor(c.logDirFor(id))
			if err != nil {
				return 0
			}
			return store.Read(id)
		},
		c.store,
	)
	c.partitions[id] = p
	c.log.Info("partition registered", "topic", topic, "partition", partition)
	return p
}

// BecomeLeaderOrFollower is the coordinator's entry point for a
// LeaderAndIsrRequest. It fences the whole request on the controller
// epoch, then drives each partition through makeLeader or makeFollower,
// grouping the follower set so their fetchers are torn down, logs
// truncated, and fetchers rebuilt in a single batch rather than one
// partition at a time.
func (c *Coordinator) BecomeLeaderOrFollower(req LeaderAndIsrRequest) LeaderAndIsrResponse {
	c.replicaStateChangeLock.Lock()
	defer c.replicaStateChangeLock.Unlock()

	resp := LeaderAndIsrResponse{Partitions: make(map[PartitionIdentity]protocol.ErrorCode, len(req.Partitions))}

	if req.ControllerEpoch < c.controllerEpoch {
		resp.ErrorCode = protocol.StaleControllerEpoch
		for _, ps := range req.Partitions {
			resp.Partitions[PartitionIdentity{Topic: ps.Topic, Partition: ps.Partition}] = protocol.StaleControllerEpoch
		}
		return resp
	}
	c.controllerEpoch = req.ControllerEpoch

	var toLead, toFollow []PartitionState
	for _, ps := range req.Partitions {
		id := PartitionIdentity{Topic: ps.Topic, Partition: ps.Partition}
		p := c.getOrCreatePartition(id)

		if p.IsInitialized() && p.LeaderEpoch() >= ps.LeaderEpoch {
			resp.Partitions[id] = protocol.FencedLeaderEpoch
			continue
		}

		if ps.Leader == c.brokerID {
			toLead = append(toLead, ps)
		} else {
			toFollow = append(toFollow, ps)
		}
	}

	// A panic partway through a batch must not leave the caller with a
	// response missing entries for partitions we never got to: every
	// partition named in the request gets a slot. Log and re-panic after
	// filling the gaps so any process-fatal behavior a panic is meant to
	// trigger elsewhere in this tree still happens.
	defer func() {
		if r := recover(); r != nil {
			for _, ps := range req.Partitions {
				id := PartitionIdentity{Topic: ps.Topic, Partition: ps.Partition}
				if _, done := resp.Partitions[id]; !done {
					resp.Partitions[id] = protocol.KafkaStorageError
				}
			}
			c.log.Error("panic while processing LeaderAndIsrRequest", "panic", r)
			panic(r)
		}
	}()

	c.makeLeaders(toLead, req.ControllerID, req.CorrelationID, resp.Partitions)
	c.makeFollowers(toFollow, req.ControllerID, req.LiveLeaders, req.CorrelationID, resp.Partitions)

	return resp
}

func (c *Coordinator) makeLeaders(states []PartitionState, controllerID int32, correlationID int32, out map[PartitionIdentity]protocol.ErrorCode) {
	if len(states) == 0 {
		return
	}

	var ids []PartitionIdentity
	for _, ps := range states {
		ids = append(ids, PartitionIdentity{Topic: ps.Topic, Partition: ps.Partition})
	}
	if c.fetcher != nil {
		c.fetcher.RemoveFetcherForPartitions(ids)
	}

	for _, ps := range states {
		id := PartitionIdentity{Topic: ps.Topic, Partition: ps.Partition}
		p := c.getOrCreatePartition(id)
		if err := p.MakeLeader(controllerID, ps, correlationID); err != nil {
			c.log.Error("make leader failed", "topic", id.Topic, "partition", id.Partition, "error", err)
			out[id] = protocol.UnknownTopicOrPartition
			continue
		}
		out[id] = protocol.None

		c.leaderPartitionsLock.Lock()
		c.leaderPartitions[id] = p
		c.leaderPartitionsLock.Unlock()
	}
}

func (c *Coordinator) makeFollowers(states []PartitionState, controllerID int32, liveLeaders []BrokerEndpoint, correlationID int32, out map[PartitionIdentity]protocol.ErrorCode) {
	if len(states) == 0 {
		return
	}

	var ids []PartitionIdentity
	for _, ps := range states {
		ids = append(ids, PartitionIdentity{Topic: ps.Topic, Partition: ps.Partition})
	}
	if c.fetcher != nil {
		c.fetcher.RemoveFetcherForPartitions(ids)
	}

	targets := make(map[PartitionIdentity]FetchTarget)
	for _, ps := range states {
		id := PartitionIdentity{Topic: ps.Topic, Partition: ps.Partition}
		p := c.getOrCreatePartition(id)

		if err := p.Truncate(); err != nil {
			c.log.Error("follower truncate failed", "topic", id.Topic, "partition", id.Partition, "error", err)
			out[id] = protocol.UnknownTopicOrPartition
			continue
		}

		if err := p.MakeFollower(controllerID, ps, liveLeaders, correlationID); err != nil {
			c.log.Warn("make follower aborted", "topic", id.Topic, "partition", id.Partition, "error", err)
			out[id] = protocol.UnknownTopicOrPartition
			continue
		}
		out[id] = protocol.None

		targets[id] = FetchTarget{LeaderBroker: ps.Leader, InitialOffset: p.LogEndOffset()}

		c.leaderPartitionsLock.Lock()
		delete(c.leaderPartitions, id)
		c.leaderPartitionsLock.Unlock()
	}

	if c.fetcher != nil && len(targets) > 0 {
		c.fetcher.AddFetcherForPartitions(targets)
	}
}

// StopReplicas services a StopReplicaRequest: fetchers are stopped first,
// then each named partition is removed (optionally deleting its log).
func (c *Coordinator) StopReplicas(req StopReplicaRequest) StopReplicaResponse {
	c.replicaStateChangeLock.Lock()
	defer c.replicaStateChangeLock.Unlock()

	resp := StopReplicaResponse{Partitions: make(map[PartitionIdentity]protocol.ErrorCode, len(req.Partitions))}

	if req.ControllerEpoch < c.controllerEpoch {
		resp.ErrorCode = protocol.StaleControllerEpoch
		for _, id := range req.Partitions {
			resp.Partitions[id] = protocol.StaleControllerEpoch
		}
		return resp
	}

	if c.fetcher != nil {
		c.fetcher.RemoveFetcherForPartitions(req.Partitions)
	}

	for _, id := range req.Partitions {
		p, ok := c.partitions[id]
		if !ok {
			resp.Partitions[id] = protocol.UnknownTopicOrPartition
			continue
		}

		c.leaderPartitionsLock.Lock()
		delete(c.leaderPartitions, id)
		c.leaderPartitionsLock.Unlock()

		if !req.DeletePartitions {
			resp.Partitions[id] = protocol.None
			continue
		}

		if err := p.Remove(); err != nil {
			c.log.Error("stop replica failed", "topic", id.Topic, "partition", id.Partition, "error", err)
			resp.Partitions[id] = protocol.UnknownTopicOrPartition
			continue
		}
		delete(c.partitions, id)
		resp.Partitions[id] = protocol.None
	}

	return resp
}

// RecordFollowerPosition routes a fetcher's position report to the named
// partition. Exposed so a FetcherController (which holds only Partition
// handles, not the Coordinator) can still be wired through this entry
// point when the wiring prefers to go through the coordinator instead of
// calling Partition.RecordFollowerPosition directly.
func (c *Coordinator) RecordFollowerPosition(id PartitionIdentity, brokerID int32, offset int64) {
	c.replicaStateChangeLock.Lock()
	p, ok := c.partitions[id]
	c.replicaStateChangeLock.Unlock()
	if !ok {
		return
	}
	if _, err := p.RecordFollowerPosition(brokerID, offset); err != nil {
		c.log.Error("record follower position failed", "topic", id.Topic, "partition", id.Partition, "error", err)
	}
}

// Partition returns the partition this broker hosts for id, if any. Used
// by a PartitionLookup implementation that wires multiple brokers'
// coordinators together in-process.
func (c *Coordinator) Partition(id PartitionIdentity) (*Partition, bool) {
	c.replicaStateChangeLock.Lock()
	defer c.replicaStateChangeLock.Unlock()
	p, ok := c.partitions[id]
	return p, ok
}
