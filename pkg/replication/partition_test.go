// Copyright 2025 Takhin Data, Inc.

package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerforge/replicore/pkg/storage/log"
)

func newTestPartition(t *testing.T, localBrokerID int32) (*Partition, *InMemoryMetadataStore) {
	t.Helper()
	dir := t.TempDir()
	store := NewInMemoryMetadataStore()
	opener := func(id PartitionIdentity) (*log.Log, error) {
		return log.NewLog(log.LogConfig{Dir: dir, MaxSegmentSize: 1024 * 1024})
	}
	checkpointed := func(id PartitionIdentity) int64 { return 0 }
	return NewPartition(PartitionIdentity{Topic: "test-topic", Partition: 0}, localBrokerID, opener, checkpointed, store), store
}

func TestPartitionMakeLeader(t *testing.T) {
	p, _ := newTestPartition(t, 1)

	err := p.MakeLeader(100, PartitionState{
		Topic: "test-topic", Partition: 0,
		AR: []int32{1, 2, 3}, Leader: 1, LeaderEpoch: 0,
		ISR: []int32{1, 2, 3}, ZkVersion: 0, ControllerEpoch: 1,
	}, 1)
	require.NoError(t, err)

	assert.True(t, p.IsLeader())
	assert.ElementsMatch(t, []int32{1, 2, 3}, p.AR())
	assert.ElementsMatch(t, []int32{1, 2, 3}, p.ISR())
}

func TestPartitionAppendAndRead(t *testing.T) {
	p, _ := newTestPartition(t, 1)
	require.NoError(t, p.MakeLeader(100, PartitionState{
		Topic: "test-topic", Partition: 0,
		AR: []int32{1}, Leader: 1, LeaderEpoch: 0,
		ISR: []int32{1}, ZkVersion: 0, ControllerEpoch: 1,
	}, 1))

	offset, err := p.AppendMessagesToLeader([]byte("key1"), []byte("value1"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)

	record, err := p.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("key1"), record.Key)

	// Sole ISR member is the leader itself, so the HW advances immediately.
	assert.Equal(t, int64(1), p.HighWatermark())
}

func TestPartitionHighWatermarkWaitsForFollowers(t *testing.T) {
	p, _ := newTestPartition(t, 1)
	require.NoError(t, p.MakeLeader(100, PartitionState{
		Topic: "test-topic", Partition: 0,
		AR: []int32{1, 2}, Leader: 1, LeaderEpoch: 0,
		ISR: []int32{1, 2}, ZkVersion: 0, ControllerEpoch: 1,
	}, 1))

	_, err := p.AppendMessagesToLeader([]byte("k"), []byte("v"))
	require.NoError(t, err)

	// Follower 2's LEO is still unknown, so the HW cannot advance past 0.
	assert.Equal(t, int64(0), p.HighWatermark())

	code, err := p.RecordFollowerPosition(2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.HighWatermark())
	_ = code
}

func TestPartitionMakeFollowerRejectsUnknownLeader(t *testing.T) {
	p, _ := newTestPartition(t, 2)

	err := p.MakeFollower(100, PartitionState{
		Topic: "test-topic", Partition: 0,
		AR: []int32{1, 2}, Leader: 1, LeaderEpoch: 0,
		ZkVersion: 0, ControllerEpoch: 1,
	}, nil, 1)
	assert.Error(t, err)
	assert.False(t, p.IsLeader())
}

func TestPartitionRecordFollowerPositionRejectsUnassigned(t *testing.T) {
	p, _ := newTestPartition(t, 1)
	require.NoError(t, p.MakeLeader(100, PartitionState{
		Topic: "test-topic", Partition: 0,
		AR: []int32{1, 2}, Leader: 1, LeaderEpoch: 0,
		ISR: []int32{1, 2}, ZkVersion: 0, ControllerEpoch: 1,
	}, 1))

	code, err := p.RecordFollowerPosition(99, 5)
	require.NoError(t, err)
	assert.Equal(t, ErrNotAssignedReplica, code)
}

func TestPartitionMaybeShrinkIsrDropsStuckFollower(t *testing.T) {
	p, _ := newTestPartition(t, 1)
	require.NoError(t, p.MakeLeader(100, PartitionState{
		Topic: "test-topic", Partition: 0,
		AR: []int32{1, 2}, Leader: 1, LeaderEpoch: 0,
		ISR: []int32{1, 2}, ZkVersion: 0, ControllerEpoch: 1,
	}, 1))

	_, err := p.AppendMessagesToLeader([]byte("k"), []byte("v"))
	require.NoError(t, err)

	// Follower 2 never reports a position: its LEOUpdateTime stays at
	// replica-creation time, already older than a 0ms max lag.
	require.NoError(t, p.MaybeShrinkIsr(0, 4000))

	assert.ElementsMatch(t, []int32{1}, p.ISR())
}

func TestPartitionMaybeShrinkIsrDropsSlowFollower(t *testing.T) {
	p, _ := newTestPartition(t, 1)
	require.NoError(t, p.MakeLeader(100, PartitionState{
		Topic: "test-topic", Partition: 0,
		AR: []int32{1, 2}, Leader: 1, LeaderEpoch: 0,
		ISR: []int32{1, 2}, ZkVersion: 0, ControllerEpoch: 1,
	}, 1))

	for i := 0; i < 10; i++ {
		_, err := p.AppendMessagesToLeader([]byte("k"), []byte("v"))
		require.NoError(t, err)
	}
	_, err := p.RecordFollowerPosition(2, 1)
	require.NoError(t, err)

	// Follower 2 is 9 messages behind, over a max of 4.
	require.NoError(t, p.MaybeShrinkIsr(10000, 4))

	assert.ElementsMatch(t, []int32{1}, p.ISR())
}
