// Copyright 2025 Takhin Data, Inc.

package replication

import "github.com/brokerforge/replicore/pkg/kafka/protocol"

// BrokerEndpoint is the minimal broker descriptor the controller supplies
// alongside a LeaderAndIsrRequest so followers know where to fetch from.
type BrokerEndpoint struct {
	ID   int32
	Host string
	Port int
}

// PartitionState is the controller's authoritative leader/ISR tuple for a
// single partition, as carried inside a LeaderAndIsrRequest.
type PartitionState struct {
	Topic             string
	Partition         int32
	ReplicationFactor int16
	AR                []int32 // assigned replicas
	Leader            int32
	LeaderEpoch       int64
	ISR               []int32
	ZkVersion         int64
	ControllerEpoch   int32
}

// LeaderAndIsrRequest is the Go-struct shape of the controller's leadership
// assignment message. It is consumed directly by Coordinator.BecomeLeaderOrFollower;
// no wire encoding exists for it, since Kafka wire framing for the
// inter-broker control plane is out of scope for this package.
type LeaderAndIsrRequest struct {
	ControllerID    int32
	ControllerEpoch int32
	CorrelationID   int32
	Partitions      []PartitionState
	LiveLeaders     []BrokerEndpoint
}

// LeaderAndIsrResponse reports a per-partition error code plus a
// request-level code (set when the whole request was rejected, e.g. by
// the controller-epoch fence, before any partition was examined).
type LeaderAndIsrResponse struct {
	ErrorCode  protocol.ErrorCode
	Partitions map[PartitionIdentity]protocol.ErrorCode
}

// StopReplicaRequest asks the coordinator to stop serving (and optionally
// delete) the listed partitions.
type StopReplicaRequest struct {
	ControllerID     int32
	ControllerEpoch  int32
	CorrelationID    int32
	DeletePartitions bool
	Partitions       []PartitionIdentity
}

// StopReplicaResponse reports a per-partition error code plus a
// request-level code.
type StopReplicaResponse struct {
	ErrorCode  protocol.ErrorCode
	Partitions map[PartitionIdentity]protocol.ErrorCode
}

// PartitionIdentity uniquely identifies a partition cluster-wide.
type PartitionIdentity struct {
	Topic     string
	Partition int32
}
