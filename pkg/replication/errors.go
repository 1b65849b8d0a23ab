// Copyright 2025 Takhin Data, Inc.

package replication

import (
	"errors"

	"github.com/brokerforge/replicore/pkg/kafka/protocol"
)

// ErrNotAssignedReplica is returned from recordFollowerPosition when the
// reporting broker is not a member of the partition's assigned replicas.
// Kafka's real wire protocol has no dedicated error code for this case in
// the inter-broker control plane this package implements, so it is a
// coordinator-local addition rather than a pkg/kafka/protocol constant.
const ErrNotAssignedReplica protocol.ErrorCode = 1001

var (
	errNotLeader         = errors.New("replication: not leader for partition")
	errNewLeaderNotKnown = errors.New("replication: designated leader not in live leaders")
)

// errorCodeString renders the handful of codes this package returns in
// log messages without pulling in the full protocol string table.
func errorCodeString(code protocol.ErrorCode) string {
	switch code {
	case protocol.None:
		return "NONE"
	case protocol.NotLeaderForPartition:
		return "NOT_LEADER_FOR_PARTITION"
	case protocol.UnknownTopicOrPartition:
		return "UNKNOWN_TOPIC_OR_PARTITION"
	case protocol.ReplicaNotAvailable:
		return "REPLICA_NOT_AVAILABLE"
	case protocol.StaleControllerEpoch:
		return "STALE_CONTROLLER_EPOCH"
	case protocol.FencedLeaderEpoch:
		return "STALE_LEADER_EPOCH"
	case ErrNotAssignedReplica:
		return "NOT_ASSIGNED_REPLICA"
	default:
		return "UNKNOWN"
	}
}
