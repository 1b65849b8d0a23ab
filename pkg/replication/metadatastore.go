// Copyright 2025 Takhin Data, Inc.

package replication

import (
	"fmt"
	"sync"
)

// LeaderIsrRecord is the structured document persisted at a partition's
// leader/ISR path in the metadata store: who leads, at what epoch, which
// brokers are in sync, and which controller generation authored the record.
type LeaderIsrRecord struct {
	Leader          int32
	LeaderEpoch     int64
	ISR             []int32
	ControllerEpoch int32
}

// MetadataStore is the compare-and-swap contract the coordinator requires
// of the cluster's strongly consistent metadata tree. The coordinator
// never retries a failed CAS itself (spec: no retries inside updateIsr);
// callers higher up the stack (the ISR-shrink scheduler, follower-position
// reports) naturally re-attempt on their next tick.
type MetadataStore interface {
	// ConditionalUpdate replaces the record at path with payload iff the
	// store's current version equals expectedVersion. Returns the new
	// version on success; ok is false (with the current version, for
	// diagnostics) on a precondition mismatch.
	ConditionalUpdate(path string, payload LeaderIsrRecord, expectedVersion int64) (newVersion int64, ok bool, err error)

	// ConditionalCreate writes payload at path, failing if a record
	// already exists there.
	ConditionalCreate(path string, payload LeaderIsrRecord) (version int64, err error)

	// Read returns the record at path and its version. Returns ok=false
	// if no record exists.
	Read(path string) (payload LeaderIsrRecord, version int64, ok bool, err error)
}

// LeaderIsrPath is the canonical metadata-store path for a partition's
// leader/ISR record. Exported so callers constructing requests or
// inspecting a store directly agree on the same key.
func LeaderIsrPath(topic string, partition int32) string {
	return fmt.Sprintf("/brokers/topics/%s/partitions/%d/state", topic, partition)
}

// InMemoryMetadataStore is a process-local MetadataStore used in tests and
// in single-broker operation. It satisfies the same CAS contract as the
// raft-backed store in pkg/raft without requiring a running Raft cluster.
type InMemoryMetadataStore struct {
	mu      sync.Mutex
	records map[string]versionedRecord
}

type versionedRecord struct {
	payload LeaderIsrRecord
	version int64
}

// NewInMemoryMetadataStore creates an empty store.
func NewInMemoryMetadataStore() *InMemoryMetadataStore {
	return &InMemoryMetadataStore{records: make(map[string]versionedRecord)}
}

func (s *InMemoryMetadataStore) ConditionalUpdate(path string, payload LeaderIsrRecord, expectedVersion int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[path]
	current := int64(0)
	if exists {
		current = existing.version
	}
	if current != expectedVersion {
		return current, false, nil
	}

	newVersion := current + 1
	s.records[path] = versionedRecord{payload: payload, version: newVersion}
	return newVersion, true, nil
}

func (s *InMemoryMetadataStore) ConditionalCreate(path string, payload LeaderIsrRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[path]; exists {
		return 0, fmt.Errorf("metadata store: path already exists: %s", path)
	}
	s.records[path] = versionedRecord{payload: payload, version: 1}
	return 1, nil
}

func (s *InMemoryMetadataStore) Read(path string) (LeaderIsrRecord, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[path]
	if !exists {
		return LeaderIsrRecord{}, 0, false, nil
	}
	return rec.payload, rec.version, true, nil
}
