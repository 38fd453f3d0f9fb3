// Package stream implements the partitioned append-only event stream of
// spec.md §3.3 and §4.H: fixed partition counts per stream, offset-indexed
// records, and named consumer groups that track a committed offset per
// partition. Grounded on internal/keyspace.Keyspace for the hashing and
// locking idiom (FNV-1a partition routing, one lock per partition, taken
// one at a time) and on the teacher's internal/cluster shard-assignment bookkeeping
// for the consumer-group membership/ownership bookkeeping style.
package stream

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivellm/synap/internal/synaperr"
)

// Record is one published event (spec.md §3.3).
type Record struct {
	Offset    uint64
	Timestamp time.Time
	Event     string
	Data      string
}

// partition is one append-only shard of a stream.
type partition struct {
	mu         sync.RWMutex
	records    []Record
	nextOffset uint64
	minOffset  uint64 // retention horizon: offsets below this have been dropped

	retentionCount int           // 0 == unbounded
	retentionAge   time.Duration // 0 == unbounded
}

// Group is a named consumer-group offset table over a stream (spec.md §3.3
// "consumer group ... holds a committed offset per partition and a set of
// live consumer ids").
type Group struct {
	mu        sync.Mutex
	committed []uint64          // per-partition committed offset
	owners    map[int]string    // partition index -> owning consumer id
	members   map[string]bool   // live consumer ids
}

// Stream is a named stream (room) with a fixed partition count set at
// creation (spec.md §3.3).
type Stream struct {
	name       string
	partitions []*partition

	mu      sync.Mutex
	groups  map[string]*Group
	roundRobin uint64
}

func newStream(name string, numPartitions int) *Stream {
	s := &Stream{
		name:   name,
		groups: make(map[string]*Group),
	}
	s.partitions = make([]*partition, numPartitions)
	for i := range s.partitions {
		s.partitions[i] = &partition{}
	}
	return s
}

// Manager owns every named stream in the engine.
type Manager struct {
	log zerolog.Logger

	mu      sync.RWMutex
	streams map[string]*Stream
}

// New constructs an empty stream Manager.
func New(log zerolog.Logger) *Manager {
	return &Manager{
		log:     log.With().Str("component", "stream").Logger(),
		streams: make(map[string]*Stream),
	}
}

// CreateRoom creates a stream with the given fixed partition count. Returns
// false if a stream by that name already exists.
func (m *Manager) CreateRoom(name string, numPartitions int) bool {
	if numPartitions < 1 {
		numPartitions = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[name]; ok {
		return false
	}
	m.streams[name] = newStream(name, numPartitions)
	return true
}

// DeleteRoom removes a stream entirely.
func (m *Manager) DeleteRoom(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[name]; !ok {
		return false
	}
	delete(m.streams, name)
	return true
}

// ListRooms returns every stream name currently registered.
func (m *Manager) ListRooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.streams))
	for name := range m.streams {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) get(name string) (*Stream, error) {
	m.mu.RLock()
	s, ok := m.streams[name]
	m.mu.RUnlock()
	if !ok {
		return nil, synaperr.New(synaperr.NotFound, "stream '"+name+"' does not exist")
	}
	return s, nil
}

// partitionFor resolves the target partition index for a publish: hash(key)
// mod P if a partition key is given, else round-robin (spec.md §4.H
// "Partitioning").
func (s *Stream) partitionFor(partitionKey string) int {
	if partitionKey == "" {
		idx := s.roundRobin % uint64(len(s.partitions))
		s.roundRobin++
		return int(idx)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(partitionKey))
	return int(h.Sum64() % uint64(len(s.partitions)))
}

// Publish appends a record to the chosen partition and returns its assigned
// offset (spec.md §4.H "Publish").
func (m *Manager) Publish(streamName, event, data, partitionKey string) (partitionIdx int, offset uint64, err error) {
	s, err := m.get(streamName)
	if err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	idx := s.partitionFor(partitionKey)
	s.mu.Unlock()

	p := s.partitions[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	offset = p.nextOffset
	p.nextOffset++
	p.records = append(p.records, Record{
		Offset:    offset,
		Timestamp: time.Now(),
		Event:     event,
		Data:      data,
	})
	p.enforceRetentionLocked()
	return idx, offset, nil
}

// Read returns records from a partition starting at fromOffset, up to
// limit, in offset order (spec.md §4.H "Read"). gap reports whether
// fromOffset has already fallen below the partition's retention horizon, in
// which case the caller must advance to MinOffset.
func (m *Manager) Read(streamName string, partitionIdx int, fromOffset uint64, limit int) (records []Record, gap bool, err error) {
	s, err := m.get(streamName)
	if err != nil {
		return nil, false, err
	}
	if partitionIdx < 0 || partitionIdx >= len(s.partitions) {
		return nil, false, synaperr.New(synaperr.OutOfRange, "partition index out of range")
	}
	p := s.partitions[partitionIdx]
	p.mu.RLock()
	defer p.mu.RUnlock()
	if fromOffset < p.minOffset {
		return nil, true, nil
	}
	out := make([]Record, 0, limit)
	for _, r := range p.records {
		if r.Offset < fromOffset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, r)
	}
	return out, false, nil
}

// PartitionCount returns the fixed partition count of streamName.
func (m *Manager) PartitionCount(streamName string) (int, error) {
	s, err := m.get(streamName)
	if err != nil {
		return 0, err
	}
	return len(s.partitions), nil
}

// PartitionFor exposes the routing decision Publish would make, so callers
// (gateway, tests) can predict which partition a given key lands in without
// publishing.
func (m *Manager) PartitionFor(streamName, partitionKey string) (int, error) {
	s, err := m.get(streamName)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if partitionKey == "" {
		return 0, synaperr.New(synaperr.OutOfRange, "partition key required to predict routing")
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(partitionKey))
	return int(h.Sum64() % uint64(len(s.partitions))), nil
}

// SetRetention configures count-based and/or time-based retention for every
// partition of streamName (spec.md §4.H "Retention").
func (m *Manager) SetRetention(streamName string, count int, age time.Duration) error {
	s, err := m.get(streamName)
	if err != nil {
		return err
	}
	for _, p := range s.partitions {
		p.mu.Lock()
		p.retentionCount = count
		p.retentionAge = age
		p.enforceRetentionLocked()
		p.mu.Unlock()
	}
	return nil
}

// enforceRetentionLocked drops records from the head per the configured
// count/age limits, advancing minOffset. Caller must hold p.mu (write).
func (p *partition) enforceRetentionLocked() {
	if p.retentionCount > 0 {
		for len(p.records) > p.retentionCount {
			p.minOffset = p.records[0].Offset + 1
			p.records = p.records[1:]
		}
	}
	if p.retentionAge > 0 {
		cutoff := time.Now().Add(-p.retentionAge)
		i := 0
		for i < len(p.records) && p.records[i].Timestamp.Before(cutoff) {
			i++
		}
		if i > 0 {
			p.minOffset = p.records[i-1].Offset + 1
			p.records = p.records[i:]
		}
	}
}

// CreateGroup registers a named consumer group on streamName, initializing
// every partition's committed offset to 0.
func (m *Manager) CreateGroup(streamName, groupName string) error {
	s, err := m.get(streamName)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupName]; ok {
		return nil
	}
	s.groups[groupName] = &Group{
		committed: make([]uint64, len(s.partitions)),
		owners:    make(map[int]string),
		members:   make(map[string]bool),
	}
	return nil
}

func (s *Stream) group(name string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		return nil, synaperr.New(synaperr.NotFound, "consumer group '"+name+"' does not exist")
	}
	return g, nil
}

// ConsumeGroup returns the next batch of records after consumerID's owned
// partitions' committed offsets (spec.md §4.H "Consumer groups"):
// registering the consumer, (re)assigning partitions across live members,
// and returning records only for partitions this consumer currently owns.
// Committed offsets advance past the returned records.
func (m *Manager) ConsumeGroup(streamName, groupName, consumerID string, limitPerPartition int) (map[int][]Record, error) {
	s, err := m.get(streamName)
	if err != nil {
		return nil, err
	}
	g, err := s.group(groupName)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.members[consumerID] = true
	rebalanceLocked(g, len(s.partitions))
	owned := make([]int, 0)
	for idx, owner := range g.owners {
		if owner == consumerID {
			owned = append(owned, idx)
		}
	}
	g.mu.Unlock()
	sort.Ints(owned)

	out := make(map[int][]Record)
	for _, idx := range owned {
		p := s.partitions[idx]
		p.mu.RLock()
		g.mu.Lock()
		from := g.committed[idx]
		g.mu.Unlock()
		var batch []Record
		for _, r := range p.records {
			if r.Offset < from {
				continue
			}
			if len(batch) >= limitPerPartition {
				break
			}
			batch = append(batch, r)
		}
		p.mu.RUnlock()
		if len(batch) > 0 {
			out[idx] = batch
			g.mu.Lock()
			g.committed[idx] = batch[len(batch)-1].Offset + 1
			g.mu.Unlock()
		}
	}
	return out, nil
}

// Commit manually advances groupName's committed offset for partitionIdx,
// for callers that want to control acknowledgment independent of
// ConsumeGroup's auto-advance.
func (m *Manager) Commit(streamName, groupName string, partitionIdx int, offset uint64) error {
	s, err := m.get(streamName)
	if err != nil {
		return err
	}
	g, err := s.group(groupName)
	if err != nil {
		return err
	}
	if partitionIdx < 0 || partitionIdx >= len(s.partitions) {
		return synaperr.New(synaperr.OutOfRange, "partition index out of range")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.committed[partitionIdx] = offset
	return nil
}

// rebalanceLocked assigns every partition to exactly one live group member,
// stable across calls: a partition already owned by a still-live member
// keeps its owner (spec.md §4.H "ownership reassigns when membership
// changes"). Caller must hold g.mu.
func rebalanceLocked(g *Group, numPartitions int) {
	liveMembers := make([]string, 0, len(g.members))
	for id, live := range g.members {
		if live {
			liveMembers = append(liveMembers, id)
		}
	}
	sort.Strings(liveMembers)
	if len(liveMembers) == 0 {
		g.owners = make(map[int]string)
		return
	}
	for idx, owner := range g.owners {
		stillLive := false
		for _, m := range liveMembers {
			if m == owner {
				stillLive = true
				break
			}
		}
		if !stillLive {
			delete(g.owners, idx)
		}
	}
	next := 0
	for idx := 0; idx < numPartitions; idx++ {
		if _, owned := g.owners[idx]; owned {
			continue
		}
		g.owners[idx] = liveMembers[next%len(liveMembers)]
		next++
	}
}

// Stats summarizes a stream's retained record counts per partition, for
// stream.stats.
type Stats struct {
	Partitions []PartitionStats
}

// PartitionStats is one partition's offset bookkeeping.
type PartitionStats struct {
	MinOffset  uint64
	NextOffset uint64
	Retained   int
}

// Stats returns the current per-partition retention bookkeeping for
// streamName.
func (m *Manager) Stats(streamName string) (Stats, error) {
	s, err := m.get(streamName)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Partitions: make([]PartitionStats, len(s.partitions))}
	for i, p := range s.partitions {
		p.mu.RLock()
		out.Partitions[i] = PartitionStats{
			MinOffset:  p.minOffset,
			NextOffset: p.nextOffset,
			Retained:   len(p.records),
		}
		p.mu.RUnlock()
	}
	return out, nil
}

// PartitionSnapshot is one partition's serializable state.
type PartitionSnapshot struct {
	Records        []Record
	NextOffset     uint64
	MinOffset      uint64
	RetentionCount int
	RetentionAge   time.Duration
}

// GroupSnapshot is one consumer group's serializable state.
type GroupSnapshot struct {
	Name      string
	Committed []uint64
	Owners    map[int]string
	Members   []string
}

// Snapshot is the serializable form of one stream's full state, used by
// internal/snapshot (spec.md §4.E).
type Snapshot struct {
	Name       string
	Partitions []PartitionSnapshot
	Groups     []GroupSnapshot
}

// ExportState captures every stream's full state for a snapshot walk.
func (m *Manager) ExportState() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.streams))
	for name, s := range m.streams {
		snap := Snapshot{Name: name}
		for _, p := range s.partitions {
			p.mu.RLock()
			snap.Partitions = append(snap.Partitions, PartitionSnapshot{
				Records:        append([]Record(nil), p.records...),
				NextOffset:     p.nextOffset,
				MinOffset:      p.minOffset,
				RetentionCount: p.retentionCount,
				RetentionAge:   p.retentionAge,
			})
			p.mu.RUnlock()
		}
		s.mu.Lock()
		for gname, g := range s.groups {
			g.mu.Lock()
			gs := GroupSnapshot{
				Name:      gname,
				Committed: append([]uint64(nil), g.committed...),
				Owners:    make(map[int]string, len(g.owners)),
			}
			for idx, owner := range g.owners {
				gs.Owners[idx] = owner
			}
			for id, live := range g.members {
				if live {
					gs.Members = append(gs.Members, id)
				}
			}
			g.mu.Unlock()
			snap.Groups = append(snap.Groups, gs)
		}
		s.mu.Unlock()
		out = append(out, snap)
	}
	return out
}

// ImportState replaces the manager's entire stream set from snapshots.
func (m *Manager) ImportState(snaps []Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = make(map[string]*Stream, len(snaps))
	for _, snap := range snaps {
		s := newStream(snap.Name, len(snap.Partitions))
		for i, ps := range snap.Partitions {
			s.partitions[i] = &partition{
				records:        append([]Record(nil), ps.Records...),
				nextOffset:     ps.NextOffset,
				minOffset:      ps.MinOffset,
				retentionCount: ps.RetentionCount,
				retentionAge:   ps.RetentionAge,
			}
		}
		for _, gs := range snap.Groups {
			g := &Group{
				committed: append([]uint64(nil), gs.Committed...),
				owners:    make(map[int]string, len(gs.Owners)),
				members:   make(map[string]bool, len(gs.Members)),
			}
			for idx, owner := range gs.Owners {
				g.owners[idx] = owner
			}
			for _, id := range gs.Members {
				g.members[id] = true
			}
			s.groups[gs.Name] = g
		}
		m.streams[snap.Name] = s
	}
}
