// Package keyspace implements the 64-way sharded mapping from key to typed
// value described in spec.md §3.1 and §4.A: the sharded keyspace (component
// A) and the typed value variant entries it stores. Type-specific operators
// (component B, spec.md §4.B) live in internal/values and are thin wrappers
// over the Shard/Keyspace primitives exported here, the way the teacher's
// internal/shard.Shard delegates to a pluggable internal/storage.Store but
// generalized from an opaque byte store to a tagged value variant.
package keyspace

import "time"

// Kind tags the variant held by an Entry. The set is exhaustive per
// spec.md §3.1; no value-level polymorphism is exposed, every internal/values
// operator begins with a Kind check.
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindInteger
	KindHash
	KindList
	KindSet
	KindSortedSet
	KindBitmap
	KindHyperLogLog
	KindGeoSet
)

// String renders a Kind for error messages and admin responses.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindHash:
		return "hash"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindSortedSet:
		return "sortedset"
	case KindBitmap:
		return "bitmap"
	case KindHyperLogLog:
		return "hyperloglog"
	case KindGeoSet:
		return "geoset"
	default:
		return "none"
	}
}

// ZMember is one member of a SortedSet or GeoSet, ordered by (Score, Member)
// per spec.md §4.B (ties broken by member bytes ascending).
type ZMember struct {
	Member string
	Score  float64
}

// Entry is a single keyspace slot: a tagged value variant plus the metadata
// spec.md §3.1 requires (expiration, version, access accounting). Concrete
// typed fields are used instead of `any` to avoid interface boxing on the hot
// path, mirroring ledis's Item struct in the retrieval pack.
type Entry struct {
	ExpiresAt time.Time // zero value means no TTL

	Str    string
	Int    int64
	Hash   map[string]string
	List   *dlist
	Set    map[string]struct{}
	ZSet   *zset
	Bitmap []byte
	HLL    []byte // 2^14 6-bit registers, packed
	Geo    *zset  // member -> 52-bit geohash score, same ordering as ZSet

	Kind    Kind
	Version uint64 // strictly increments on every mutation (WATCH)

	// accessedAt / frequency back the eviction sketch (SPEC_FULL §C).
	accessedAt time.Time
	frequency  uint32
}

// HasTTL reports whether the entry carries an absolute expiration deadline.
func (e *Entry) HasTTL() bool { return !e.ExpiresAt.IsZero() }

// ExpiredAt reports whether the entry's TTL (if any) is <= now.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return e.HasTTL() && !e.ExpiresAt.After(now)
}

// touch updates eviction accounting; called by every keyspace accessor.
func (e *Entry) touch(now time.Time) {
	e.accessedAt = now
	if e.frequency < 1<<31 {
		e.frequency++
	}
}

// clone returns a shallow copy of the entry suitable for CAS comparisons and
// snapshot serialization without holding the shard lock during I/O.
func (e *Entry) clone() *Entry {
	cp := *e
	if e.Hash != nil {
		cp.Hash = make(map[string]string, len(e.Hash))
		for k, v := range e.Hash {
			cp.Hash[k] = v
		}
	}
	if e.Set != nil {
		cp.Set = make(map[string]struct{}, len(e.Set))
		for k := range e.Set {
			cp.Set[k] = struct{}{}
		}
	}
	if e.List != nil {
		cp.List = e.List.clone()
	}
	if e.ZSet != nil {
		cp.ZSet = e.ZSet.clone()
	}
	if e.Geo != nil {
		cp.Geo = e.Geo.clone()
	}
	if e.Bitmap != nil {
		cp.Bitmap = append([]byte(nil), e.Bitmap...)
	}
	if e.HLL != nil {
		cp.HLL = append([]byte(nil), e.HLL...)
	}
	return &cp
}

// estimateSize returns an approximate in-memory footprint in bytes, used by
// the eviction sketch (SPEC_FULL §C) to compare against
// kv_store.max_memory_bytes. It is deliberately rough: real per-object
// accounting would need runtime.MemStats-level introspection no pack example
// attempts for a map-of-maps value store.
func (e *Entry) estimateSize() int {
	const overhead = 64 // struct + map/slice headers, approximate
	size := overhead + len(e.Str) + 8
	for k, v := range e.Hash {
		size += len(k) + len(v) + 16
	}
	if e.List != nil {
		size += e.List.Len() * 32
	}
	for k := range e.Set {
		size += len(k) + 16
	}
	if e.ZSet != nil {
		size += e.ZSet.Len() * 40
	}
	if e.Geo != nil {
		size += e.Geo.Len() * 40
	}
	size += len(e.Bitmap) + len(e.HLL)
	return size
}

// NewEntry creates an empty entry of the given kind with zero-value storage
// for that kind allocated, ready for an internal/values operator to
// populate. Exported because dlist/zset are unexported types: operators in
// internal/values can call methods on Entry.List/Entry.ZSet/Entry.Geo
// without naming their type, but need this constructor to allocate one in
// the first place.
func NewEntry(kind Kind) *Entry {
	e := &Entry{Kind: kind}
	switch kind {
	case KindHash:
		e.Hash = make(map[string]string)
	case KindList:
		e.List = newDlist()
	case KindSet:
		e.Set = make(map[string]struct{})
	case KindSortedSet:
		e.ZSet = newZSet()
	case KindGeoSet:
		e.Geo = newZSet()
	}
	return e
}
