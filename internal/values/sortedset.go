package values

import "github.com/hivellm/synap/internal/keyspace"

// ZAddOpts controls ZADD's NX/XX/GT/LT/CH flags (spec.md §4.B "ZADD (with
// NX/XX/CH/GT/LT)"). NX and XX are mutually exclusive, as are GT and LT;
// callers are expected to have validated that at the gateway layer.
type ZAddOpts struct {
	NX bool // only add new members, never update existing scores
	XX bool // only update scores of members that already exist
	GT bool // only update if the new score is greater than the current one
	LT bool // only update if the new score is less than the current one
	CH bool // report changed count (added+updated) instead of added-only
}

// ZAdd adds or updates members in the sorted set at key. Returns the count
// of members added (or, with CH, added+updated).
func (o *Ops) ZAdd(guard *keyspace.LockedShardSet, key string, opts ZAddOpts, members []keyspace.ZMember) (int, error) {
	var affected int
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			if opts.XX {
				return nil
			}
			e = keyspace.NewEntry(keyspace.KindSortedSet)
		} else if e.Kind != keyspace.KindSortedSet {
			opErr = wrongType(key, e.Kind, keyspace.KindSortedSet)
			return keyspace.NoChange()
		}
		for _, m := range members {
			cur, exists := e.ZSet.Score(m.Member)
			if exists && opts.NX {
				continue
			}
			if !exists && opts.XX {
				continue
			}
			if exists && opts.GT && m.Score <= cur {
				continue
			}
			if exists && opts.LT && m.Score >= cur {
				continue
			}
			isNew := e.ZSet.Set(m.Member, m.Score)
			if isNew {
				affected++
			} else if opts.CH {
				affected++
			}
		}
		if e.ZSet.Len() == 0 {
			return nil
		}
		return e
	})
	return affected, opErr
}

// ZRange returns members at ascending ranks [start, stop] inclusive, using
// Redis-style negative indices.
func (o *Ops) ZRange(key string, start, stop int) ([]keyspace.ZMember, error) {
	e := o.KS.Get(key)
	if e == nil {
		return nil, nil
	}
	if e.Kind != keyspace.KindSortedSet {
		return nil, wrongType(key, e.Kind, keyspace.KindSortedSet)
	}
	n := e.ZSet.Len()
	s, t := resolveRange(start, stop, n)
	return e.ZSet.RangeByRank(s, t), nil
}

// ZRangeByScore returns members with score in [min, max] inclusive.
func (o *Ops) ZRangeByScore(key string, min, max float64) ([]keyspace.ZMember, error) {
	e := o.KS.Get(key)
	if e == nil {
		return nil, nil
	}
	if e.Kind != keyspace.KindSortedSet {
		return nil, wrongType(key, e.Kind, keyspace.KindSortedSet)
	}
	return e.ZSet.RangeByScore(min, max), nil
}

// ZRank returns the 0-based ascending rank of member, or false if absent.
func (o *Ops) ZRank(key, member string) (int, bool, error) {
	e := o.KS.Get(key)
	if e == nil {
		return 0, false, nil
	}
	if e.Kind != keyspace.KindSortedSet {
		return 0, false, wrongType(key, e.Kind, keyspace.KindSortedSet)
	}
	r := e.ZSet.Rank(member)
	return r, r >= 0, nil
}

// ZRem removes member from the sorted set at key.
func (o *Ops) ZRem(guard *keyspace.LockedShardSet, key, member string) (bool, error) {
	var removed bool
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindSortedSet {
			opErr = wrongType(key, e.Kind, keyspace.KindSortedSet)
			return keyspace.NoChange()
		}
		removed = e.ZSet.Remove(member)
		if !removed {
			return keyspace.NoChange()
		}
		if e.ZSet.Len() == 0 {
			return nil
		}
		return e
	})
	return removed, opErr
}

// ZIncrBy increments member's score by delta, creating the sorted set and/or
// member (starting from 0) if absent.
func (o *Ops) ZIncrBy(guard *keyspace.LockedShardSet, key, member string, delta float64) (float64, error) {
	var result float64
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = keyspace.NewEntry(keyspace.KindSortedSet)
		} else if e.Kind != keyspace.KindSortedSet {
			opErr = wrongType(key, e.Kind, keyspace.KindSortedSet)
			return keyspace.NoChange()
		}
		cur, _ := e.ZSet.Score(member)
		result = cur + delta
		e.ZSet.Set(member, result)
		return e
	})
	return result, opErr
}

// ZCard returns the cardinality of the sorted set at key.
func (o *Ops) ZCard(key string) (int, error) {
	e := o.KS.Get(key)
	if e == nil {
		return 0, nil
	}
	if e.Kind != keyspace.KindSortedSet {
		return 0, wrongType(key, e.Kind, keyspace.KindSortedSet)
	}
	return e.ZSet.Len(), nil
}
