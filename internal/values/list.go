package values

import "github.com/hivellm/synap/internal/keyspace"

// LPush prepends values to the list at key, creating it if absent. Per
// spec.md §4.B "variadic, prepend in reverse order so the last element ends
// at the head": LPUSH k a b c leaves the list [c, b, a, ...]. guard comes
// first to avoid colliding with the variadic vals parameter.
func (o *Ops) LPush(guard *keyspace.LockedShardSet, key string, vals ...string) (int, error) {
	return o.listPush(guard, key, true, vals)
}

// RPush appends values to the list at key, creating it if absent.
func (o *Ops) RPush(guard *keyspace.LockedShardSet, key string, vals ...string) (int, error) {
	return o.listPush(guard, key, false, vals)
}

func (o *Ops) listPush(guard *keyspace.LockedShardSet, key string, front bool, vals []string) (int, error) {
	var length int
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = keyspace.NewEntry(keyspace.KindList)
		} else if e.Kind != keyspace.KindList {
			opErr = wrongType(key, e.Kind, keyspace.KindList)
			return keyspace.NoChange()
		}
		for _, v := range vals {
			if front {
				e.List.PushFront(v)
			} else {
				e.List.PushBack(v)
			}
		}
		length = e.List.Len()
		return e
	})
	return length, opErr
}

// listPop implements LPOP/RPOP with an optional count (spec.md §4.B). A
// count of 0 is treated as 1 (Redis-compatible default). Returns an empty
// slice, not an error, when the list (or key) doesn't exist.
func (o *Ops) listPop(guard *keyspace.LockedShardSet, key string, front bool, count int) ([]string, error) {
	if count <= 0 {
		count = 1
	}
	var out []string
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindList {
			opErr = wrongType(key, e.Kind, keyspace.KindList)
			return keyspace.NoChange()
		}
		for i := 0; i < count; i++ {
			var v string
			var ok bool
			if front {
				v, ok = e.List.PopFront()
			} else {
				v, ok = e.List.PopBack()
			}
			if !ok {
				break
			}
			out = append(out, v)
		}
		if e.List.Len() == 0 {
			return nil
		}
		return e
	})
	return out, opErr
}

// LPop pops up to count elements from the head of the list at key.
func (o *Ops) LPop(guard *keyspace.LockedShardSet, key string, count int) ([]string, error) {
	return o.listPop(guard, key, true, count)
}

// RPop pops up to count elements from the tail of the list at key.
func (o *Ops) RPop(guard *keyspace.LockedShardSet, key string, count int) ([]string, error) {
	return o.listPop(guard, key, false, count)
}

// resolveRange converts Redis-style (possibly negative) start/stop indices
// against a sequence of length n into 0-based forward indices.
func resolveRange(start, stop, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

// LRange returns elements [start, stop] inclusive using Redis-style
// negative indices (spec.md §4.B "LRANGE (Redis-style negative indices;
// inclusive stop)").
func (o *Ops) LRange(key string, start, stop int) ([]string, error) {
	e := o.KS.Get(key)
	if e == nil {
		return nil, nil
	}
	if e.Kind != keyspace.KindList {
		return nil, wrongType(key, e.Kind, keyspace.KindList)
	}
	n := e.List.Len()
	s, t := resolveRange(start, stop, n)
	return e.List.Slice(s, t), nil
}

// LLen returns the length of the list at key (0 if absent).
func (o *Ops) LLen(key string) (int, error) {
	e := o.KS.Get(key)
	if e == nil {
		return 0, nil
	}
	if e.Kind != keyspace.KindList {
		return 0, wrongType(key, e.Kind, keyspace.KindList)
	}
	return e.List.Len(), nil
}

// LIndex returns the element at index (Redis-style negative indices
// supported), or false if out of range.
func (o *Ops) LIndex(key string, index int) (string, bool, error) {
	e := o.KS.Get(key)
	if e == nil {
		return "", false, nil
	}
	if e.Kind != keyspace.KindList {
		return "", false, wrongType(key, e.Kind, keyspace.KindList)
	}
	if index < 0 {
		index += e.List.Len()
	}
	v, ok := e.List.Index(index)
	return v, ok, nil
}

// LSet overwrites the element at index, returning synaperr.OutOfRange if the
// index is invalid.
func (o *Ops) LSet(guard *keyspace.LockedShardSet, key string, index int, value string) error {
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			opErr = notFound(key)
			return keyspace.NoChange()
		}
		if e.Kind != keyspace.KindList {
			opErr = wrongType(key, e.Kind, keyspace.KindList)
			return keyspace.NoChange()
		}
		idx := index
		if idx < 0 {
			idx += e.List.Len()
		}
		if !e.List.SetIndex(idx, value) {
			opErr = outOfRange("index " + itoa(index) + " out of range for list '" + key + "'")
			return keyspace.NoChange()
		}
		return e
	})
	return opErr
}

// LTrim keeps only elements [start, stop] inclusive, discarding the rest.
func (o *Ops) LTrim(guard *keyspace.LockedShardSet, key string, start, stop int) error {
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindList {
			opErr = wrongType(key, e.Kind, keyspace.KindList)
			return keyspace.NoChange()
		}
		n := e.List.Len()
		s, t := resolveRange(start, stop, n)
		e.List.Trim(s, t)
		if e.List.Len() == 0 {
			return nil
		}
		return e
	})
	return opErr
}

// LRem removes up to |count| occurrences of value from the list at key
// (spec.md §4.B "LREM"); see dlist.RemoveMatching for the direction rules.
func (o *Ops) LRem(guard *keyspace.LockedShardSet, key, value string, count int) (int, error) {
	var removed int
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindList {
			opErr = wrongType(key, e.Kind, keyspace.KindList)
			return keyspace.NoChange()
		}
		removed = e.List.RemoveMatching(value, count)
		if removed == 0 {
			return keyspace.NoChange()
		}
		if e.List.Len() == 0 {
			return nil
		}
		return e
	})
	return removed, opErr
}
