package values

import (
	"math/rand"

	"github.com/hivellm/synap/internal/keyspace"
)

// SAdd adds members to the set at key, creating it if absent. Returns the
// count of newly added members.
func (o *Ops) SAdd(guard *keyspace.LockedShardSet, key string, members ...string) (int, error) {
	var added int
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = keyspace.NewEntry(keyspace.KindSet)
		} else if e.Kind != keyspace.KindSet {
			opErr = wrongType(key, e.Kind, keyspace.KindSet)
			return keyspace.NoChange()
		}
		for _, m := range members {
			if _, exists := e.Set[m]; !exists {
				e.Set[m] = struct{}{}
				added++
			}
		}
		if added == 0 {
			return keyspace.NoChange()
		}
		return e
	})
	return added, opErr
}

// SRem removes members from the set at key. Returns the count removed.
func (o *Ops) SRem(guard *keyspace.LockedShardSet, key string, members ...string) (int, error) {
	var removed int
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindSet {
			opErr = wrongType(key, e.Kind, keyspace.KindSet)
			return keyspace.NoChange()
		}
		for _, m := range members {
			if _, exists := e.Set[m]; exists {
				delete(e.Set, m)
				removed++
			}
		}
		if removed == 0 {
			return keyspace.NoChange()
		}
		if len(e.Set) == 0 {
			return nil
		}
		return e
	})
	return removed, opErr
}

// SMembers returns all members of the set at key.
func (o *Ops) SMembers(key string) ([]string, error) {
	e := o.KS.Get(key)
	if e == nil {
		return nil, nil
	}
	if e.Kind != keyspace.KindSet {
		return nil, wrongType(key, e.Kind, keyspace.KindSet)
	}
	out := make([]string, 0, len(e.Set))
	for m := range e.Set {
		out = append(out, m)
	}
	return out, nil
}

// SCard returns the cardinality of the set at key.
func (o *Ops) SCard(key string) (int, error) {
	e := o.KS.Get(key)
	if e == nil {
		return 0, nil
	}
	if e.Kind != keyspace.KindSet {
		return 0, wrongType(key, e.Kind, keyspace.KindSet)
	}
	return len(e.Set), nil
}

// SIsMember reports whether member is in the set at key.
func (o *Ops) SIsMember(key, member string) (bool, error) {
	e := o.KS.Get(key)
	if e == nil {
		return false, nil
	}
	if e.Kind != keyspace.KindSet {
		return false, wrongType(key, e.Kind, keyspace.KindSet)
	}
	_, ok := e.Set[member]
	return ok, nil
}

// SPop removes and returns a random member from the set at key.
func (o *Ops) SPop(guard *keyspace.LockedShardSet, key string) (string, bool, error) {
	var out string
	var ok bool
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindSet {
			opErr = wrongType(key, e.Kind, keyspace.KindSet)
			return keyspace.NoChange()
		}
		if len(e.Set) == 0 {
			return nil
		}
		idx := rand.Intn(len(e.Set))
		i := 0
		for m := range e.Set {
			if i == idx {
				out = m
				ok = true
				delete(e.Set, m)
				break
			}
			i++
		}
		if len(e.Set) == 0 {
			return nil
		}
		return e
	})
	return out, ok, opErr
}

// SRandMember returns a random member without removing it.
func (o *Ops) SRandMember(key string) (string, bool, error) {
	e := o.KS.Get(key)
	if e == nil {
		return "", false, nil
	}
	if e.Kind != keyspace.KindSet {
		return "", false, wrongType(key, e.Kind, keyspace.KindSet)
	}
	if len(e.Set) == 0 {
		return "", false, nil
	}
	idx := rand.Intn(len(e.Set))
	i := 0
	for m := range e.Set {
		if i == idx {
			return m, true, nil
		}
		i++
	}
	return "", false, nil
}

// SMove atomically moves member from src to dst, both locked in ascending
// shard order (spec.md §3.1 invariant 5) to avoid deadlock against a
// concurrent move in the opposite direction. When guard is non-nil (running
// as a queued EXEC command) src and dst are already held by the caller's
// LockedShardSet, covering both keys per spec.keys("set.move"), so SMove
// skips acquiring its own lock and just threads guard through.
func (o *Ops) SMove(guard *keyspace.LockedShardSet, src, dst, member string) (bool, error) {
	if guard == nil {
		lock := o.KS.LockKeys([]string{src, dst})
		defer lock.Unlock()
		guard = lock
	}

	var moved bool
	var opErr error
	o.withLock(guard, src, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindSet {
			opErr = wrongType(src, e.Kind, keyspace.KindSet)
			return keyspace.NoChange()
		}
		if _, ok := e.Set[member]; !ok {
			return keyspace.NoChange()
		}
		delete(e.Set, member)
		moved = true
		if len(e.Set) == 0 {
			return nil
		}
		return e
	})
	if opErr != nil || !moved {
		return moved, opErr
	}
	o.withLock(guard, dst, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = keyspace.NewEntry(keyspace.KindSet)
		} else if e.Kind != keyspace.KindSet {
			opErr = wrongType(dst, e.Kind, keyspace.KindSet)
			return keyspace.NoChange()
		}
		e.Set[member] = struct{}{}
		return e
	})
	return moved, opErr
}

// readSet fetches the live Set contents at key, failing on WrongType; an
// absent key yields an empty set (Redis-compatible: missing keys behave as
// empty sets for SINTER/SUNION/SDIFF).
func (o *Ops) readSet(key string) (map[string]struct{}, error) {
	e := o.KS.Get(key)
	if e == nil {
		return map[string]struct{}{}, nil
	}
	if e.Kind != keyspace.KindSet {
		return nil, wrongType(key, e.Kind, keyspace.KindSet)
	}
	return e.Set, nil
}

// SInter returns the set-theoretic intersection of the sets at keys
// (spec.md §8 testable property 9).
func (o *Ops) SInter(keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	first, err := o.readSet(keys[0])
	if err != nil {
		return nil, err
	}
	result := make(map[string]struct{}, len(first))
	for m := range first {
		result[m] = struct{}{}
	}
	for _, k := range keys[1:] {
		s, err := o.readSet(k)
		if err != nil {
			return nil, err
		}
		for m := range result {
			if _, ok := s[m]; !ok {
				delete(result, m)
			}
		}
	}
	return setKeys(result), nil
}

// SUnion returns the set-theoretic union of the sets at keys.
func (o *Ops) SUnion(keys ...string) ([]string, error) {
	result := make(map[string]struct{})
	for _, k := range keys {
		s, err := o.readSet(k)
		if err != nil {
			return nil, err
		}
		for m := range s {
			result[m] = struct{}{}
		}
	}
	return setKeys(result), nil
}

// SDiff returns the set-theoretic difference keys[0] - (keys[1] ∪ ... ∪ keys[n]).
func (o *Ops) SDiff(keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	first, err := o.readSet(keys[0])
	if err != nil {
		return nil, err
	}
	result := make(map[string]struct{}, len(first))
	for m := range first {
		result[m] = struct{}{}
	}
	for _, k := range keys[1:] {
		s, err := o.readSet(k)
		if err != nil {
			return nil, err
		}
		for m := range s {
			delete(result, m)
		}
	}
	return setKeys(result), nil
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
