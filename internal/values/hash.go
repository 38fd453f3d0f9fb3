package values

import (
	"strconv"

	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/synaperr"
)

// HSet sets one field in the hash at key, creating the hash if absent
// (spec.md §4.B "Hash"). Returns true if the field was newly created.
func (o *Ops) HSet(guard *keyspace.LockedShardSet, key, field, value string) (bool, error) {
	var created bool
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = &keyspace.Entry{Kind: keyspace.KindHash, Hash: map[string]string{field: value}}
			created = true
			return e
		}
		if e.Kind != keyspace.KindHash {
			opErr = wrongType(key, e.Kind, keyspace.KindHash)
			return keyspace.NoChange()
		}
		_, exists := e.Hash[field]
		created = !exists
		e.Hash[field] = value
		return e
	})
	return created, opErr
}

// HGet returns the value of field in the hash at key.
func (o *Ops) HGet(key, field string) (string, bool, error) {
	e := o.KS.Get(key)
	if e == nil {
		return "", false, nil
	}
	if e.Kind != keyspace.KindHash {
		return "", false, wrongType(key, e.Kind, keyspace.KindHash)
	}
	v, ok := e.Hash[field]
	return v, ok, nil
}

// HDel removes field from the hash at key, returning whether it existed.
func (o *Ops) HDel(guard *keyspace.LockedShardSet, key, field string) (bool, error) {
	var removed bool
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			return nil
		}
		if e.Kind != keyspace.KindHash {
			opErr = wrongType(key, e.Kind, keyspace.KindHash)
			return keyspace.NoChange()
		}
		if _, ok := e.Hash[field]; ok {
			delete(e.Hash, field)
			removed = true
		} else {
			return keyspace.NoChange()
		}
		return e
	})
	return removed, opErr
}

// HGetAll returns a copy of all fields in the hash at key.
func (o *Ops) HGetAll(key string) (map[string]string, error) {
	e := o.KS.Get(key)
	if e == nil {
		return map[string]string{}, nil
	}
	if e.Kind != keyspace.KindHash {
		return nil, wrongType(key, e.Kind, keyspace.KindHash)
	}
	out := make(map[string]string, len(e.Hash))
	for k, v := range e.Hash {
		out[k] = v
	}
	return out, nil
}

// HLen returns the number of fields in the hash at key.
func (o *Ops) HLen(key string) (int, error) {
	e := o.KS.Get(key)
	if e == nil {
		return 0, nil
	}
	if e.Kind != keyspace.KindHash {
		return 0, wrongType(key, e.Kind, keyspace.KindHash)
	}
	return len(e.Hash), nil
}

// HIncrBy increments field in the hash at key by delta, creating the hash
// and/or the field (starting from 0) if absent (spec.md §4.B "creates hash
// if absent; field must be integer-parsable").
func (o *Ops) HIncrBy(guard *keyspace.LockedShardSet, key, field string, delta int64) (int64, error) {
	var result int64
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = &keyspace.Entry{Kind: keyspace.KindHash, Hash: map[string]string{}}
		} else if e.Kind != keyspace.KindHash {
			opErr = wrongType(key, e.Kind, keyspace.KindHash)
			return keyspace.NoChange()
		}
		cur := int64(0)
		if s, ok := e.Hash[field]; ok && s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				opErr = synaperr.New(synaperr.NotInteger, "field '"+field+"' at key '"+key+"' is not an integer")
				return keyspace.NoChange()
			}
			cur = v
		}
		cur += delta
		e.Hash[field] = strconv.FormatInt(cur, 10)
		result = cur
		return e
	})
	return result, opErr
}
