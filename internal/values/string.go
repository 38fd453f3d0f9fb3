package values

import (
	"strconv"
	"time"

	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/synaperr"
)

// SetOpts controls SET's optional TTL and NX/XX existence guards
// (spec.md §4.B "String: SET (with optional TTL, with NX/XX)").
type SetOpts struct {
	TTL time.Duration
	NX  bool // only set if key does not currently exist
	XX  bool // only set if key currently exists
}

// Set stores value at key, clearing any prior TTL unless opts.TTL is set
// (spec.md §4.C "SET without TTL clears any prior TTL; SET with TTL replaces
// it"). Returns false without mutating if an NX/XX guard is not satisfied.
// The existence check and the write happen inside a single WithLock
// closure so two concurrent SET ... NX cannot both observe absence and
// both write (spec.md §8 testable property 4).
func (o *Ops) Set(guard *keyspace.LockedShardSet, key, value string, opts SetOpts) (bool, error) {
	var wrote bool
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if opts.NX && e != nil {
			return keyspace.NoChange()
		}
		if opts.XX && e == nil {
			return keyspace.NoChange()
		}
		wrote = true
		return &keyspace.Entry{Kind: keyspace.KindString, Str: value, ExpiresAt: ttlDeadline(opts.TTL)}
	})
	return wrote, nil
}

// Get returns the string value at key. Integer-optimized entries
// (internally KindInteger, from INCR/DECR) are rendered back as their
// base-10 text form, since spec.md models Integer as "small-integer
// optimization for INCR/DECR" of the same logical String variant.
func (o *Ops) Get(key string) (string, error) {
	e := o.KS.Get(key)
	if e == nil {
		return "", notFound(key)
	}
	switch e.Kind {
	case keyspace.KindString:
		return e.Str, nil
	case keyspace.KindInteger:
		return strconv.FormatInt(e.Int, 10), nil
	default:
		return "", wrongType(key, e.Kind, keyspace.KindString)
	}
}

// Del removes key, reporting whether it existed.
func (o *Ops) Del(guard *keyspace.LockedShardSet, key string) bool {
	return o.removeKey(guard, key)
}

// Exists reports whether key has a live value of any kind.
func (o *Ops) Exists(key string) bool {
	return o.KS.Exists(key)
}

// Strlen returns the byte length of the string at key (0 if absent).
func (o *Ops) Strlen(key string) (int, error) {
	e := o.KS.Get(key)
	if e == nil {
		return 0, nil
	}
	switch e.Kind {
	case keyspace.KindString:
		return len(e.Str), nil
	case keyspace.KindInteger:
		return len(strconv.FormatInt(e.Int, 10)), nil
	default:
		return 0, wrongType(key, e.Kind, keyspace.KindString)
	}
}

// Append appends value to the string at key, creating it if absent, and
// returns the new total length.
func (o *Ops) Append(guard *keyspace.LockedShardSet, key, value string) (int, error) {
	var result int
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = &keyspace.Entry{Kind: keyspace.KindString, Str: value}
			result = len(value)
			return e
		}
		switch e.Kind {
		case keyspace.KindString:
			e.Str += value
			result = len(e.Str)
			return e
		case keyspace.KindInteger:
			s := strconv.FormatInt(e.Int, 10) + value
			e.Kind = keyspace.KindString
			e.Str = s
			e.Int = 0
			result = len(s)
			return e
		default:
			opErr = wrongType(key, e.Kind, keyspace.KindString)
			return keyspace.NoChange()
		}
	})
	return result, opErr
}

// incrBy implements INCR/DECR/INCRBY/DECRBY: arithmetic requires the
// existing value be integer-parsable or absent (spec.md §4.B "require
// integer representation or empty, otherwise NotInteger").
func (o *Ops) incrBy(guard *keyspace.LockedShardSet, key string, delta int64) (int64, error) {
	var result int64
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		var cur int64
		if e != nil {
			switch e.Kind {
			case keyspace.KindInteger:
				cur = e.Int
			case keyspace.KindString:
				v, err := strconv.ParseInt(e.Str, 10, 64)
				if err != nil {
					opErr = synaperr.New(synaperr.NotInteger, "value at key '"+key+"' is not an integer")
					return keyspace.NoChange()
				}
				cur = v
			default:
				opErr = wrongType(key, e.Kind, keyspace.KindString)
				return keyspace.NoChange()
			}
		}
		cur += delta
		result = cur
		if e == nil {
			return &keyspace.Entry{Kind: keyspace.KindInteger, Int: cur}
		}
		e.Kind = keyspace.KindInteger
		e.Int = cur
		e.Str = ""
		return e
	})
	return result, opErr
}

// Incr increments the integer at key by 1.
func (o *Ops) Incr(guard *keyspace.LockedShardSet, key string) (int64, error) {
	return o.incrBy(guard, key, 1)
}

// Decr decrements the integer at key by 1.
func (o *Ops) Decr(guard *keyspace.LockedShardSet, key string) (int64, error) {
	return o.incrBy(guard, key, -1)
}

// IncrBy increments the integer at key by delta (may be negative).
func (o *Ops) IncrBy(guard *keyspace.LockedShardSet, key string, delta int64) (int64, error) {
	return o.incrBy(guard, key, delta)
}

// ttlDeadline converts a relative TTL duration into the absolute deadline
// Entry.ExpiresAt expects, or the zero Time (no TTL) when ttl <= 0.
func ttlDeadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
