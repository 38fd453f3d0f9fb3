package gateway

import (
	"time"

	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/values"
)

func (g *Gateway) registerValueCommands(cmds map[string]commandSpec) {
	// --- kv.* (string operators, spec.md §4.B) ---
	cmds["kv.set"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		val, err := p.str("value")
		if err != nil {
			return nil, err
		}
		opts := values.SetOpts{
			NX: p.boolOr("nx", false),
			XX: p.boolOr("xx", false),
		}
		if ttlMS, err := p.int64("ttl_ms"); err == nil {
			opts.TTL = time.Duration(ttlMS) * time.Millisecond
		}
		wrote, err := g.Ops.Set(guard, key, val, opts)
		if err != nil {
			return nil, err
		}
		return map[string]any{"wrote": wrote}, nil
	}}
	cmds["kv.get"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		v, err := g.Ops.Get(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v}, nil
	}}
	cmds["kv.del"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": g.Ops.Del(guard, key)}, nil
	}}
	cmds["kv.exists"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		return map[string]any{"exists": g.Ops.Exists(key)}, nil
	}}
	cmds["kv.incr"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		v, err := g.Ops.Incr(guard, key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v}, nil
	}}
	cmds["kv.decr"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		v, err := g.Ops.Decr(guard, key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v}, nil
	}}
	cmds["kv.scan"] = commandSpec{run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		cursor := p.intOr("cursor", 0)
		limit := p.intOr("limit", 100)
		var keys []string
		i := cursor
		for ; i < keyspace.ShardCount && len(keys) < limit; i++ {
			keys = append(keys, g.KS.Shard(i).Keys()...)
		}
		next := 0
		if i < keyspace.ShardCount {
			next = i
		}
		return map[string]any{"keys": keys, "cursor": next}, nil
	}}
	cmds["kv.stats"] = commandSpec{run: func(g *Gateway, _ string, _ payload, guard *keyspace.LockedShardSet) (any, error) {
		return g.KS.Stats(), nil
	}}

	// --- hash.* ---
	cmds["hash.set"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		field, err := p.str("field")
		if err != nil {
			return nil, err
		}
		val, err := p.str("value")
		if err != nil {
			return nil, err
		}
		created, err := g.Ops.HSet(guard, key, field, val)
		if err != nil {
			return nil, err
		}
		return map[string]any{"created": created}, nil
	}}
	cmds["hash.get"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		field, err := p.str("field")
		if err != nil {
			return nil, err
		}
		v, found, err := g.Ops.HGet(key, field)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v, "found": found}, nil
	}}
	cmds["hash.getall"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		m, err := g.Ops.HGetAll(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"fields": m}, nil
	}}
	cmds["hash.del"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		field, err := p.str("field")
		if err != nil {
			return nil, err
		}
		removed, err := g.Ops.HDel(guard, key, field)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": removed}, nil
	}}
	cmds["hash.len"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.HLen(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"len": n}, nil
	}}
	cmds["hash.incrby"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		field, err := p.str("field")
		if err != nil {
			return nil, err
		}
		delta := p.int64Or("delta", 1)
		v, err := g.Ops.HIncrBy(guard, key, field, delta)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v}, nil
	}}

	// --- list.* ---
	cmds["list.lpush"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		vals, err := p.strs("values")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.LPush(guard, key, vals...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"len": n}, nil
	}}
	cmds["list.rpush"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		vals, err := p.strs("values")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.RPush(guard, key, vals...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"len": n}, nil
	}}
	cmds["list.lpop"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		count := p.intOr("count", 1)
		vals, err := g.Ops.LPop(guard, key, count)
		if err != nil {
			return nil, err
		}
		return map[string]any{"values": vals}, nil
	}}
	cmds["list.rpop"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		count := p.intOr("count", 1)
		vals, err := g.Ops.RPop(guard, key, count)
		if err != nil {
			return nil, err
		}
		return map[string]any{"values": vals}, nil
	}}
	cmds["list.range"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		start := p.intOr("start", 0)
		stop := p.intOr("stop", -1)
		vals, err := g.Ops.LRange(key, start, stop)
		if err != nil {
			return nil, err
		}
		return map[string]any{"values": vals}, nil
	}}
	cmds["list.len"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.LLen(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"len": n}, nil
	}}
	cmds["list.index"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		idx, err := p.int("index")
		if err != nil {
			return nil, err
		}
		v, found, err := g.Ops.LIndex(key, idx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v, "found": found}, nil
	}}
	cmds["list.set"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		idx, err := p.int("index")
		if err != nil {
			return nil, err
		}
		val, err := p.str("value")
		if err != nil {
			return nil, err
		}
		return nil, g.Ops.LSet(guard, key, idx, val)
	}}
	cmds["list.trim"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		start := p.intOr("start", 0)
		stop := p.intOr("stop", -1)
		return nil, g.Ops.LTrim(guard, key, start, stop)
	}}
	cmds["list.lrem"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		val, err := p.str("value")
		if err != nil {
			return nil, err
		}
		count := p.intOr("count", 0)
		removed, err := g.Ops.LRem(guard, key, val, count)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": removed}, nil
	}}

	// --- set.* ---
	cmds["set.add"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		members, err := p.strs("members")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.SAdd(guard, key, members...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"added": n}, nil
	}}
	cmds["set.rem"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		members, err := p.strs("members")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.SRem(guard, key, members...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": n}, nil
	}}
	cmds["set.ismember"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		ok, err := g.Ops.SIsMember(key, member)
		if err != nil {
			return nil, err
		}
		return map[string]any{"is_member": ok}, nil
	}}
	cmds["set.members"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		vals, err := g.Ops.SMembers(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"members": vals}, nil
	}}
	cmds["set.card"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.SCard(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"card": n}, nil
	}}
	cmds["set.pop"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		v, found, err := g.Ops.SPop(guard, key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"member": v, "found": found}, nil
	}}
	cmds["set.randmember"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		v, found, err := g.Ops.SRandMember(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"member": v, "found": found}, nil
	}}
	cmds["set.move"] = commandSpec{mutating: true, keys: func(p payload) []string {
		src := p.strOr("src", "")
		dst := p.strOr("dst", "")
		return []string{src, dst}
	}, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		src, err := p.str("src")
		if err != nil {
			return nil, err
		}
		dst, err := p.str("dst")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		moved, err := g.Ops.SMove(guard, src, dst, member)
		if err != nil {
			return nil, err
		}
		return map[string]any{"moved": moved}, nil
	}}
	cmds["set.inter"] = commandSpec{keys: func(p payload) []string { ks, _ := p.strs("keys"); return ks }, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		ks, err := p.strs("keys")
		if err != nil {
			return nil, err
		}
		vals, err := g.Ops.SInter(ks...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"members": vals}, nil
	}}
	cmds["set.union"] = commandSpec{keys: func(p payload) []string { ks, _ := p.strs("keys"); return ks }, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		ks, err := p.strs("keys")
		if err != nil {
			return nil, err
		}
		vals, err := g.Ops.SUnion(ks...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"members": vals}, nil
	}}
	cmds["set.diff"] = commandSpec{keys: func(p payload) []string { ks, _ := p.strs("keys"); return ks }, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		ks, err := p.strs("keys")
		if err != nil {
			return nil, err
		}
		vals, err := g.Ops.SDiff(ks...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"members": vals}, nil
	}}

	// --- sortedset.* ---
	cmds["sortedset.zadd"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		members, err := p.maps("members")
		if err != nil {
			return nil, err
		}
		zms := make([]keyspace.ZMember, 0, len(members))
		for _, m := range members {
			mm := payload(m)
			member, err := mm.str("member")
			if err != nil {
				return nil, err
			}
			score, err := mm.float("score")
			if err != nil {
				return nil, err
			}
			zms = append(zms, keyspace.ZMember{Member: member, Score: score})
		}
		opts := values.ZAddOpts{
			NX: p.boolOr("nx", false),
			XX: p.boolOr("xx", false),
			GT: p.boolOr("gt", false),
			LT: p.boolOr("lt", false),
			CH: p.boolOr("ch", false),
		}
		n, err := g.Ops.ZAdd(guard, key, opts, zms)
		if err != nil {
			return nil, err
		}
		return map[string]any{"added": n}, nil
	}}
	cmds["sortedset.zrange"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		start := p.intOr("start", 0)
		stop := p.intOr("stop", -1)
		members, err := g.Ops.ZRange(key, start, stop)
		if err != nil {
			return nil, err
		}
		return map[string]any{"members": members}, nil
	}}
	cmds["sortedset.zrem"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		removed, err := g.Ops.ZRem(guard, key, member)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": removed}, nil
	}}
	cmds["sortedset.zrank"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		rank, found, err := g.Ops.ZRank(key, member)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rank": rank, "found": found}, nil
	}}
	cmds["sortedset.zincrby"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		delta := p.floatOr("delta", 1)
		score, err := g.Ops.ZIncrBy(guard, key, member, delta)
		if err != nil {
			return nil, err
		}
		return map[string]any{"score": score}, nil
	}}
	cmds["sortedset.zcard"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.ZCard(key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"card": n}, nil
	}}

	// --- bitmap.* ---
	cmds["bitmap.setbit"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		offset, err := p.int64("offset")
		if err != nil {
			return nil, err
		}
		val := p.intOr("value", 0)
		prev, err := g.Ops.SetBit(guard, key, offset, val)
		if err != nil {
			return nil, err
		}
		return map[string]any{"previous": prev}, nil
	}}
	cmds["bitmap.getbit"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		offset, err := p.int64("offset")
		if err != nil {
			return nil, err
		}
		v, err := g.Ops.GetBit(key, offset)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v}, nil
	}}
	cmds["bitmap.bitcount"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		var start, end *int
		if v, err := p.int("start"); err == nil {
			start = &v
		}
		if v, err := p.int("end"); err == nil {
			end = &v
		}
		n, err := g.Ops.BitCount(key, start, end)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": n}, nil
	}}
	cmds["bitmap.bitpos"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		target := p.intOr("target", 1)
		var start, end *int
		if v, err := p.int("start"); err == nil {
			start = &v
		}
		if v, err := p.int("end"); err == nil {
			end = &v
		}
		pos, err := g.Ops.BitPos(key, target, start, end)
		if err != nil {
			return nil, err
		}
		return map[string]any{"position": pos}, nil
	}}
	cmds["bitmap.bitop"] = commandSpec{mutating: true, keys: func(p payload) []string {
		dest := p.strOr("dest_key", "")
		srcs, _ := p.strs("src_keys")
		return append([]string{dest}, srcs...)
	}, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		op, err := p.str("op")
		if err != nil {
			return nil, err
		}
		dest, err := p.str("dest_key")
		if err != nil {
			return nil, err
		}
		srcs, err := p.strs("src_keys")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.BitOp(guard, op, dest, srcs...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"len": n}, nil
	}}
	cmds["bitmap.bitfield"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		rawOps, err := p.maps("ops")
		if err != nil {
			return nil, err
		}
		subops := make([]values.BitfieldOp, 0, len(rawOps))
		for _, m := range rawOps {
			mp := payload(m)
			kind, err := mp.str("kind")
			if err != nil {
				return nil, err
			}
			overflow := values.OverflowWrap
			switch mp.strOr("overflow", "wrap") {
			case "sat":
				overflow = values.OverflowSat
			case "fail":
				overflow = values.OverflowFail
			}
			subops = append(subops, values.BitfieldOp{
				Kind:     kind,
				Signed:   mp.boolOr("signed", false),
				Width:    mp.intOr("width", 8),
				Offset:   mp.int64Or("offset", 0),
				Value:    mp.int64Or("value", 0),
				Overflow: overflow,
			})
		}
		results, err := g.Ops.Bitfield(guard, key, subops)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": results}, nil
	}}

	// --- hyperloglog.* ---
	cmds["hyperloglog.pfadd"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		elems, err := p.strs("elements")
		if err != nil {
			return nil, err
		}
		changed, err := g.Ops.PFAdd(guard, key, elems...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"changed": changed}, nil
	}}
	cmds["hyperloglog.pfcount"] = commandSpec{keys: func(p payload) []string { ks, _ := p.strs("keys"); return ks }, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		ks, err := p.strs("keys")
		if err != nil {
			return nil, err
		}
		n, err := g.Ops.PFCount(ks...)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": n}, nil
	}}
	cmds["hyperloglog.pfmerge"] = commandSpec{mutating: true, keys: func(p payload) []string {
		dest := p.strOr("dest_key", "")
		srcs, _ := p.strs("src_keys")
		return append([]string{dest}, srcs...)
	}, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		dest, err := p.str("dest_key")
		if err != nil {
			return nil, err
		}
		srcs, err := p.strs("src_keys")
		if err != nil {
			return nil, err
		}
		return nil, g.Ops.PFMerge(guard, dest, srcs...)
	}}

	// --- geospatial.* ---
	cmds["geospatial.geoadd"] = commandSpec{mutating: true, keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		lat, err := p.float("lat")
		if err != nil {
			return nil, err
		}
		lon, err := p.float("lon")
		if err != nil {
			return nil, err
		}
		return nil, g.Ops.GeoAdd(guard, key, member, lat, lon)
	}}
	cmds["geospatial.geodist"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		m1, err := p.str("member1")
		if err != nil {
			return nil, err
		}
		m2, err := p.str("member2")
		if err != nil {
			return nil, err
		}
		unit := values.GeoUnit(p.strOr("unit", string(values.UnitMeters)))
		dist, found, err := g.Ops.GeoDist(key, m1, m2, unit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"distance": dist, "found": found}, nil
	}}
	cmds["geospatial.georadius"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		lat, err := p.float("lat")
		if err != nil {
			return nil, err
		}
		lon, err := p.float("lon")
		if err != nil {
			return nil, err
		}
		radius, err := p.float("radius_m")
		if err != nil {
			return nil, err
		}
		results, err := g.Ops.GeoRadius(key, lat, lon, radius)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": results}, nil
	}}
	cmds["geospatial.georadiusbymember"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		radius, err := p.float("radius_m")
		if err != nil {
			return nil, err
		}
		results, err := g.Ops.GeoRadiusByMember(key, member, radius)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": results}, nil
	}}
	cmds["geospatial.geopos"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		lat, lon, found, err := g.Ops.GeoPos(key, member)
		if err != nil {
			return nil, err
		}
		return map[string]any{"lat": lat, "lon": lon, "found": found}, nil
	}}
	cmds["geospatial.geohash"] = commandSpec{keys: keyField, run: func(g *Gateway, _ string, p payload, guard *keyspace.LockedShardSet) (any, error) {
		key, err := p.str("key")
		if err != nil {
			return nil, err
		}
		member, err := p.str("member")
		if err != nil {
			return nil, err
		}
		hash, found, err := g.Ops.GeoHash(key, member)
		if err != nil {
			return nil, err
		}
		return map[string]any{"hash": hash, "found": found}, nil
	}}
	cmds["geospatial.geosearch"] = cmds["geospatial.georadius"]
	cmds["geospatial.stats"] = commandSpec{run: func(g *Gateway, _ string, _ payload, guard *keyspace.LockedShardSet) (any, error) {
		return g.KS.Stats(), nil
	}}
}
