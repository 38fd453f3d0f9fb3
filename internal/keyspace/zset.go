package keyspace

import "sort"

// zset backs both the SortedSet and GeoSet variants (spec.md §3.1, §4.B):
// ordered by (score ascending, member bytes ascending), ties stable under
// rank queries. A real skiplist would give O(log n) insert/rank; this
// exercise uses a member->score map plus a score-sorted slice kept in order
// with sort.Search, which is the "skiplist-equivalent ordering" the spec
// asks for without the pointer-chasing complexity a skiplist needs for a
// single-node in-memory engine of this size.
type zset struct {
	byMember map[string]float64
	ordered  []ZMember // kept sorted by (Score, Member)
}

func newZSet() *zset {
	return &zset{byMember: make(map[string]float64)}
}

func less(a, b ZMember) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

func (z *zset) Len() int { return len(z.ordered) }

func (z *zset) Score(member string) (float64, bool) {
	s, ok := z.byMember[member]
	return s, ok
}

// findPos returns the insertion index of m within the ordered slice.
func (z *zset) findPos(m ZMember) int {
	return sort.Search(len(z.ordered), func(i int) bool {
		return !less(z.ordered[i], m)
	})
}

// Set inserts or updates member's score, maintaining sort order. Returns
// true if this was a new member.
func (z *zset) Set(member string, score float64) bool {
	if old, ok := z.byMember[member]; ok {
		if old == score {
			return false
		}
		z.removeOrdered(ZMember{Member: member, Score: old})
		z.insertOrdered(ZMember{Member: member, Score: score})
		z.byMember[member] = score
		return false
	}
	z.byMember[member] = score
	z.insertOrdered(ZMember{Member: member, Score: score})
	return true
}

func (z *zset) insertOrdered(m ZMember) {
	pos := z.findPos(m)
	z.ordered = append(z.ordered, ZMember{})
	copy(z.ordered[pos+1:], z.ordered[pos:])
	z.ordered[pos] = m
}

func (z *zset) removeOrdered(m ZMember) {
	pos := z.findPos(m)
	for pos < len(z.ordered) && z.ordered[pos].Member != m.Member {
		pos++
	}
	if pos >= len(z.ordered) {
		return
	}
	z.ordered = append(z.ordered[:pos], z.ordered[pos+1:]...)
}

func (z *zset) Remove(member string) bool {
	score, ok := z.byMember[member]
	if !ok {
		return false
	}
	delete(z.byMember, member)
	z.removeOrdered(ZMember{Member: member, Score: score})
	return true
}

// Rank returns the 0-based ascending rank of member, or -1 if absent.
func (z *zset) Rank(member string) int {
	score, ok := z.byMember[member]
	if !ok {
		return -1
	}
	pos := z.findPos(ZMember{Member: member, Score: score})
	for pos < len(z.ordered) && z.ordered[pos].Member != member {
		pos++
	}
	if pos >= len(z.ordered) {
		return -1
	}
	return pos
}

// RangeByRank returns members at ascending ranks [start, stop] inclusive,
// after the caller resolves Redis-style negative indices.
func (z *zset) RangeByRank(start, stop int) []ZMember {
	n := len(z.ordered)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil
	}
	out := make([]ZMember, stop-start+1)
	copy(out, z.ordered[start:stop+1])
	return out
}

// RangeByScore returns members with score in [min, max] inclusive, ascending.
func (z *zset) RangeByScore(min, max float64) []ZMember {
	lo := sort.Search(len(z.ordered), func(i int) bool { return z.ordered[i].Score >= min })
	var out []ZMember
	for i := lo; i < len(z.ordered) && z.ordered[i].Score <= max; i++ {
		out = append(out, z.ordered[i])
	}
	return out
}

func (z *zset) All() []ZMember {
	out := make([]ZMember, len(z.ordered))
	copy(out, z.ordered)
	return out
}

func (z *zset) clone() *zset {
	cp := newZSet()
	for k, v := range z.byMember {
		cp.byMember[k] = v
	}
	cp.ordered = make([]ZMember, len(z.ordered))
	copy(cp.ordered, z.ordered)
	return cp
}
