package keyspace

// dlist is the List variant's backing store: a doubly-ended sequence
// supporting push/pop from both ends in O(1) and indexed access in O(n)
// (spec.md §3.1 "List(deque of bytes)"). A slice-backed ring would give O(1)
// random access, but LPUSH/RPUSH/LPOP/RPOP dominate list workloads in
// practice, so a doubly linked list of nodes is the better fit — the same
// trade-off the teacher's internal/shard package documents for its own
// storage choices.
type dlist struct {
	head, tail *dlistNode
	length     int
}

type dlistNode struct {
	prev, next *dlistNode
	value      string
}

func newDlist() *dlist { return &dlist{} }

func (l *dlist) Len() int { return l.length }

func (l *dlist) PushFront(v string) {
	n := &dlistNode{value: v, next: l.head}
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.length++
}

func (l *dlist) PushBack(v string) {
	n := &dlistNode{value: v, prev: l.tail}
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.length++
}

func (l *dlist) PopFront() (string, bool) {
	if l.head == nil {
		return "", false
	}
	n := l.head
	l.head = n.next
	if l.head != nil {
		l.head.prev = nil
	} else {
		l.tail = nil
	}
	l.length--
	return n.value, true
}

func (l *dlist) PopBack() (string, bool) {
	if l.tail == nil {
		return "", false
	}
	n := l.tail
	l.tail = n.prev
	if l.tail != nil {
		l.tail.next = nil
	} else {
		l.head = nil
	}
	l.length--
	return n.value, true
}

// nodeAt returns the node at the given 0-based forward index, or nil if out
// of range. Walks from whichever end is closer.
func (l *dlist) nodeAt(index int) *dlistNode {
	if index < 0 || index >= l.length {
		return nil
	}
	if index <= l.length/2 {
		n := l.head
		for i := 0; i < index; i++ {
			n = n.next
		}
		return n
	}
	n := l.tail
	for i := l.length - 1; i > index; i-- {
		n = n.prev
	}
	return n
}

// Slice returns the values from [start, stop] inclusive, 0-based, after the
// caller has already resolved Redis-style negative indices.
func (l *dlist) Slice(start, stop int) []string {
	if start > stop || start >= l.length || stop < 0 {
		return nil
	}
	if start < 0 {
		start = 0
	}
	if stop >= l.length {
		stop = l.length - 1
	}
	out := make([]string, 0, stop-start+1)
	n := l.nodeAt(start)
	for i := start; i <= stop && n != nil; i++ {
		out = append(out, n.value)
		n = n.next
	}
	return out
}

func (l *dlist) Index(index int) (string, bool) {
	n := l.nodeAt(index)
	if n == nil {
		return "", false
	}
	return n.value, true
}

func (l *dlist) SetIndex(index int, value string) bool {
	n := l.nodeAt(index)
	if n == nil {
		return false
	}
	n.value = value
	return true
}

// Trim keeps only [start, stop] inclusive, discarding everything else.
func (l *dlist) Trim(start, stop int) {
	kept := l.Slice(start, stop)
	l.head, l.tail, l.length = nil, nil, 0
	for _, v := range kept {
		l.PushBack(v)
	}
}

// RemoveMatching removes up to count occurrences of value. count > 0 scans
// head-to-tail, count < 0 scans tail-to-head, count == 0 removes all
// occurrences — the LREM semantics of spec.md §4.B.
func (l *dlist) RemoveMatching(value string, count int) int {
	removed := 0
	if count >= 0 {
		n := l.head
		limit := count
		for n != nil {
			next := n.next
			if n.value == value && (limit == 0 || removed < limit) {
				l.unlink(n)
				removed++
				if limit != 0 && removed >= limit {
					break
				}
			}
			n = next
		}
		return removed
	}
	n := l.tail
	limit := -count
	for n != nil {
		prev := n.prev
		if n.value == value && removed < limit {
			l.unlink(n)
			removed++
			if removed >= limit {
				break
			}
		}
		n = prev
	}
	return removed
}

func (l *dlist) unlink(n *dlistNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	l.length--
}

func (l *dlist) clone() *dlist {
	cp := newDlist()
	for n := l.head; n != nil; n = n.next {
		cp.PushBack(n.value)
	}
	return cp
}
