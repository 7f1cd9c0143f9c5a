// Package frequency implements the Frequency Index: an ordered mapping
// from exact access count to the doubly linked list of keys currently at
// that count, giving O(1) recording of an access and O(1) retrieval of
// the least-frequently-used key.
//
// Because access_count only ever increases by exactly one per recorded
// access, the group a key is promoted into is always the immediate
// successor of its current group. The group chain can therefore be kept
// in ascending order with a plain doubly linked list of groups and never
// needs to search for an insertion point.
package frequency

import "container/list"

// Handle is the stable, non-owning reference an Entry holds into its
// node within its current frequency group.
type Handle struct {
	group *group
	elem  *list.Element
}

type group struct {
	count   int
	members *list.List // of string keys, head = most recently promoted
}

// Index is the Frequency Index (exact-count LFU grouping).
type Index struct {
	groups  *list.List             // of *group, ascending by count
	byCount map[int]*list.Element  // count -> element in groups holding *group
	size    int
}

// New returns an empty Frequency Index.
func New() *Index {
	return &Index{
		groups:  list.New(),
		byCount: make(map[int]*list.Element),
	}
}

// Insert adds key to the count=0 group, creating it if absent, and
// returns its handle.
func (idx *Index) Insert(key string) Handle {
	idx.size++
	return idx.insertInto(0, key)
}

func (idx *Index) insertInto(count int, key string) Handle {
	g := idx.groupAt(count)
	elem := g.members.PushFront(key)
	return Handle{group: g, elem: elem}
}

// groupAt returns the group for count, creating and splicing it into the
// ascending chain in the correct position if it does not yet exist.
func (idx *Index) groupAt(count int) *group {
	if ge, ok := idx.byCount[count]; ok {
		return ge.Value.(*group)
	}

	g := &group{count: count, members: list.New()}

	var ge *list.Element
	// Find the first existing group with a greater count; insert before it.
	// Groups are few relative to keys and accessed via byCount for the
	// common adjacent-group case, so this walk only triggers for a
	// freshly-seen count value.
	inserted := false
	for e := idx.groups.Front(); e != nil; e = e.Next() {
		if e.Value.(*group).count > count {
			ge = idx.groups.InsertBefore(g, e)
			inserted = true
			break
		}
	}
	if !inserted {
		ge = idx.groups.PushBack(g)
	}

	idx.byCount[count] = ge
	return g
}

func (idx *Index) removeGroupIfEmpty(g *group) {
	if g.members.Len() > 0 {
		return
	}
	ge, ok := idx.byCount[g.count]
	if !ok {
		return
	}
	idx.groups.Remove(ge)
	delete(idx.byCount, g.count)
}

// RecordAccess moves the key identified by h from its current group G to
// group G+1, creating G+1 if needed and dropping G if it becomes empty.
// It returns the handle to the key's new position.
func (idx *Index) RecordAccess(h Handle) Handle {
	g := h.group
	key := h.elem.Value.(string)
	newCount := g.count + 1
	if _, ok := idx.byCount[newCount]; !ok {
		// G+1 belongs immediately after G in the ascending chain.
		ng := &group{count: newCount, members: list.New()}
		idx.byCount[newCount] = idx.groups.InsertAfter(ng, idx.byCount[g.count])
	}
	g.members.Remove(h.elem)
	idx.removeGroupIfEmpty(g)
	return idx.insertInto(newCount, key)
}

// Remove unlinks the key identified by h and drops its group if it
// becomes empty as a result.
func (idx *Index) Remove(h Handle) {
	idx.size--
	h.group.members.Remove(h.elem)
	idx.removeGroupIfEmpty(h.group)
}

// LeastFrequentKey returns the tail key of the lowest-count group, or
// reports empty.
func (idx *Index) LeastFrequentKey() (string, bool) {
	front := idx.groups.Front()
	if front == nil {
		return "", false
	}
	g := front.Value.(*group)
	back := g.members.Back()
	if back == nil {
		return "", false
	}
	return back.Value.(string), true
}

// Size returns the number of tracked keys.
func (idx *Index) Size() int { return idx.size }
