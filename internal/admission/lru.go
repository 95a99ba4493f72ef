// Package admission provides LRU tracking for evictable limiter state.
package admission

import "container/list"

// lruTracker orders principal ids by recency of use so registry shards can
// evict the coldest runtime state first.
type lruTracker struct {
	max   int
	items map[string]*list.Element
	order *list.List
}

func newLRUTracker(max int) *lruTracker {
	if max < 0 {
		max = 0
	}
	return &lruTracker{
		max:   max,
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Touch marks an id as most recently used, inserting it when absent.
func (lru *lruTracker) Touch(id string) {
	if lru == nil {
		return
	}
	if element, ok := lru.items[id]; ok {
		lru.order.MoveToFront(element)
		return
	}
	lru.items[id] = lru.order.PushFront(id)
}

// Remove forgets an id.
func (lru *lruTracker) Remove(id string) {
	if lru == nil {
		return
	}
	element, ok := lru.items[id]
	if !ok {
		return
	}
	lru.order.Remove(element)
	delete(lru.items, id)
}

// EvictOverflow removes least recently used ids until size <= max and
// returns the evicted ids.
func (lru *lruTracker) EvictOverflow() []string {
	if lru == nil || len(lru.items) <= lru.max {
		return nil
	}
	count := len(lru.items) - lru.max
	evicted := make([]string, 0, count)
	for i := 0; i < count; i++ {
		element := lru.order.Back()
		if element == nil {
			break
		}
		id := element.Value.(string)
		evicted = append(evicted, id)
		lru.order.Remove(element)
		delete(lru.items, id)
	}
	return evicted
}

// Len returns the number of tracked ids.
func (lru *lruTracker) Len() int {
	if lru == nil {
		return 0
	}
	return len(lru.items)
}
