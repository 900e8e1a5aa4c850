package evaluation

import (
	"sync"

	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
)

// FitnessCache memoizes fitness results by chromosome content key with LRU
// eviction, so clones and elite copies never re-run the task suite.
type FitnessCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*cacheEntry
	lru      *lruList

	hits   int64
	misses int64
}

type cacheEntry struct {
	result  genome.FitnessResult
	element *lruElement
}

type lruElement struct {
	key  string
	prev *lruElement
	next *lruElement
}

type lruList struct {
	head *lruElement
	tail *lruElement
}

func newLRUList() *lruList {
	head := &lruElement{}
	tail := &lruElement{}
	head.next = tail
	tail.prev = head
	return &lruList{head: head, tail: tail}
}

func (l *lruList) moveToFront(elem *lruElement) {
	if elem.prev == l.head {
		return
	}
	elem.prev.next = elem.next
	elem.next.prev = elem.prev
	elem.prev = l.head
	elem.next = l.head.next
	l.head.next.prev = elem
	l.head.next = elem
}

func (l *lruList) pushFront(key string) *lruElement {
	elem := &lruElement{key: key}
	elem.prev = l.head
	elem.next = l.head.next
	l.head.next.prev = elem
	l.head.next = elem
	return elem
}

func (l *lruList) removeElement(elem *lruElement) {
	elem.prev.next = elem.next
	elem.next.prev = elem.prev
}

func (l *lruList) back() *lruElement {
	if l.tail.prev == l.head {
		return nil
	}
	return l.tail.prev
}

// DefaultCacheCapacity bounds a cache constructed with a non-positive size.
const DefaultCacheCapacity = 4096

// NewFitnessCache returns an empty cache holding at most capacity results.
func NewFitnessCache(capacity int) *FitnessCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &FitnessCache{
		capacity: capacity,
		entries:  make(map[string]*cacheEntry),
		lru:      newLRUList(),
	}
}

// Get returns a copy of the cached result for the content key.
func (c *FitnessCache) Get(key string) (*genome.FitnessResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.lru.moveToFront(entry.element)
	c.hits++

	result := entry.result
	return &result, true
}

// Put stores a copy of the result under the content key, evicting the least
// recently used entry past capacity.
func (c *FitnessCache) Put(key string, result *genome.FitnessResult) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.result = *result
		c.lru.moveToFront(existing.element)
		return
	}

	if len(c.entries) >= c.capacity {
		if victim := c.lru.back(); victim != nil {
			c.lru.removeElement(victim)
			delete(c.entries, victim.key)
		}
	}
	c.entries[key] = &cacheEntry{
		result:  *result,
		element: c.lru.pushFront(key),
	}
}

// Len reports the stored entry count.
func (c *FitnessCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cumulative hit and miss counts.
func (c *FitnessCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
