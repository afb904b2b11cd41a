package locator

import (
	"sync"
)

// DefaultRecentCapacity bounds the memory of probed iframe sources.
const DefaultRecentCapacity = 50

// RecentSet is a thread-safe set of strings that forgets its oldest entry
// once it grows past capacity. Re-adding an entry does not refresh it.
type RecentSet struct {
	mutex    sync.RWMutex
	capacity int
	items    map[string]*recentNode
	head     *recentNode // newest
	tail     *recentNode // oldest
}

type recentNode struct {
	key  string
	prev *recentNode
	next *recentNode
}

// NewRecentSet creates a set holding at most capacity entries.
func NewRecentSet(capacity int) *RecentSet {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}

	s := &RecentSet{
		capacity: capacity,
		items:    make(map[string]*recentNode),
	}
	s.head = &recentNode{}
	s.tail = &recentNode{}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Add records key. It returns true when the oldest entry was evicted.
func (s *RecentSet) Add(key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.items[key]; exists {
		return false
	}

	n := &recentNode{key: key}
	n.prev = s.head
	n.next = s.head.next
	s.head.next.prev = n
	s.head.next = n
	s.items[key] = n

	if len(s.items) > s.capacity {
		oldest := s.tail.prev
		oldest.prev.next = s.tail
		s.tail.prev = oldest.prev
		delete(s.items, oldest.key)
		return true
	}
	return false
}

// Contains reports whether key is remembered.
func (s *RecentSet) Contains(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Len returns the number of remembered entries.
func (s *RecentSet) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.items)
}

// Clear forgets every entry.
func (s *RecentSet) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items = make(map[string]*recentNode)
	s.head.next = s.tail
	s.tail.prev = s.head
}
