package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// stripedLocks linearizes operations per (event, photo) key without one
// global lock: ingests of different photos proceed in parallel, while
// two ingests of the same photo apply store write and index update as a
// unit relative to each other.
type stripedLocks struct {
	stripes [lockStripes]sync.Mutex
}

// forKey returns the mutex guarding the given key.
func (l *stripedLocks) forKey(eventID, photoID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(eventID))
	h.Write([]byte{0})
	h.Write([]byte(photoID))
	return &l.stripes[h.Sum32()%lockStripes]
}
