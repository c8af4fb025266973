package models

import (
	"sync"
)

// SynchronizedMap is a map structure that can be shared
// across go routines. The status sweeps use it to collect
// per-box results while boxes are being queried in parallel.
// Both keys and values are strings.
type SynchronizedMap struct {
	data  map[string]string
	mutex sync.RWMutex
}

// Creates a new empty SynchronizedMap
func NewSynchronizedMap() *SynchronizedMap {
	return &SynchronizedMap{
		data: make(map[string]string),
	}
}

// Adds a key/value pair to the map.
func (syncMap *SynchronizedMap) Add(key, value string) {
	syncMap.mutex.Lock()
	syncMap.data[key] = value
	syncMap.mutex.Unlock()
}

// Returns the value of key from the map.
func (syncMap *SynchronizedMap) Get(key string) string {
	syncMap.mutex.RLock()
	value := syncMap.data[key]
	syncMap.mutex.RUnlock()
	return value
}

// Len returns the number of entries in the map.
func (syncMap *SynchronizedMap) Len() int {
	syncMap.mutex.RLock()
	defer syncMap.mutex.RUnlock()
	return len(syncMap.data)
}

// Copy returns a plain map holding a snapshot of the current
// entries. Changes to the copy do not affect the SynchronizedMap.
func (syncMap *SynchronizedMap) Copy() map[string]string {
	syncMap.mutex.RLock()
	defer syncMap.mutex.RUnlock()
	snapshot := make(map[string]string, len(syncMap.data))
	for key, val := range syncMap.data {
		snapshot[key] = val
	}
	return snapshot
}
