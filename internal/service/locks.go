package service

import "sync"

// RoomLocker is the per-room serialization point. Every room-mutating
// operation (join/leave/permission-change/code-update/output-write) runs
// fully under the room's mutex, so no two mutations of one room interleave
// while different rooms proceed concurrently. Events are published before
// the mutex is released, which makes broadcast order equal apply order.
type RoomLocker struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewRoomLocker creates an empty RoomLocker.
func NewRoomLocker() *RoomLocker {
	return &RoomLocker{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the mutex for the given room, creating it on first use, and
// returns it so the caller can defer the unlock.
func (l *RoomLocker) Lock(roomID uint) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[roomID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[roomID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}

// Forget drops the mutex of a torn-down room. Holders keep their reference,
// so calling this while the lock is held is safe.
func (l *RoomLocker) Forget(roomID uint) {
	l.mu.Lock()
	delete(l.locks, roomID)
	l.mu.Unlock()
}
