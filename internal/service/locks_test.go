package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomLocker_SerializesPerRoom(t *testing.T) {
	locker := NewRoomLocker()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			mu := locker.Lock(1)
			defer mu.Unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestRoomLocker_RoomsAreIndependent(t *testing.T) {
	locker := NewRoomLocker()

	mu1 := locker.Lock(1)
	defer mu1.Unlock()

	// A different room's lock must not block while room 1 is held.
	done := make(chan struct{})
	go func() {
		mu2 := locker.Lock(2)
		mu2.Unlock()
		close(done)
	}()
	<-done
}

func TestRoomLocker_ForgetDropsLock(t *testing.T) {
	locker := NewRoomLocker()

	mu := locker.Lock(1)
	mu.Unlock()
	locker.Forget(1)

	// A fresh mutex is handed out after Forget.
	fresh := locker.Lock(1)
	assert.NotSame(t, mu, fresh)
	fresh.Unlock()
}
