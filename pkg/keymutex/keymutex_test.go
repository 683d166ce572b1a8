package keymutex

import (
	"sync"
	"testing"
	"time"
)

func TestLock_SerializesSameKey(t *testing.T) {
	km := New()

	const workers = 10
	var counter, max int
	var track sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("account-1")
			defer km.Unlock("account-1")

			track.Lock()
			counter++
			if counter > max {
				max = counter
			}
			track.Unlock()

			time.Sleep(time.Millisecond)

			track.Lock()
			counter--
			track.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("expected at most 1 holder of the same key, saw %d", max)
	}
}

func TestLock_IndependentKeysDoNotBlock(t *testing.T) {
	km := New()
	km.Lock("account-1")
	defer km.Unlock("account-1")

	done := make(chan struct{})
	go func() {
		km.Lock("account-2")
		km.Unlock("account-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked behind account-1")
	}
}

func TestUnlock_DropsEntryWhenLastHolderReleases(t *testing.T) {
	km := New()

	km.Lock("account-1")
	km.Unlock("account-1")

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("expected empty lock map after release, got %d entries", len(km.locks))
	}
}

func TestUnlock_UnheldKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unlocking an unheld key")
		}
	}()
	New().Unlock("never-locked")
}
