package synch

import (
	"sync"
	"testing"
	"time"
)

// Partitions:
//	-> Lock
//		-> mutual exclusion, HeldBy before/during/after
//	-> Condition
//		-> signal wakes a waiter, predicate re-check
//	-> Channel
//		-> 1 message, many messages, many senders

// Covers:
//	-> lock/heldby
func TestLockHeldBy(tt *testing.T) {
	l := NewLock("test")
	if l.HeldBy(1) {
		tt.Errorf("fresh lock claims a holder")
	}
	l.Acquire(1)
	if !l.HeldBy(1) || l.HeldBy(2) {
		tt.Errorf("wrong holder reported")
	}
	l.Release(1)
	if l.HeldBy(1) {
		tt.Errorf("released lock still claims a holder")
	}
}

// Covers:
//	-> lock/mutual exclusion
func TestLockExcludes(tt *testing.T) {
	l := NewLock("test")
	counter := 0
	var wg sync.WaitGroup
	for tid := 0; tid < 8; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Acquire(tid)
				c := counter
				counter = c + 1
				l.Release(tid)
			}
		}(tid)
	}
	wg.Wait()
	if counter != 800 {
		tt.Errorf("lost updates: counter is %d, wanted 800", counter)
	}
}

// Covers:
//	-> condition/signal+recheck
func TestConditionSignal(tt *testing.T) {
	l := NewLock("test")
	c := NewCondition(l)
	ready := false
	done := make(chan struct{})

	go func() {
		l.Acquire(1)
		for !ready {
			c.Wait(1)
		}
		l.Release(1)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	l.Acquire(2)
	ready = true
	c.Signal()
	l.Release(2)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		tt.Fatal("waiter never woke up")
	}
}

// Covers:
//	-> channel/1 message
//	-> channel/many messages
func TestChannelDelivers(tt *testing.T) {
	ch := NewChannel("test")
	got := make([]int, 0, 10)
	done := make(chan struct{})

	go func() {
		for i := 0; i < 10; i++ {
			got = append(got, ch.Receive(1))
		}
		close(done)
	}()

	for i := 0; i < 10; i++ {
		ch.Send(2, i*i)
	}
	<-done

	for i, v := range got {
		if v != i*i {
			tt.Errorf("message %d was %d, wanted %d", i, v, i*i)
		}
	}
}

// Covers:
//	-> channel/many senders
func TestChannelManySenders(tt *testing.T) {
	ch := NewChannel("test")
	var wg sync.WaitGroup
	for tid := 0; tid < 5; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			ch.Send(tid, tid)
		}(tid)
	}

	seen := map[int]bool{}
	for i := 0; i < 5; i++ {
		seen[ch.Receive(99)] = true
	}
	wg.Wait()
	if len(seen) != 5 {
		tt.Errorf("got %d distinct messages, wanted 5", len(seen))
	}
}
