package coop

import (
	"errors"
	"testing"
	"time"
)

func produce(tx *Sender[int], items []int) TaskFunc {
	i := 0
	return func(t *Task) Poll {
		for i < len(items) {
			ok, err := tx.Send(t, items[i])
			if err != nil {
				return t.Fail(err)
			}
			if !ok {
				return t.Suspend()
			}
			i++
		}
		tx.Close()
		return t.Complete(nil)
	}
}

func consume(rx *Receiver[int]) TaskFunc {
	var got []int
	return func(t *Task) Poll {
		for {
			if rx.Len() > rx.Cap() {
				return t.Fail(errors.New("buffer exceeded capacity"))
			}
			v, ok, err := rx.Receive(t)
			if errors.Is(err, ErrEndOfStream) {
				return t.Complete(got)
			}
			if err != nil {
				return t.Fail(err)
			}
			if !ok {
				return t.Suspend()
			}
			got = append(got, v)
		}
	}
}

// Items cross a small buffer in exactly the order they were sent, however
// many suspensions that takes.
func TestChannelFIFO(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, 4)
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	tx, rx := NewChannel[int](4)
	hp, _ := e.Submit(produce(tx, items))
	hc, _ := e.Submit(consume(rx))
	if _, err := hp.AwaitTimeout(5 * time.Second); err != nil {
		t.Fatalf("producer: %v", err)
	}
	v, err := hc.AwaitTimeout(5 * time.Second)
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}
	got := v.([]int)
	if len(got) != len(items) {
		t.Fatalf("expected %d items, got %d", len(items), len(got))
	}
	for i := range items {
		if got[i] != items[i] {
			t.Fatalf("order broken at %d: got %d", i, got[i])
		}
	}
}

func TestCloseDrainsThenEndOfStream(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, 1)
	tx, rx := NewChannel[int](4)
	for _, v := range []int{1, 2} {
		if ok, err := tx.TrySend(v); !ok || err != nil {
			t.Fatalf("try send %d: ok=%v err=%v", v, ok, err)
		}
	}
	tx.Close()
	tx.Close() // idempotent

	if ok, err := tx.TrySend(3); ok || !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: ok=%v err=%v", ok, err)
	}

	h, _ := e.Submit(consume(rx))
	v, err := h.AwaitTimeout(5 * time.Second)
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}
	got := v.([]int)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected buffered items drained in order, got %v", got)
	}
	if _, _, err := rx.TryReceive(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

// Capacity-2 channel: send(1), send(2) succeed; send(3) suspends the
// sender; receiving 1 wakes it; send(3) then lands. Remaining order: 2, 3.
func TestBackpressure(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, 1)
	tx, rx := NewChannel[int](2)
	i := 1
	h, _ := e.Submit(func(t *Task) Poll {
		for i <= 3 {
			ok, err := tx.Send(t, i)
			if err != nil {
				return t.Fail(err)
			}
			if !ok {
				return t.Suspend()
			}
			i++
		}
		return t.Complete(nil)
	})
	waitStatus(t, h, Suspended)
	if n := rx.Len(); n != 2 {
		t.Fatalf("expected full buffer, got %d", n)
	}

	v, ok, err := rx.TryReceive()
	if !ok || err != nil || v != 1 {
		t.Fatalf("first receive: v=%v ok=%v err=%v", v, ok, err)
	}
	if _, err := h.AwaitTimeout(5 * time.Second); err != nil {
		t.Fatalf("sender: %v", err)
	}
	for _, want := range []int{2, 3} {
		v, ok, err := rx.TryReceive()
		if !ok || err != nil || v != want {
			t.Fatalf("expected %d, got v=%v ok=%v err=%v", want, v, ok, err)
		}
	}
}

func TestReceiversBlockUntilSend(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, 2)
	tx, rx := NewChannel[int](1)
	h, _ := e.Submit(func(t *Task) Poll {
		v, ok, err := rx.Receive(t)
		if err != nil {
			return t.Fail(err)
		}
		if !ok {
			return t.Suspend()
		}
		return t.Complete(v)
	})
	waitStatus(t, h, Suspended)
	if ok, err := tx.TrySend(7); !ok || err != nil {
		t.Fatalf("send: ok=%v err=%v", ok, err)
	}
	v, err := h.AwaitTimeout(5 * time.Second)
	if err != nil {
		t.Fatalf("receiver: %v", err)
	}
	if v != 7 {
		t.Fatalf("expected 7, got %v", v)
	}
}

func TestCloseWakesSuspendedSenders(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, 1)
	tx, _ := NewChannel[int](1)
	if ok, _ := tx.TrySend(0); !ok {
		t.Fatal("priming send failed")
	}
	h, _ := e.Submit(func(t *Task) Poll {
		ok, err := tx.Send(t, 1)
		if errors.Is(err, ErrClosed) {
			return t.Complete("closed")
		}
		if err != nil {
			return t.Fail(err)
		}
		if !ok {
			return t.Suspend()
		}
		return t.Complete("sent")
	})
	waitStatus(t, h, Suspended)
	tx.Close()
	v, err := h.AwaitTimeout(5 * time.Second)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if v != "closed" {
		t.Fatalf("expected closed outcome, got %v", v)
	}
}

// A receiver cancelled while queued must not swallow the wake a send
// delivers; the wake passes to the next suspended receiver even while the
// cancelled task is still waiting to unwind.
func TestCancelledReceiverPassesWake(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, 1)
	tx, rx := NewChannel[int](1)

	recv := func() TaskFunc {
		return func(t *Task) Poll {
			v, ok, err := rx.Receive(t)
			if err != nil {
				return t.Fail(err)
			}
			if !ok {
				return t.Suspend()
			}
			return t.Complete(v)
		}
	}
	doomed, _ := e.Submit(recv())
	waitStatus(t, doomed, Suspended)
	survivor, _ := e.Submit(recv())
	waitStatus(t, survivor, Suspended)

	// Park the only worker so the cancelled receiver is still queued, not
	// yet unwound, when the send arrives.
	gate := make(chan struct{})
	parked, _ := e.Submit(func(t *Task) Poll {
		<-gate
		return t.Complete(nil)
	})
	waitStatus(t, parked, Running)

	doomed.Cancel()
	if ok, err := tx.TrySend(7); !ok || err != nil {
		t.Fatalf("send: ok=%v err=%v", ok, err)
	}
	close(gate)

	if _, err := doomed.Await(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("doomed receiver: %v", err)
	}
	v, err := survivor.AwaitTimeout(5 * time.Second)
	if err != nil {
		t.Fatalf("survivor starved: %v", err)
	}
	if v != 7 {
		t.Fatalf("expected 7, got %v", v)
	}
	if _, err := parked.AwaitTimeout(5 * time.Second); err != nil {
		t.Fatalf("parked: %v", err)
	}
}

// The mirror case on the send side: a cancelled queued sender must not
// swallow the wake a receive delivers.
func TestCancelledSenderPassesWake(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, 1)
	tx, rx := NewChannel[int](1)
	if ok, _ := tx.TrySend(0); !ok {
		t.Fatal("priming send failed")
	}

	send := func(v int) TaskFunc {
		return func(t *Task) Poll {
			ok, err := tx.Send(t, v)
			if err != nil {
				return t.Fail(err)
			}
			if !ok {
				return t.Suspend()
			}
			return t.Complete(nil)
		}
	}
	doomed, _ := e.Submit(send(1))
	waitStatus(t, doomed, Suspended)
	survivor, _ := e.Submit(send(2))
	waitStatus(t, survivor, Suspended)

	gate := make(chan struct{})
	parked, _ := e.Submit(func(t *Task) Poll {
		<-gate
		return t.Complete(nil)
	})
	waitStatus(t, parked, Running)

	doomed.Cancel()
	v, ok, err := rx.TryReceive()
	if !ok || err != nil || v != 0 {
		t.Fatalf("receive: v=%v ok=%v err=%v", v, ok, err)
	}
	close(gate)

	if _, err := doomed.Await(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("doomed sender: %v", err)
	}
	if _, err := survivor.AwaitTimeout(5 * time.Second); err != nil {
		t.Fatalf("survivor starved: %v", err)
	}
	v, ok, err = rx.TryReceive()
	if !ok || err != nil || v != 2 {
		t.Fatalf("expected survivor's item, got v=%v ok=%v err=%v", v, ok, err)
	}
	if _, err := parked.AwaitTimeout(5 * time.Second); err != nil {
		t.Fatalf("parked: %v", err)
	}
}

func TestChannelCapacityValidated(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero capacity")
		}
	}()
	NewChannel[int](0)
}
