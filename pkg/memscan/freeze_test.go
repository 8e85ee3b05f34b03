package memscan

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFreezeCompletes(t *testing.T) {
	s, p := fakeSession(0x10000, 0x1000)
	p.poke(0x10100, Int32Value(100).Encode())

	outcome, err := s.Freeze(context.Background(), 0x10100, Int32Value(100), 30*time.Millisecond, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if outcome != FreezeCompleted {
		t.Fatalf("expected %s, got %s", FreezeCompleted, outcome)
	}
	got, err := s.ReadByAddress(0x10100, Int32)
	if err != nil {
		t.Fatalf("ReadByAddress: %v", err)
	}
	if got != Int32Value(100) {
		t.Fatalf("expected %#v, got %#v", Int32Value(100), got)
	}
}

func TestFreezeContextCancel(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x1000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	// indefinite freeze, only the context can end it
	outcome, err := s.Freeze(ctx, 0x10100, Int32Value(55), 0, 2*time.Millisecond)
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if outcome != FreezeCancelled {
		t.Fatalf("expected %s, got %s", FreezeCancelled, outcome)
	}
}

func TestFreezeRestoresValue(t *testing.T) {
	s, p := fakeSession(0x10000, 0x1000)

	task := s.StartFreeze(0x10100, Int32Value(100), 0, 2*time.Millisecond)
	defer task.Cancel()

	// the target keeps overwriting the value; the freezer must win
	restored := false
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); {
		p.poke(0x10100, Int32Value(55).Encode())
		time.Sleep(10 * time.Millisecond)
		v, err := DecodeValue(p.peek(0x10100, 4), Int32)
		if err != nil {
			t.Fatalf("DecodeValue: %v", err)
		}
		if v == Int32Value(100) {
			restored = true
			break
		}
	}
	if !restored {
		t.Fatal("expected frozen value to be written back")
	}

	task.Cancel()
	outcome, err := task.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if outcome != FreezeCancelled {
		t.Fatalf("expected %s, got %s", FreezeCancelled, outcome)
	}
}

func TestFreezeDurationElapses(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x1000)

	task := s.StartFreeze(0x10100, Int32Value(1), 20*time.Millisecond, 5*time.Millisecond)
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected freeze to finish on its own")
	}
	outcome, err := task.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if outcome != FreezeCompleted {
		t.Fatalf("expected %s, got %s", FreezeCompleted, outcome)
	}
}

func TestFreezeSurvivesWriteFailures(t *testing.T) {
	s, p := fakeSession(0x10000, 0x1000)
	p.failWrites[0x10000] = true

	task := s.StartFreeze(0x10100, Int32Value(1), 0, 2*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	select {
	case <-task.Done():
		_, err := task.Wait()
		t.Fatalf("expected freeze to keep running through write failures, finished with %v", err)
	default:
	}
	task.Cancel()
	outcome, err := task.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if outcome != FreezeCancelled {
		t.Fatalf("expected %s, got %s", FreezeCancelled, outcome)
	}
}

func TestFreezeAbortsOnDetach(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x1000)

	task := s.StartFreeze(0x10100, Int32Value(1), 0, 2*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if err := s.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected freeze to stop after detach")
	}
	outcome, err := task.Wait()
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if outcome != FreezeCancelled {
		t.Fatalf("expected %s, got %s", FreezeCancelled, outcome)
	}
}

func TestFreezeWritesImmediately(t *testing.T) {
	s, p := fakeSession(0x10000, 0x1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// even a cancelled context gets the first write in
	if _, err := s.Freeze(ctx, 0x10100, Int32Value(42), 0, time.Hour); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	v, err := DecodeValue(p.peek(0x10100, 4), Int32)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if v != Int32Value(42) {
		t.Fatalf("expected %#v, got %#v", Int32Value(42), v)
	}
}
