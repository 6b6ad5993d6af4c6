package session_management

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines int
}

func (l *recordingLogger) Printf(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines++
}

func TestRunIdleReaperLoop_EvictsStaleSessions(t *testing.T) {
	manager := NewConcurrentSessionManager(NewDefaultSessionManager())
	stale := addr("127.0.0.1:1000")
	fresh := addr("127.0.0.1:2000")

	manager.Insert(Session{Addr: stale, LastSeen: time.Now().Add(-time.Second)})
	manager.Insert(Session{Addr: fresh, LastSeen: time.Now().Add(time.Hour)})

	var mu sync.Mutex
	var evicted []Session
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunIdleReaperLoop(ctx, manager, 100*time.Millisecond, 50*time.Millisecond, func(s Session) {
			mu.Lock()
			defer mu.Unlock()
			evicted = append(evicted, s)
		}, &recordingLogger{})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := manager.GetByAddr(stale); err != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if _, err := manager.GetByAddr(stale); err == nil {
		t.Fatal("stale session must be evicted")
	}
	if _, err := manager.GetByAddr(fresh); err != nil {
		t.Fatal("fresh session must survive")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 1 || evicted[0].Addr != stale {
		t.Fatalf("unexpected evictions: %+v", evicted)
	}
}

func TestRunIdleReaperLoop_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunIdleReaperLoop(ctx, NewConcurrentSessionManager(NewDefaultSessionManager()),
			time.Minute, time.Millisecond, nil, &recordingLogger{})
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper must stop when the context is cancelled")
	}
}
