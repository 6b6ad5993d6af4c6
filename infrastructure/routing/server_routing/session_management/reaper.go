package session_management

import (
	"context"
	"time"

	"tunlink/application"
)

// RunIdleReaperLoop periodically evicts sessions whose idle time
// exceeds timeout. Each evicted session is removed first, then handed
// to onEvict for a best-effort disconnect notification; no further
// datagrams are accepted from that address until a fresh handshake.
// Blocks until ctx is cancelled.
func RunIdleReaperLoop(
	ctx context.Context,
	manager SessionManager,
	timeout, interval time.Duration,
	onEvict func(Session),
	logger application.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := manager.Expired(time.Now(), timeout)
			for _, session := range expired {
				manager.Remove(session.Addr)
				logger.Printf("evicted stale session %s", session.Addr)
				if onEvict != nil {
					onEvict(session)
				}
			}
		}
	}
}
