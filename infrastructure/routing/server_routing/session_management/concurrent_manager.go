package session_management

import (
	"net/netip"
	"sync"
	"time"
)

// ConcurrentSessionManager makes any SessionManager safe for use by the
// transport handler, the TUN handler and the reaper at once.
type ConcurrentSessionManager struct {
	mu      sync.RWMutex
	manager SessionManager
}

func NewConcurrentSessionManager(manager SessionManager) SessionManager {
	return &ConcurrentSessionManager{manager: manager}
}

func (c *ConcurrentSessionManager) Insert(session Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.Insert(session)
}

func (c *ConcurrentSessionManager) Remove(addr netip.AddrPort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.Remove(addr)
}

func (c *ConcurrentSessionManager) GetByAddr(addr netip.AddrPort) (Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager.GetByAddr(addr)
}

func (c *ConcurrentSessionManager) GetByInternalIP(ip netip.Addr) (Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager.GetByInternalIP(ip)
}

func (c *ConcurrentSessionManager) MarkAuthenticated(addr netip.AddrPort) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.MarkAuthenticated(addr)
}

func (c *ConcurrentSessionManager) MapInternalIP(addr netip.AddrPort, ip netip.Addr) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.MapInternalIP(addr, ip)
}

func (c *ConcurrentSessionManager) Touch(addr netip.AddrPort, seen time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.Touch(addr, seen)
}

func (c *ConcurrentSessionManager) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager.Len()
}

func (c *ConcurrentSessionManager) Expired(now time.Time, timeout time.Duration) []Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager.Expired(now, timeout)
}
