package server

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/lawnchairsociety/statcalc/internal/config"
)

// ConnLimiter caps concurrent connections per client IP and in total.
// A limit of 0 means unlimited.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewConnLimiter creates a limiter from the connection settings.
func NewConnLimiter(cfg config.ConnectionsConfig) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		maxPerIP: cfg.MaxPerIP,
		maxTotal: cfg.MaxTotal,
	}
}

// TryAcquire takes a slot for ip. It returns false if either limit is reached.
func (c *ConnLimiter) TryAcquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTotal > 0 && c.total >= c.maxTotal {
		return false
	}
	if c.maxPerIP > 0 && c.perIP[ip] >= c.maxPerIP {
		return false
	}
	c.perIP[ip]++
	c.total++
	return true
}

// Release gives back a slot taken by TryAcquire.
func (c *ConnLimiter) Release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch n := c.perIP[ip]; {
	case n > 1:
		c.perIP[ip] = n - 1
	case n == 1:
		delete(c.perIP, ip)
	default:
		return
	}
	c.total--
}

// Stats returns the open connection count and the number of distinct IPs.
func (c *ConnLimiter) Stats() (total int, ips int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, len(c.perIP)
}

// Count returns the open connection count for ip.
func (c *ConnLimiter) Count(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perIP[ip]
}

// clientIP returns the caller's address, preferring the first X-Forwarded-For
// hop and then X-Real-IP when running behind a proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return hostOnly(r.RemoteAddr)
}

// hostOnly strips the port from an ip:port address.
func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
