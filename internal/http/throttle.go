package http

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleObserver is notified whenever a request is rejected by a limiter.
type ThrottleObserver interface {
	LoginThrottled()
}

const (
	defaultMaxClients = 10000
	idleBucketTTL     = 10 * time.Minute
	sweepInterval     = time.Minute
)

// LoginLimiter keeps one token bucket per client address. Clients are keyed
// on the socket peer; X-Forwarded-For is only read when the peer is a
// trusted proxy.
type LoginLimiter struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	idle       time.Duration
	maxClients int
	lastSweep  time.Time
	now        func() time.Time
	clients    map[string]*clientLimiter
	trusted    []netip.Prefix
	observer   ThrottleObserver
	logger     *slog.Logger
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows perSecond attempts per client with the given burst.
// Buckets idle for more than ten minutes are dropped.
func NewLoginLimiter(perSecond float64, burst int, observer ThrottleObserver, logger *slog.Logger) *LoginLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LoginLimiter{
		limit:      rate.Limit(perSecond),
		burst:      burst,
		idle:       idleBucketTTL,
		maxClients: defaultMaxClients,
		now:        time.Now,
		clients:    make(map[string]*clientLimiter),
		observer:   observer,
		logger:     defaultLogger(logger),
	}
}

// WithTrustedProxies honours X-Forwarded-For on requests whose peer address
// falls inside one of prefixes.
func (l *LoginLimiter) WithTrustedProxies(prefixes []netip.Prefix) *LoginLimiter {
	if l == nil {
		return nil
	}
	l.trusted = append([]netip.Prefix(nil), prefixes...)
	return l
}

// Allow reports whether client may attempt another login now.
func (l *LoginLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}

	c, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= l.maxClients {
			l.sweep(now)
			if len(l.clients) >= l.maxClients {
				l.evictOldest()
			}
		}
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// sweep drops idle buckets. Callers hold mu.
func (l *LoginLimiter) sweep(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idle {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// evictOldest drops the least recently seen bucket. Callers hold mu.
func (l *LoginLimiter) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, c := range l.clients {
		if oldestKey == "" || c.lastSeen.Before(oldest) {
			oldestKey, oldest = key, c.lastSeen
		}
	}
	delete(l.clients, oldestKey)
}

// Middleware answers 429 once a client exhausts its bucket.
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	responder := newResponder(l.logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := l.clientAddress(r)
		if !l.Allow(client) {
			if l.observer != nil {
				l.observer.LoginThrottled()
			}
			handlerLogger(r.Context(), l.logger, "LoginLimiter", "Allow", "client", client).
				WarnContext(r.Context(), "login attempt throttled")
			w.Header().Set("Retry-After", "1")
			responder.writeError(r.Context(), w, http.StatusTooManyRequests, codeTooManyRequests, errTooManyLogins)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddress returns the socket peer, or, when the peer is a trusted
// proxy, the right-most X-Forwarded-For hop that is not itself trusted.
func (l *LoginLimiter) clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !l.isTrusted(peer) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return host
		}
		if !l.isTrusted(hop) {
			return hop.Unmap().String()
		}
	}
	return host
}

func (l *LoginLimiter) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range l.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
