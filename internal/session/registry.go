package session

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"educamp/internal/domain"
	"educamp/internal/metrics"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = time.Hour
	defaultShards        = 32
)

var (
	ErrAccountDisabled   = domain.NewError(domain.ErrInvalidState, "account is deactivated")
	ErrPrincipalNotFound = domain.NewError(domain.ErrNotFound, "principal not found")
)

// PrincipalSource es la fuente de verdad para el estado de la cuenta.
// Debe devolver un error que envuelva domain.ErrNotFound si el usuario no existe.
type PrincipalSource interface {
	LoadPrincipal(ctx context.Context, userID string) (domain.Principal, error)
}

type shard struct {
	mu    sync.RWMutex
	items map[string]domain.Session
}

// Registry es la tabla concurrente token -> sesion.
type Registry struct {
	source   PrincipalSource
	logger   *zap.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	shards   []*shard

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Registry)

func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSweepInterval fija la frecuencia del barrido. Un valor <= 0 desactiva
// la goroutine de barrido (Sweep se puede seguir llamando a mano).
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.interval = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithShards(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shards = newShards(n)
		}
	}
}

// NewRegistry construye el registro y lanza el barrido periodico.
// Close detiene el barrido.
func NewRegistry(source PrincipalSource, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		source:   source,
		logger:   logger,
		ttl:      DefaultTTL,
		interval: DefaultSweepInterval,
		now:      func() time.Time { return time.Now().UTC() },
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.shards == nil {
		r.shards = newShards(defaultShards)
	}

	if r.interval > 0 {
		go r.sweepLoop()
	} else {
		close(r.done)
	}
	return r
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{items: make(map[string]domain.Session)}
	}
	return shards
}

// TTL devuelve la duracion de la ventana deslizante.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create registra una sesion nueva para el principal. La cuenta se vuelve a
// leer de la fuente de verdad; cuentas inactivas son rechazadas.
func (r *Registry) Create(ctx context.Context, principal domain.Principal, clientIP string) (domain.Session, error) {
	if r.source != nil {
		fresh, err := r.source.LoadPrincipal(ctx, principal.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Session{}, ErrPrincipalNotFound
			}
			return domain.Session{}, fmt.Errorf("session: load principal: %w", err)
		}
		principal = fresh
	}
	if !principal.Active {
		return domain.Session{}, ErrAccountDisabled
	}

	token, err := NewToken()
	if err != nil {
		return domain.Session{}, err
	}

	now := r.now()
	sess := domain.Session{
		Token:      token,
		Principal:  principal,
		ClientIP:   strings.TrimSpace(clientIP),
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.ttl),
		LastSeenAt: now,
	}

	sh := r.shardFor(token)
	sh.mu.Lock()
	sh.items[token] = sess
	sh.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	r.logger.Info("session created",
		zap.String("session", tokenPrefix(token)),
		zap.String("user_id", principal.UserID),
		zap.String("role", string(principal.Role)),
	)
	return sess, nil
}

// Validate resuelve el token y desliza su expiracion. Devuelve
// domain.ErrUnauthenticated si el token no existe, vencio o la cuenta fue
// desactivada; en los dos ultimos casos la entrada se elimina.
func (r *Registry) Validate(ctx context.Context, token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	sh := r.shardFor(token)
	sh.mu.RLock()
	sess, ok := sh.items[token]
	sh.mu.RUnlock()
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	if !sess.Valid(r.now()) {
		r.removeIfExpired(sh, token)
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	principal := sess.Principal
	if r.source != nil {
		fresh, err := r.source.LoadPrincipal(ctx, principal.UserID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			r.remove(token, "deactivated")
			return domain.Principal{}, domain.ErrUnauthenticated
		case err != nil:
			return domain.Principal{}, fmt.Errorf("session: load principal: %w", err)
		}
		principal = fresh
	}
	if !principal.Active {
		r.logger.Warn("session owner deactivated", zap.String("user_id", principal.UserID))
		r.remove(token, "deactivated")
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	now := r.now()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur, ok := sh.items[token]
	if !ok {
		// invalidada mientras se consultaba la fuente
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if !cur.Valid(now) {
		delete(sh.items, token)
		metrics.SessionsActive.Dec()
		metrics.SessionsRemoved.WithLabelValues("expired").Inc()
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	cur.Principal = principal
	cur.ExpiresAt = now.Add(r.ttl)
	cur.LastSeenAt = now
	sh.items[token] = cur
	return principal, nil
}

// Lookup devuelve la sesion sin deslizar la expiracion.
func (r *Registry) Lookup(token string) (domain.Session, bool) {
	sh := r.shardFor(token)
	sh.mu.RLock()
	sess, ok := sh.items[token]
	sh.mu.RUnlock()
	if !ok || !sess.Valid(r.now()) {
		return domain.Session{}, false
	}
	return sess, true
}

// Invalidate elimina la sesion. Tokens desconocidos no son un error.
func (r *Registry) Invalidate(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	if r.remove(token, "logout") {
		r.logger.Info("session invalidated", zap.String("session", tokenPrefix(token)))
	}
}

// InvalidateUser elimina todas las sesiones de un usuario y devuelve cuantas habia.
func (r *Registry) InvalidateUser(userID string) int {
	removed := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		for token, sess := range sh.items {
			if sess.Principal.UserID == userID {
				delete(sh.items, token)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		metrics.SessionsActive.Sub(float64(removed))
		metrics.SessionsRemoved.WithLabelValues("logout").Add(float64(removed))
		r.logger.Info("user sessions invalidated", zap.String("user_id", userID), zap.Int("count", removed))
	}
	return removed
}

// Len devuelve la cantidad de entradas en la tabla, vencidas incluidas.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep elimina las entradas con expires_at <= now. Bloquea un shard por vez.
func (r *Registry) Sweep() int {
	start := time.Now()
	removed := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		now := r.now()
		for token, sess := range sh.items {
			if !sess.Valid(now) {
				delete(sh.items, token)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if removed > 0 {
		metrics.SessionsActive.Sub(float64(removed))
		metrics.SessionsRemoved.WithLabelValues("swept").Add(float64(removed))
		r.logger.Info("expired sessions swept", zap.Int("removed", removed))
	}
	return removed
}

// Close detiene el barrido periodico. Es seguro llamarlo mas de una vez.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
	return nil
}

func (r *Registry) sweepLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) remove(token, reason string) bool {
	sh := r.shardFor(token)
	sh.mu.Lock()
	_, ok := sh.items[token]
	if ok {
		delete(sh.items, token)
	}
	sh.mu.Unlock()
	if ok {
		metrics.SessionsActive.Dec()
		metrics.SessionsRemoved.WithLabelValues(reason).Inc()
	}
	return ok
}

func (r *Registry) removeIfExpired(sh *shard, token string) {
	sh.mu.Lock()
	sess, ok := sh.items[token]
	expired := ok && !sess.Valid(r.now())
	if expired {
		delete(sh.items, token)
	}
	sh.mu.Unlock()
	if expired {
		metrics.SessionsActive.Dec()
		metrics.SessionsRemoved.WithLabelValues("expired").Inc()
		r.logger.Debug("session expired", zap.String("session", tokenPrefix(token)))
	}
}

func (r *Registry) shardFor(token string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}
