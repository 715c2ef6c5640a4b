package auth

import (
	"sync"
	"time"
)

// Revocations rejects session tokens before their natural expiry. A single
// token is revoked on logout; every token of a user is revoked when the user
// is disabled. State is process-local and a restart forgets it, which the
// session TTL bounds.
type Revocations struct {
	mu       sync.RWMutex
	tokens   map[string]time.Time // jti -> token expiry
	users    map[string]userCutoff
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

// userCutoff rejects tokens of a user issued at or before issuedBy. It is
// kept until forgetAt, after which every such token has expired.
type userCutoff struct {
	issuedBy time.Time
	forgetAt time.Time
}

type RevocationOption func(*Revocations)

// WithSessionTTL tells the store how long issued tokens live, which bounds
// how long a user revocation must be remembered. Defaults to DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) RevocationOption {
	return func(r *Revocations) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithPruneInterval sets how often expired revocations are dropped.
func WithPruneInterval(d time.Duration) RevocationOption {
	return func(r *Revocations) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRevocations starts a pruning goroutine; stop it with Close.
func NewRevocations(opts ...RevocationOption) *Revocations {
	r := &Revocations{
		tokens:   make(map[string]time.Time),
		users:    make(map[string]userCutoff),
		ttl:      DefaultSessionTTL,
		interval: 5 * time.Minute,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	go r.pruneLoop()
	return r
}

// RevokeToken revokes the token carrying claims. Tokens without an id or an
// expiry cannot be tracked and are ignored.
func (r *Revocations) RevokeToken(claims *Claims) {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	r.mu.Lock()
	r.tokens[claims.ID] = claims.ExpiresAt.Time
	r.mu.Unlock()
}

// RevokeUser revokes every token issued to userID up to now. Issue times
// carry whole seconds, so a token issued in the same second is revoked too.
func (r *Revocations) RevokeUser(userID string) {
	if userID == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	r.users[userID] = userCutoff{issuedBy: now.Truncate(time.Second), forgetAt: now.Add(r.ttl)}
	r.mu.Unlock()
}

func (r *Revocations) IsRevoked(claims *Claims) bool {
	if claims == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tokens[claims.ID]; ok && claims.ID != "" {
		return true
	}
	cut, ok := r.users[claims.Subject]
	if !ok {
		return false
	}
	if claims.IssuedAt == nil {
		return true
	}
	return !claims.IssuedAt.Time.After(cut.issuedBy)
}

// Len returns the number of revoked tokens and revoked users held.
func (r *Revocations) Len() (tokens, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens), len(r.users)
}

// Close stops pruning. The store keeps answering afterwards.
func (r *Revocations) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *Revocations) pruneLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.prune()
		}
	}
}

func (r *Revocations) prune() {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, exp := range r.tokens {
		if now.After(exp) {
			delete(r.tokens, jti)
		}
	}
	for id, cut := range r.users {
		if now.After(cut.forgetAt) {
			delete(r.users, id)
		}
	}
}
