package credentials

import (
	"sync"
	"time"

	"github.com/hilthontt/syncbroker/internal/domain"
)

// authTimeout bounds how long a deferred login may remain unconfirmed.
const authTimeout = 300 * time.Second

// result is what a pending deferred-auth entry eventually settles with.
type result struct {
	jwt string
	err error
}

// pendingAuth is one in-flight out-of-band login. It owns the timer that
// evicts it from the registry and rejects its waiter if nobody confirms it
// in time — the same per-entry-timer idiom the teacher's rate limiter uses
// for its window buckets, here driving a single-fire settlement instead of
// a periodic sweep.
type pendingAuth struct {
	ch    chan result
	timer *time.Timer
	once  sync.Once

	// confirmed is guarded by the registry's mutex. A confirmed entry stays
	// in the map until its awaiter collects the result or its timer evicts
	// it, so an Await that arrives after ConfirmUser still finds it.
	confirmed bool
}

func (p *pendingAuth) settle(r result) {
	p.once.Do(func() {
		p.ch <- r
		close(p.ch)
	})
}

// DeferredRegistry is the in-memory map of confirm tokens awaiting
// out-of-band confirmation.
type DeferredRegistry struct {
	mu      sync.Mutex
	pending map[string]*pendingAuth
}

func NewDeferredRegistry() *DeferredRegistry {
	return &DeferredRegistry{pending: make(map[string]*pendingAuth)}
}

// Register opens a deferred entry keyed by confirmToken and arms its
// 300-second eviction timer. Split out from awaiting so an HTTP layer can
// register at one request (POST /api/login/url) and await at another
// (POST /api/login/confirm/:token) without blocking the first.
func (d *DeferredRegistry) Register(confirmToken string) {
	entry := &pendingAuth{ch: make(chan result, 1)}

	d.mu.Lock()
	d.pending[confirmToken] = entry
	d.mu.Unlock()

	entry.timer = time.AfterFunc(authTimeout, func() {
		d.mu.Lock()
		if d.pending[confirmToken] == entry {
			delete(d.pending, confirmToken)
		}
		d.mu.Unlock()
		entry.settle(result{err: domain.ErrAuthTimeout})
	})
}

// Await blocks until confirmToken's entry settles, returning the signed
// jwt or domain.ErrAuthTimeout. Returns domain.ErrAuthTimeout immediately
// if no entry was ever registered.
func (d *DeferredRegistry) Await(confirmToken string) (string, error) {
	d.mu.Lock()
	entry, ok := d.pending[confirmToken]
	d.mu.Unlock()
	if !ok {
		return "", domain.ErrAuthTimeout
	}

	r, ok := <-entry.ch

	d.mu.Lock()
	if d.pending[confirmToken] == entry {
		delete(d.pending, confirmToken)
	}
	d.mu.Unlock()

	if !ok {
		return "", domain.ErrAuthTimeout
	}
	return r.jwt, r.err
}

// ConfirmUser resolves the deferred entry registered under confirmToken by
// registering userInfo as a new User and signing a user token, delivering
// it to whoever is awaiting confirmToken. Fails domain.ErrAuthTimeout if
// no matching entry exists (already confirmed, timed out, or never
// registered).
func (d *DeferredRegistry) ConfirmUser(confirmToken string, user domain.User, signer *Signer) (string, error) {
	d.mu.Lock()
	entry, ok := d.pending[confirmToken]
	if ok && entry.confirmed {
		ok = false
	}
	if ok {
		entry.confirmed = true
	}
	d.mu.Unlock()

	if !ok {
		return "", domain.ErrAuthTimeout
	}

	token, err := signer.GenerateJWT(user)
	if err != nil {
		entry.settle(result{err: err})
		return "", err
	}

	entry.settle(result{jwt: token})
	return token, nil
}
