package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

// Snapshot is the read-only view of the session context offered to
// consumers. Level is recomputed on every identity or profile change and is
// never cached across them.
type Snapshot struct {
	Identity *domainauth.Identity
	Profile  *domainauth.Profile
	Level    domainauth.Level
	Loading  bool
}

// Guard converts the snapshot into a route-guard input.
func (s Snapshot) Guard() domainauth.GuardInput {
	return domainauth.GuardInput{Loading: s.Loading, Identity: s.Identity, Level: s.Level}
}

const defaultRequestTimeout = 10 * time.Second

// ManagerOptions groups dependencies for Manager.
type ManagerOptions struct {
	Backend  ports.AuthBackend
	Resolver *Resolver
	Policy   domainauth.Policy
	// Timeout bounds session restoration and each profile fetch so a hung
	// backend never leaves the context loading forever. Defaults to 10s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Manager is the single source of truth for "who, if anyone, is currently
// signed in" for one client context. A single event-loop goroutine is the
// only writer of the state; every identity transition arrives through the
// backend change feed, so a sign-in return value and its feed event can
// never diverge.
//
// Profile fetches run concurrently with the loop and are last-initiated-wins
// keyed by identity id: a stale result for a superseded identity is
// discarded instead of applied.
type Manager struct {
	backend  ports.AuthBackend
	resolver *Resolver
	policy   domainauth.Policy
	timeout  time.Duration
	logger   *slog.Logger

	events  chan domainauth.Event
	fetches chan fetchResult
	done    chan struct{}

	initOnce    sync.Once
	closeOnce   sync.Once
	unsubscribe func()

	mu          sync.RWMutex
	snap        Snapshot
	watchers    map[int]func(Snapshot)
	nextWatcher int

	// fetchSeq is owned by the event loop; it identifies the most recently
	// initiated profile fetch.
	fetchSeq uint64
}

type fetchResult struct {
	seq        uint64
	identityID string
	resolution Resolution
}

// NewManager constructs a Manager. The context starts in the loading state
// until Initialize completes its initial session check.
func NewManager(opts ManagerOptions) *Manager {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		backend:  opts.Backend,
		resolver: opts.Resolver,
		policy:   opts.Policy,
		timeout:  timeout,
		logger:   logger,
		events:   make(chan domainauth.Event, 16),
		fetches:  make(chan fetchResult, 4),
		done:     make(chan struct{}),
		watchers: make(map[int]func(Snapshot)),
		snap:     Snapshot{Loading: true},
	}
	return m
}

// Initialize subscribes to the backend change feed and asks it for an
// existing persisted session. A missing session is a normal outcome, not an
// error; backend failures also resolve to "no session". Loading is cleared
// once the initial check completes, regardless of outcome. Safe to call
// more than once; only the first call does work.
func (m *Manager) Initialize(ctx context.Context) *domainauth.Identity {
	var restored *domainauth.Identity
	m.initOnce.Do(func() {
		m.unsubscribe = m.backend.Subscribe(m.deliver)
		go m.run()

		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		identity, err := m.backend.CurrentIdentity(checkCtx)
		if err != nil {
			m.logger.WarnContext(ctx, "session restore failed, starting signed out", "error", err)
			identity = nil
		}
		restored = identity

		select {
		case m.events <- domainauth.Event{Kind: initKind(identity), Identity: identity}:
		case <-m.done:
		}
	})
	return restored
}

// initKind maps the restoration outcome onto a feed event: a restored
// identity looks like a refresh, absence looks like a sign-out. Either way
// the loop clears Loading when it applies the event.
func initKind(identity *domainauth.Identity) domainauth.EventKind {
	if identity != nil {
		return domainauth.EventRefreshed
	}
	return domainauth.EventSignedOut
}

// deliver is the backend subscription callback. It forwards events into the
// loop in arrival order and drops nothing while the manager is live.
func (m *Manager) deliver(ev domainauth.Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// SignIn delegates to the backend. It does not update local state; the
// resulting transition arrives through the change feed, keeping a single
// code path for state mutation. Failures are typed
// (domainauth.ErrInvalidCredentials, ErrEmailNotConfirmed).
func (m *Manager) SignIn(ctx context.Context, email, password string) (domainauth.Identity, error) {
	return m.backend.SignIn(ctx, ports.Credentials{
		Email:    domainauth.NormalizeEmail(email),
		Password: password,
	})
}

// SignUp delegates to the backend with attached signup metadata. The
// matching profile row is created out of band; callers must not assume it
// exists when this returns.
func (m *Manager) SignUp(ctx context.Context, email, password string, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
	return m.backend.SignUp(ctx, ports.Credentials{
		Email:    domainauth.NormalizeEmail(email),
		Password: password,
	}, meta)
}

// SignOut delegates to the backend. Sign-out is locally authoritative: the
// backend emits its sign-out event before (and regardless of) the network
// revocation, so a failing call never leaves a stuck signed-in state.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.backend.SignOut(ctx)
}

// Snapshot returns the current session context.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers fn to be invoked (from the event loop) after every
// state change, with the new snapshot. The returned function unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Close releases the backend subscription and stops the event loop. Any
// asynchronous result arriving afterwards is discarded rather than applied.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		close(m.done)
	})
}

// run is the event loop: the sole writer of the session context.
func (m *Manager) run() {
	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		case res := <-m.fetches:
			m.applyFetch(res)
		case <-m.done:
			return
		}
	}
}

// apply processes one identity transition.
func (m *Manager) apply(ev domainauth.Event) {
	m.mu.Lock()
	prev := m.snap.Identity
	m.snap.Identity = ev.Identity
	m.snap.Loading = false

	if identityID(prev) != identityID(ev.Identity) {
		// The cached profile belongs to the previous identity.
		m.snap.Profile = nil
	}
	m.snap.Level = m.policy.Evaluate(m.snap.Identity, m.snap.Profile)

	// Supersede any in-flight fetch; its result is for an older state.
	m.fetchSeq++
	seq := m.fetchSeq
	current := m.snap.Identity
	m.mu.Unlock()

	if current != nil {
		go m.fetch(seq, current.ID)
	}
	m.notify()
}

// applyFetch applies a profile fetch result, discarding it when it was
// superseded or the identity has changed since it was initiated.
func (m *Manager) applyFetch(res fetchResult) {
	m.mu.Lock()
	if res.seq != m.fetchSeq || identityID(m.snap.Identity) != res.identityID {
		m.mu.Unlock()
		return
	}
	m.snap.Profile = res.resolution.Profile
	m.snap.Level = m.policy.Evaluate(m.snap.Identity, m.snap.Profile)
	m.mu.Unlock()
	m.notify()
}

// fetch resolves the profile for one identity and reports back to the loop.
func (m *Manager) fetch(seq uint64, identityID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	res := m.resolver.Resolve(ctx, identityID)

	select {
	case m.fetches <- fetchResult{seq: seq, identityID: identityID, resolution: res}:
	case <-m.done:
	}
}

// notify invokes watchers with the current snapshot.
func (m *Manager) notify() {
	m.mu.RLock()
	snap := m.snap
	fns := make([]func(Snapshot), 0, len(m.watchers))
	for i := 0; i < m.nextWatcher; i++ {
		if fn, ok := m.watchers[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func identityID(id *domainauth.Identity) string {
	if id == nil {
		return ""
	}
	return id.ID
}
