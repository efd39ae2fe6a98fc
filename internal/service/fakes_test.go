package service

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

var errSessionMissing = errors.New("session not found")

// fakeBackend is a controllable in-memory ports.AuthBackend.
type fakeBackend struct {
	mu      sync.Mutex
	current *domainauth.Identity
	curErr  error

	signInFn  func(creds ports.Credentials) (domainauth.Identity, error)
	signUpFn  func(creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error)
	signOutFn func() error

	subs    map[int]func(domainauth.Event)
	nextSub int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{subs: make(map[int]func(domainauth.Event))}
}

func (b *fakeBackend) CurrentIdentity(_ context.Context) (*domainauth.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.curErr
}

func (b *fakeBackend) SignIn(_ context.Context, creds ports.Credentials) (domainauth.Identity, error) {
	if b.signInFn != nil {
		return b.signInFn(creds)
	}
	identity := domainauth.Identity{ID: "id-" + creds.Email, Email: creds.Email}
	b.Emit(domainauth.Event{Kind: domainauth.EventSignedIn, Identity: &identity})
	return identity, nil
}

func (b *fakeBackend) SignUp(_ context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
	if b.signUpFn != nil {
		return b.signUpFn(creds, meta)
	}
	return domainauth.Identity{ID: "id-" + creds.Email, Email: creds.Email, Metadata: meta}, nil
}

func (b *fakeBackend) SignOut(_ context.Context) error {
	if b.signOutFn != nil {
		return b.signOutFn()
	}
	b.Emit(domainauth.Event{Kind: domainauth.EventSignedOut})
	return nil
}

func (b *fakeBackend) Subscribe(fn func(domainauth.Event)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Emit delivers an event to all subscribers in registration order.
func (b *fakeBackend) Emit(ev domainauth.Event) {
	b.mu.Lock()
	fns := make([]func(domainauth.Event), 0, len(b.subs))
	for i := 0; i < b.nextSub; i++ {
		if fn, ok := b.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// fakeProfileStore is an in-memory ports.ProfileStore. getHook, when set,
// runs at the start of every Get so tests can stall specific lookups.
type fakeProfileStore struct {
	mu        sync.Mutex
	profiles  map[string]domainauth.Profile
	getErr    error
	upsertErr error
	getHook   func(identityID string)
}

func newFakeProfileStore(profiles ...domainauth.Profile) *fakeProfileStore {
	s := &fakeProfileStore{profiles: make(map[string]domainauth.Profile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *fakeProfileStore) Get(_ context.Context, identityID string) (domainauth.Profile, error) {
	if s.getHook != nil {
		s.getHook(identityID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domainauth.Profile{}, s.getErr
	}
	p, ok := s.profiles[identityID]
	if !ok {
		return domainauth.Profile{}, ports.ErrProfileNotFound
	}
	return p, nil
}

func (s *fakeProfileStore) Upsert(_ context.Context, p domainauth.Profile) (domainauth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return domainauth.Profile{}, s.upsertErr
	}
	if existing, ok := s.profiles[p.ID]; ok {
		existing.DisplayName = p.DisplayName
		existing.RollNumber = p.RollNumber
		existing.Department = p.Department
		s.profiles[p.ID] = existing
		return existing, nil
	}
	if p.Role == "" {
		p.Role = domainauth.RoleTinkerer
	}
	s.profiles[p.ID] = p
	return p, nil
}

func (s *fakeProfileStore) SetRole(_ context.Context, identityID string, role domainauth.Role) (domainauth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[identityID]
	if !ok {
		return domainauth.Profile{}, ports.ErrProfileNotFound
	}
	p.Role = role
	s.profiles[identityID] = p
	return p, nil
}

func (s *fakeProfileStore) AddXP(_ context.Context, identityID string, delta int) (domainauth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[identityID]
	if !ok {
		return domainauth.Profile{}, ports.ErrProfileNotFound
	}
	p.XP += delta
	if p.XP < 0 {
		p.XP = 0
	}
	s.profiles[identityID] = p
	return p, nil
}

func (s *fakeProfileStore) Delete(_ context.Context, identityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[identityID]; !ok {
		return false, nil
	}
	delete(s.profiles, identityID)
	return true, nil
}

func (s *fakeProfileStore) List(_ context.Context, limit, _ int) ([]domainauth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domainauth.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeSessionStore is an in-memory ports.SessionStore.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	saveErr  error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]domainauth.Session)}
}

func (s *fakeSessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *fakeSessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domainauth.Session{}, errSessionMissing
	}
	return sess, nil
}

func (s *fakeSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// fakeSSOFlow is a canned ports.SSOFlow.
type fakeSSOFlow struct {
	identity    domainauth.Identity
	exchangeErr error
}

func (f *fakeSSOFlow) Begin(_ context.Context, _ ports.SSOBeginInput) (string, string, string, error) {
	return "https://sso.example/authorize", "state-1", "nonce-1", nil
}

func (f *fakeSSOFlow) Exchange(_ context.Context, _ ports.SSOExchangeInput) (domainauth.Identity, error) {
	if f.exchangeErr != nil {
		return domainauth.Identity{}, f.exchangeErr
	}
	return f.identity, nil
}
