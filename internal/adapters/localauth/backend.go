package localauth

// Package localauth provides a config-seeded AuthBackend for local
// development and tests. Accounts live in memory; passwords are verified
// with bcrypt so the flow matches production semantics.

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

// Config seeds the backend with one initial account. Email and Password are
// required; the rest is optional signup metadata.
type Config struct {
	Email       string
	Password    string
	DisplayName string
	Department  string
}

type account struct {
	identity     domainauth.Identity
	passwordHash []byte
}

// Backend implements ports.AuthBackend in memory. It tracks at most one
// signed-in identity (the client principal) and emits change-feed events on
// every transition, in order, with no coalescing.
type Backend struct {
	mu       sync.Mutex
	accounts map[string]*account // keyed by normalized email
	current  *domainauth.Identity

	subMu   sync.Mutex
	subs    map[int]func(domainauth.Event)
	nextSub int
}

// New constructs a local backend seeded from cfg.
func New(cfg Config) (*Backend, error) {
	if cfg.Email == "" {
		return nil, errors.New("localauth: Email is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("localauth: Password is required")
	}

	b := &Backend{
		accounts: make(map[string]*account),
		subs:     make(map[int]func(domainauth.Event)),
	}
	if _, err := b.register(cfg.Email, cfg.Password, domainauth.SignupMetadata{
		DisplayName: cfg.DisplayName,
		Department:  cfg.Department,
	}); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) register(email, password string, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
	norm := domainauth.NormalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domainauth.Identity{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[norm]; exists {
		return domainauth.Identity{}, domainauth.ErrEmailTaken
	}
	acct := &account{
		identity: domainauth.Identity{
			ID:       uuid.NewString(),
			Email:    norm,
			Metadata: meta,
		},
		passwordHash: hash,
	}
	b.accounts[norm] = acct
	return acct.identity, nil
}

// CurrentIdentity returns the signed-in identity, or nil when none exists.
func (b *Backend) CurrentIdentity(_ context.Context) (*domainauth.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, nil
	}
	id := *b.current
	return &id, nil
}

// SignIn verifies a password against the seeded accounts.
func (b *Backend) SignIn(_ context.Context, creds ports.Credentials) (domainauth.Identity, error) {
	norm := domainauth.NormalizeEmail(creds.Email)

	b.mu.Lock()
	acct, ok := b.accounts[norm]
	b.mu.Unlock()
	if !ok {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(creds.Password)) != nil {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}

	b.mu.Lock()
	id := acct.identity
	b.current = &id
	b.mu.Unlock()

	b.emit(domainauth.Event{Kind: domainauth.EventSignedIn, Identity: &id})
	return id, nil
}

// SignUp registers a new account. The profile row is the portal's concern,
// not the backend's.
func (b *Backend) SignUp(_ context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
	return b.register(creds.Email, creds.Password, meta)
}

// SignOut forgets the current identity and emits a sign-out event even when
// nobody was signed in, matching the hosted backend's behavior.
func (b *Backend) SignOut(_ context.Context) error {
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()

	b.emit(domainauth.Event{Kind: domainauth.EventSignedOut})
	return nil
}

// Subscribe registers fn on the change feed and returns its unsubscribe.
func (b *Backend) Subscribe(fn func(domainauth.Event)) func() {
	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.subMu.Unlock()

	return func() {
		b.subMu.Lock()
		delete(b.subs, id)
		b.subMu.Unlock()
	}
}

// emit delivers an event to all subscribers. Holding subMu across the
// callbacks serializes delivery so observers see transitions in order.
func (b *Backend) emit(ev domainauth.Event) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for i := 0; i < b.nextSub; i++ {
		if fn, ok := b.subs[i]; ok {
			fn(ev)
		}
	}
}
