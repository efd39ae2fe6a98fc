package localauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{
		Email:       "seed@gcet.edu.in",
		Password:    "seed-password",
		DisplayName: "Seed Admin",
	})
	require.NoError(t, err)
	return b
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{Password: "pw"})
	assert.Error(t, err)

	_, err = New(Config{Email: "seed@gcet.edu.in"})
	assert.Error(t, err)
}

func TestSignInVerifiesPassword(t *testing.T) {
	b := newTestBackend(t)

	identity, err := b.SignIn(context.Background(), ports.Credentials{
		Email:    "seed@gcet.edu.in",
		Password: "seed-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "seed@gcet.edu.in", identity.Email)
	assert.NotEmpty(t, identity.ID)

	current, err := b.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, identity.ID, current.ID)
}

func TestSignInNormalizesEmail(t *testing.T) {
	b := newTestBackend(t)

	identity, err := b.SignIn(context.Background(), ports.Credentials{
		Email:    "  Seed@GCET.edu.in ",
		Password: "seed-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "seed@gcet.edu.in", identity.Email)
}

func TestSignInWrongPassword(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.SignIn(context.Background(), ports.Credentials{
		Email:    "seed@gcet.edu.in",
		Password: "nope",
	})
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)

	_, err = b.SignIn(context.Background(), ports.Credentials{
		Email:    "unknown@gcet.edu.in",
		Password: "seed-password",
	})
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
}

func TestSignUpRegistersAccount(t *testing.T) {
	b := newTestBackend(t)

	identity, err := b.SignUp(context.Background(), ports.Credentials{
		Email:    "fresher@gcet.edu.in",
		Password: "pw123456",
	}, domainauth.SignupMetadata{DisplayName: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", identity.Metadata.DisplayName)

	signedIn, err := b.SignIn(context.Background(), ports.Credentials{
		Email:    "fresher@gcet.edu.in",
		Password: "pw123456",
	})
	require.NoError(t, err)
	assert.Equal(t, identity.ID, signedIn.ID)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.SignUp(context.Background(), ports.Credentials{
		Email:    "SEED@gcet.edu.in",
		Password: "another",
	}, domainauth.SignupMetadata{})
	assert.ErrorIs(t, err, domainauth.ErrEmailTaken)
}

func TestChangeFeedOrder(t *testing.T) {
	b := newTestBackend(t)

	var kinds []domainauth.EventKind
	unsubscribe := b.Subscribe(func(ev domainauth.Event) {
		kinds = append(kinds, ev.Kind)
	})
	defer unsubscribe()

	_, err := b.SignIn(context.Background(), ports.Credentials{
		Email:    "seed@gcet.edu.in",
		Password: "seed-password",
	})
	require.NoError(t, err)
	require.NoError(t, b.SignOut(context.Background()))

	// Sign-out always emits, even when nobody is signed in.
	require.NoError(t, b.SignOut(context.Background()))

	assert.Equal(t, []domainauth.EventKind{
		domainauth.EventSignedIn,
		domainauth.EventSignedOut,
		domainauth.EventSignedOut,
	}, kinds)
}

func TestSignOutClearsCurrentIdentity(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.SignIn(context.Background(), ports.Credentials{
		Email:    "seed@gcet.edu.in",
		Password: "seed-password",
	})
	require.NoError(t, err)
	require.NoError(t, b.SignOut(context.Background()))

	current, err := b.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBackend(t)

	count := 0
	unsubscribe := b.Subscribe(func(domainauth.Event) { count++ })
	unsubscribe()

	require.NoError(t, b.SignOut(context.Background()))
	assert.Zero(t, count)
}
