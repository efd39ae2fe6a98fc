package hostedauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

// memTokenStore is an in-memory TokenStore for tests.
type memTokenStore struct {
	mu      sync.Mutex
	token   string
	saved   int
	cleared int
}

func (s *memTokenStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memTokenStore) Save(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = refreshToken
	s.saved++
	return nil
}

func (s *memTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.cleared++
	return nil
}

func grantResponse(id, email, access, refresh string) map[string]any {
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    3600,
		"user":          map[string]any{"id": id, "email": email},
	}
}

func newTestClient(t *testing.T, handler http.Handler, tokens TokenStore) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL:    srv.URL,
		APIKey:     "anon-key",
		HTTPClient: srv.Client(),
		Tokens:     tokens,
	})
	require.NoError(t, err)
	return client
}

func TestNewRequiresEndpointAndKey(t *testing.T) {
	_, err := New(Config{BaseURL: "https://club.backend.example"})
	assert.ErrorIs(t, err, domainauth.ErrBackendUnavailable)

	_, err = New(Config{APIKey: "anon-key"})
	assert.ErrorIs(t, err, domainauth.ErrBackendUnavailable)
}

func TestSignInPasswordGrant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "member@gcet.edu.in", body["email"])
		assert.Equal(t, "hunter22", body["password"])

		_ = json.NewEncoder(w).Encode(grantResponse("u1", "Member@GCET.edu.in", "acc-1", "ref-1"))
	})

	tokens := &memTokenStore{}
	client := newTestClient(t, mux, tokens)

	var events []domainauth.EventKind
	client.Subscribe(func(ev domainauth.Event) { events = append(events, ev.Kind) })

	identity, err := client.SignIn(context.Background(), ports.Credentials{
		Email:    " Member@GCET.edu.in ",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, "member@gcet.edu.in", identity.Email)

	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedIn}, events)
	assert.Equal(t, "ref-1", tokens.token)

	current, err := client.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "u1", current.ID)
}

func TestSignInInvalidCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
	})
	client := newTestClient(t, mux, nil)

	_, err := client.SignIn(context.Background(), ports.Credentials{
		Email:    "member@gcet.edu.in",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
}

func TestSignInBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "anon-key"})
	require.NoError(t, err)

	_, err = client.SignIn(context.Background(), ports.Credentials{
		Email:    "member@gcet.edu.in",
		Password: "pw",
	})
	assert.ErrorIs(t, err, domainauth.ErrBackendUnavailable)
}

func TestSignUpClassifiesDuplicate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "User already registered"})
	})
	client := newTestClient(t, mux, nil)

	_, err := client.SignUp(context.Background(), ports.Credentials{
		Email:    "member@gcet.edu.in",
		Password: "pw123456",
	}, domainauth.SignupMetadata{})
	assert.ErrorIs(t, err, domainauth.ErrEmailTaken)
}

func TestSignUpClassifiesUnconfirmed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "Email not confirmed"})
	})
	client := newTestClient(t, mux, nil)

	_, err := client.SignIn(context.Background(), ports.Credentials{
		Email:    "fresher@gcet.edu.in",
		Password: "pw123456",
	})
	assert.ErrorIs(t, err, domainauth.ErrEmailNotConfirmed)
}

func TestSignUpReturnsIdentityMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data domainauth.SignupMetadata `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"id":            "u9",
				"email":         "fresher@gcet.edu.in",
				"user_metadata": body.Data,
			},
		})
	})
	client := newTestClient(t, mux, nil)

	identity, err := client.SignUp(context.Background(), ports.Credentials{
		Email:    "fresher@gcet.edu.in",
		Password: "pw123456",
	}, domainauth.SignupMetadata{DisplayName: "Asha", RollNumber: "24EC042"})
	require.NoError(t, err)
	assert.Equal(t, "u9", identity.ID)
	assert.Equal(t, "Asha", identity.Metadata.DisplayName)
	assert.Equal(t, "24EC042", identity.Metadata.RollNumber)
}

func TestCurrentIdentityRestoresFromTokenStore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref-stored", body["refresh_token"])

		_ = json.NewEncoder(w).Encode(grantResponse("u1", "member@gcet.edu.in", "acc-2", "ref-2"))
	})

	tokens := &memTokenStore{token: "ref-stored"}
	client := newTestClient(t, mux, tokens)

	var events []domainauth.EventKind
	client.Subscribe(func(ev domainauth.Event) { events = append(events, ev.Kind) })

	identity, err := client.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "u1", identity.ID)

	// A successful refresh rotates the stored token and announces itself.
	assert.Equal(t, "ref-2", tokens.token)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventRefreshed}, events)
}

func TestCurrentIdentityDeadRefreshIsAbsentSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "refresh token revoked"})
	})
	client := newTestClient(t, mux, &memTokenStore{token: "ref-dead"})

	identity, err := client.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestCurrentIdentityNoSession(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), nil)

	identity, err := client.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestSignOutClearsLocalStateFirst(t *testing.T) {
	var sawLogout bool
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(grantResponse("u1", "member@gcet.edu.in", "acc-1", "ref-1"))
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		sawLogout = true
		assert.Equal(t, "Bearer acc-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	tokens := &memTokenStore{}
	client := newTestClient(t, mux, tokens)

	_, err := client.SignIn(context.Background(), ports.Credentials{
		Email:    "member@gcet.edu.in",
		Password: "pw",
	})
	require.NoError(t, err)

	var events []domainauth.EventKind
	client.Subscribe(func(ev domainauth.Event) { events = append(events, ev.Kind) })

	require.NoError(t, client.SignOut(context.Background()))
	assert.True(t, sawLogout)
	assert.Equal(t, 1, tokens.cleared)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedOut}, events)

	identity, err := client.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestSignOutWithoutSessionStillEmits(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), nil)

	var events []domainauth.EventKind
	client.Subscribe(func(ev domainauth.Event) { events = append(events, ev.Kind) })

	require.NoError(t, client.SignOut(context.Background()))
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedOut}, events)
}

func TestClassifyErrorFallback(t *testing.T) {
	err := classifyError(http.StatusInternalServerError, []byte(`{"message":"kaboom"}`))
	assert.EqualError(t, err, "backend error (500): kaboom")

	err = classifyError(http.StatusBadGateway, nil)
	assert.EqualError(t, err, "backend error (502): Bad Gateway")

	assert.ErrorIs(t, classifyError(http.StatusUnauthorized, nil), domainauth.ErrInvalidCredentials)
}
