package campusauth

// Package campusauth implements the campus single-sign-on flow (ports.SSOFlow)
// against the college's OIDC identity provider.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

// ProviderConfig holds configuration for the campus OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// Provider implements ports.SSOFlow using OIDC/OAuth2.
type Provider struct {
	config   *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	provider *gooidc.Provider
}

// NewProvider creates a campus SSO provider from a discovery URL.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// Single discovery fetch at construction
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		provider: op,
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

// Begin starts the login flow with cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, in ports.SSOBeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := randomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

// campusClaims is the claim shape the college IdP issues.
type campusClaims struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
	Department string `json:"department"`
	Nonce      string `json:"nonce"`
}

// Exchange completes the flow: code for token, id_token verification, nonce
// check, and claim mapping onto the domain identity.
func (p *Provider) Exchange(ctx context.Context, in ports.SSOExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return domainauth.Identity{}, errors.New("missing id_token in token response")
	}

	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims campusClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if claims.Nonce != in.Nonce {
		return domainauth.Identity{}, errors.New("invalid nonce")
	}

	// Fill missing fields from the userinfo endpoint when the IdP keeps
	// profile claims out of the id_token.
	if claims.Email == "" || claims.Sub == "" {
		if fillErr := p.fillFromUserInfo(ctx, token.AccessToken, &claims); fillErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}

	return domainauth.Identity{
		ID:    claims.Sub,
		Email: domainauth.NormalizeEmail(claims.Email),
		Metadata: domainauth.SignupMetadata{
			DisplayName: claims.Name,
			RollNumber:  claims.RollNumber,
			Department:  claims.Department,
		},
	}, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, claims *campusClaims) error {
	ui, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var fromUI campusClaims
	if claimsErr := ui.Claims(&fromUI); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	if claims.Sub == "" {
		claims.Sub = fromUI.Sub
	}
	if claims.Email == "" {
		claims.Email = fromUI.Email
	}
	if claims.Name == "" {
		claims.Name = fromUI.Name
	}
	if claims.RollNumber == "" {
		claims.RollNumber = fromUI.RollNumber
	}
	if claims.Department == "" {
		claims.Department = fromUI.Department
	}
	return nil
}

// randomString generates a cryptographically secure URL-safe random string of exact length.
func randomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	for len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}
