package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// CodeExchanger is the contract for the step-up re-authentication leg.
// Implementations return identity facts only and must not touch sessions
// or perform linking decisions.
type CodeExchanger interface {
	// AuthCodeURL returns the authorization URL the user is sent to for
	// re-authentication. State carries the continuation token.
	AuthCodeURL(state string) string

	// ExchangeCode exchanges the authorization code and returns the
	// verified identity plus the access token from the exchange.
	ExchangeCode(ctx context.Context, code string) (*Identity, string, error)
}

// ReauthProvider performs the authorization-code exchange against the
// Auth0 tenant using the dedicated linking application. The id_token is
// verified, not merely decoded: the subject claim is the ownership proof
// the callback gate relies on.
type ReauthProvider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// NewReauthProvider initializes the provider via OIDC discovery on the
// tenant issuer. redirectURL must be the statically registered callback.
func NewReauthProvider(
	ctx context.Context,
	domain string,
	clientID string,
	clientSecret string,
	redirectURL string,
) (*ReauthProvider, error) {

	if domain == "" || clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("reauth provider config missing required fields")
	}

	issuer := "https://" + domain + "/"

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth0 oidc provider: %w", err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile",
			"email",
		},
	}

	return &ReauthProvider{
		oauthConfig: oauthCfg,
		verifier:    verifier,
	}, nil
}

// AuthCodeURL builds the authorization URL. prompt=login forces a fresh
// login even when the provider still has a live SSO session, which is the
// whole point of the step-up.
func (p *ReauthProvider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("prompt", "login"),
		oauth2.SetAuthURLParam("max_age", "0"),
	)
}

func (p *ReauthProvider) ExchangeCode(
	ctx context.Context,
	code string,
) (*Identity, string, error) {

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("auth0 token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", errors.New("auth0 did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", fmt.Errorf("auth0 id_token verification failed: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, "", fmt.Errorf("auth0 id_token claims parse failed: %w", err)
	}

	if claims.Subject == "" {
		return nil, "", errors.New("auth0 id_token missing subject claim")
	}

	return &Identity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, token.AccessToken, nil
}
