// Package idp wraps the Auth0 Management API operations the linking flow
// needs: search-by-email, link, unlink, profile fetch and metadata update.
// The provider is the source of truth for identities; nothing here is
// cached beyond the single request.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/Mmckelve45/auth0-pizza42/internal/httperr"
)

// Identity is one provider-scoped credential attached to an account.
type Identity struct {
	Provider   string `json:"provider"`
	UserID     string `json:"user_id"`
	Connection string `json:"connection"`
	IsSocial   bool   `json:"isSocial"`
}

// Account is an Auth0 user profile as returned by the Management API.
type Account struct {
	UserID        string         `json:"user_id"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Name          string         `json:"name"`
	Picture       string         `json:"picture"`
	Identities    []Identity     `json:"identities"`
	UserMetadata  map[string]any `json:"user_metadata,omitempty"`
}

// Connection returns the connection of the account's first identity,
// matching how the storefront displays accounts.
func (a Account) Connection() string {
	if len(a.Identities) > 0 {
		return a.Identities[0].Connection
	}
	return "unknown"
}

// Provider returns the provider of the account's first identity.
func (a Account) Provider() string {
	if len(a.Identities) > 0 {
		return a.Identities[0].Provider
	}
	return "unknown"
}

// ManagementAPI is the contract the linking flow depends on. Tests
// substitute fakes; production uses Client.
type ManagementAPI interface {
	FindByEmail(ctx context.Context, email string) ([]Account, error)
	Link(ctx context.Context, primaryUserID, provider, secondaryUserID string) error
	Unlink(ctx context.Context, primaryUserID, provider, secondaryUserID string) error
	GetUser(ctx context.Context, userID string) (*Account, error)
	UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]any) error
}

// Client calls the Management API with a machine-to-machine token
// obtained via the client-credentials grant.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client for the given Auth0 tenant. The returned client
// transparently acquires and refreshes its Management API token.
func New(ctx context.Context, domain, clientID, clientSecret string) (*Client, error) {
	if domain == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("idp: management api config missing required fields")
	}

	baseURL := "https://" + domain

	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/oauth/token",
		EndpointParams: url.Values{
			"audience": {baseURL + "/api/v2/"},
		},
	}

	return &Client{
		baseURL: baseURL,
		http:    cc.Client(ctx),
	}, nil
}

// NewWithHTTPClient is used by tests to point the client at a fake
// Management API.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

// FindByEmail returns every account whose primary email exactly matches.
// Callers must filter on EmailVerified before trusting any entry as a
// genuine duplicate.
func (c *Client) FindByEmail(ctx context.Context, email string) ([]Account, error) {
	q := url.Values{
		"q":             {fmt.Sprintf("email:%q", email)},
		"search_engine": {"v3"},
	}

	var accounts []Account
	if err := c.do(ctx, http.MethodGet, "/api/v2/users?"+q.Encode(), nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Link merges the secondary identity into the primary account. The
// secondary account's own metadata is not preserved by the provider.
func (c *Client) Link(ctx context.Context, primaryUserID, provider, secondaryUserID string) error {
	body := map[string]string{
		"provider": provider,
		"user_id":  secondaryUserID,
	}
	path := "/api/v2/users/" + url.PathEscape(primaryUserID) + "/identities"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// Unlink detaches a previously linked identity back to a standalone
// account.
func (c *Client) Unlink(ctx context.Context, primaryUserID, provider, secondaryUserID string) error {
	path := "/api/v2/users/" + url.PathEscape(primaryUserID) +
		"/identities/" + url.PathEscape(provider) +
		"/" + url.PathEscape(secondaryUserID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetUser fetches the current profile for a user id.
func (c *Client) GetUser(ctx context.Context, userID string) (*Account, error) {
	var account Account
	path := "/api/v2/users/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateUserMetadata patches user_metadata on the given account.
func (c *Client) UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]any) error {
	body := map[string]any{"user_metadata": metadata}
	path := "/api/v2/users/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// auth0Error is the error body shape the Management API returns.
type auth0Error struct {
	StatusCode int    `json:"statusCode"`
	ErrorName  string `json:"error"`
	Message    string `json:"message"`
	ErrorCode  string `json:"errorCode"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &httperr.Server{Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &httperr.Server{Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &httperr.Server{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr auth0Error
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(data, &apiErr)

		code := apiErr.ErrorCode
		if code == "" {
			code = apiErr.ErrorName
		}

		return &httperr.Provider{
			Status:  resp.StatusCode,
			Code:    code,
			Message: apiErr.Message,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &httperr.Server{Cause: err}
		}
	}

	return nil
}
