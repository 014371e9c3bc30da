package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// unexported, collision-proof context key
type subjectContextKeyType struct{}

var subjectKey = subjectContextKeyType{}

// SubjectFromContext extracts the authenticated bearer subject from context.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok
}

// TokenVerifier validates a bearer token and returns its subject claim.
// Production uses OIDCVerifier; handler tests substitute stubs.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (subject string, err error)
}

// OIDCVerifier validates RS256 access tokens issued by the Auth0 tenant
// against its published signing keys, enforcing issuer and audience.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, domain, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, "https://"+domain+"/")
	if err != nil {
		return nil, err
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{
			ClientID: audience,
			SupportedSigningAlgs: []string{
				oidc.RS256,
			},
		}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	return tok.Subject, nil
}

type AuthMiddleware struct {
	Verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{Verifier: verifier}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Read bearer token
		raw := bearerToken(r)
		if raw == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 2. Validate signature, issuer, audience
		subject, err := a.Verifier.Verify(r.Context(), raw)
		if err != nil || subject == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 3. Attach subject to context
		ctx := context.WithValue(r.Context(), subjectKey, subject)

		// 4. Continue request
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return h[len(prefix):]
}
