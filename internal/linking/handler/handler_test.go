package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mmckelve45/auth0-pizza42/internal/audit"
	"github.com/Mmckelve45/auth0-pizza42/internal/auth"
	"github.com/Mmckelve45/auth0-pizza42/internal/db"
	"github.com/Mmckelve45/auth0-pizza42/internal/idp"
	"github.com/Mmckelve45/auth0-pizza42/internal/linking"
	"github.com/Mmckelve45/auth0-pizza42/internal/middleware"
	"github.com/Mmckelve45/auth0-pizza42/internal/session"
	"github.com/Mmckelve45/auth0-pizza42/internal/token"
	"github.com/Mmckelve45/auth0-pizza42/web"
)

type fakeMgmt struct {
	accounts []idp.Account
	linkErr  error
	linked   int
	unlinked int
}

func (f *fakeMgmt) FindByEmail(context.Context, string) ([]idp.Account, error) {
	return f.accounts, nil
}

func (f *fakeMgmt) Link(context.Context, string, string, string) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.linked++
	return nil
}

func (f *fakeMgmt) Unlink(context.Context, string, string, string) error {
	f.unlinked++
	return nil
}

func (f *fakeMgmt) GetUser(_ context.Context, userID string) (*idp.Account, error) {
	return &idp.Account{UserID: userID}, nil
}

func (f *fakeMgmt) UpdateUserMetadata(context.Context, string, map[string]any) error {
	return nil
}

type fakeExchanger struct {
	subject     string
	accessToken string
	err         error
}

func (f *fakeExchanger) AuthCodeURL(state string) string {
	return "https://tenant.auth0.com/authorize?state=" + state
}

func (f *fakeExchanger) ExchangeCode(context.Context, string) (*auth.Identity, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return &auth.Identity{Subject: f.subject, EmailVerified: true}, f.accessToken, nil
}

type stubVerifier struct{ subject string }

func (s stubVerifier) Verify(context.Context, string) (string, error) {
	return s.subject, nil
}

func newTestRouter(t *testing.T, mgmt *fakeMgmt, ex auth.CodeExchanger, bearerSubject string) (*gin.Engine, *session.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore()
	codec := token.NewCodec("test-secret", 5*time.Minute)
	svc := linking.NewService(codec, store, store, ex, mgmt, db.NoopLocker{}, audit.NopRecorder{})

	h := NewHandler(svc, store, Config{
		AppURL:  "http://localhost:5173",
		DevMode: true,
	})

	r := gin.New()
	r.SetHTMLTemplate(web.Templates())

	authMW := middleware.GinRequireAuth(
		middleware.NewAuthMiddleware(stubVerifier{subject: bearerSubject}),
	)
	h.RegisterRoutes(r, authMW)

	return r, store
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName(false) {
			return c
		}
	}
	return nil
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, &fakeMgmt{}, &fakeExchanger{}, "auth0|A")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/link/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"account-linking"}`, w.Body.String())
}

func TestDetect_RequiresBearer(t *testing.T) {
	r, _ := newTestRouter(t, &fakeMgmt{}, &fakeExchanger{}, "auth0|A")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/link/detect?email=a@x.com", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDetect_ReturnsDetection(t *testing.T) {
	mgmt := &fakeMgmt{accounts: []idp.Account{
		{UserID: "auth0|A", Email: "a@x.com", EmailVerified: true},
		{UserID: "google-oauth2|B", Email: "a@x.com", EmailVerified: true},
	}}
	r, _ := newTestRouter(t, mgmt, &fakeExchanger{}, "auth0|A")

	req := httptest.NewRequest(http.MethodGet, "/link/detect?email=a@x.com", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var det linking.Detection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &det))
	assert.True(t, det.HasDuplicates)
	assert.Equal(t, 2, det.AccountCount)
}

func TestInitiate_MissingUserIDs(t *testing.T) {
	r, _ := newTestRouter(t, &fakeMgmt{}, &fakeExchanger{}, "auth0|A")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/link/initiate?email=a@x.com", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing user IDs")
}

func TestInitiate_SetsSessionAndRendersPrompt(t *testing.T) {
	r, store := newTestRouter(t, &fakeMgmt{}, &fakeExchanger{}, "auth0|A")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/link/initiate?primaryUserId=auth0%7CA&secondaryUserId=google-oauth2%7CB&email=a@x.com", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tenant.auth0.com/authorize")

	cookie := sessionCookie(t, w.Result())
	require.NotNil(t, cookie, "initiate must set the linking-session cookie")

	sess, err := store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.NotNil(t, sess.LinkingInProgress)
	assert.Equal(t, "auth0|A", sess.LinkingInProgress.PrimaryUserID)
}

func TestCallback_WithoutSessionRejected(t *testing.T) {
	r, _ := newTestRouter(t, &fakeMgmt{}, &fakeExchanger{subject: "google-oauth2|B"}, "auth0|A")

	// Valid-shaped request but no session cookie at all.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/link/callback?code=c&state=s", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Walks the whole flow over HTTP: initiate, callback, complete, and the
// rejected second completion.
func TestFullLinkingFlow(t *testing.T) {
	mgmt := &fakeMgmt{}
	ex := &fakeExchanger{subject: "google-oauth2|B", accessToken: "at"}
	r, store := newTestRouter(t, mgmt, ex, "auth0|A")

	// Initiate.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/link/initiate?primaryUserId=auth0%7CA&secondaryUserId=google-oauth2%7CB&email=a@x.com", nil))
	require.Equal(t, http.StatusOK, w.Code)

	cookie := sessionCookie(t, w.Result())
	require.NotNil(t, cookie)

	sess, err := store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	state := sess.LinkingInProgress.Token

	// Callback.
	req := httptest.NewRequest(http.MethodGet, "/link/callback?code=auth-code&state="+state, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/link/complete", w.Header().Get("Location"))

	// Complete.
	req = httptest.NewRequest(http.MethodGet, "/link/complete", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@x.com")
	assert.Contains(t, w.Body.String(), "google-oauth2")
	assert.Equal(t, 1, mgmt.linked)

	// Completion retires the cookie along with the session state.
	cleared := sessionCookie(t, w.Result())
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// Session cleared; a second complete must fail.
	req = httptest.NewRequest(http.MethodGet, "/link/complete", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, mgmt.linked, "link must not be retried with stale session state")
}

func TestCallback_WrongIdentityForbidden(t *testing.T) {
	ex := &fakeExchanger{subject: "github|C", accessToken: "at"}
	r, store := newTestRouter(t, &fakeMgmt{}, ex, "auth0|A")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/link/initiate?primaryUserId=auth0%7CA&secondaryUserId=google-oauth2%7CB&email=a@x.com", nil))
	cookie := sessionCookie(t, w.Result())
	require.NotNil(t, cookie)

	sess, err := store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/link/callback?code=auth-code&state="+sess.LinkingInProgress.Token, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication mismatch")
}

func TestUnlink_CallerMismatchForbidden(t *testing.T) {
	mgmt := &fakeMgmt{}
	r, _ := newTestRouter(t, mgmt, &fakeExchanger{}, "auth0|intruder")

	body := strings.NewReader(`{"primaryUserId":"auth0|A","provider":"google-oauth2","userId":"B"}`)
	req := httptest.NewRequest(http.MethodPost, "/link/complete/unlink", body)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, mgmt.unlinked)
}

// Even on a route wired without the auth middleware, unlink must refuse
// to act when no bearer subject reached the handler.
func TestUnlink_MissingSubjectUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mgmt := &fakeMgmt{}
	store := session.NewMemoryStore()
	codec := token.NewCodec("test-secret", 5*time.Minute)
	svc := linking.NewService(codec, store, store, &fakeExchanger{}, mgmt, db.NoopLocker{}, audit.NopRecorder{})
	h := NewHandler(svc, store, Config{AppURL: "http://localhost:5173", DevMode: true})

	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	h.RegisterRoutes(r, func(c *gin.Context) { c.Next() })

	body := strings.NewReader(`{"primaryUserId":"auth0|A","provider":"google-oauth2","userId":"B"}`)
	req := httptest.NewRequest(http.MethodPost, "/link/complete/unlink", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, mgmt.unlinked)
}

func TestUnlink_Success(t *testing.T) {
	mgmt := &fakeMgmt{}
	r, _ := newTestRouter(t, mgmt, &fakeExchanger{}, "auth0|A")

	body := strings.NewReader(`{"primaryUserId":"auth0|A","provider":"google-oauth2","userId":"B"}`)
	req := httptest.NewRequest(http.MethodPost, "/link/complete/unlink", body)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mgmt.unlinked)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
}
