package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessgate/internal/auth"
	"accessgate/internal/config"
	"accessgate/internal/platform"
	"accessgate/internal/platform/export"
	"accessgate/internal/platform/user"
	"accessgate/internal/repository"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret"
)

type testServer struct {
	app      *fiber.App
	platform *platform.Platform
	now      time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:             "test-secret",
		TokenLifetime:         time.Hour,
		SessionTimeout:        30 * time.Minute,
		SessionIdleAfter:      5 * time.Minute,
		ActivityCheckInterval: time.Minute,
		PasswordMinLength:     6,
		Argon2Memory:          1024,
		Argon2Time:            1,
		Argon2Threads:         1,
	}

	s := &testServer{now: time.Now()}
	p := platform.New(cfg, repository.NewMemoryRepository())
	p.Tracker.WithClock(func() time.Time { return s.now })
	s.platform = p
	s.app = NewApp(p)

	_, err := p.Users.EnsureAdmin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded, raw
}

func (s *testServer) signin(t *testing.T, email, password string) string {
	t.Helper()
	status, body, _ := s.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["token"].(string)
}

func (s *testServer) createUser(t *testing.T, token, email string) string {
	t.Helper()
	status, body, _ := s.do(t, http.MethodPost, "/api/admin/users", token, map[string]any{
		"email":    email,
		"password": "user-secret",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["id"].(string)
}

func TestSigninAndMe(t *testing.T) {
	s := newTestServer(t)
	token := s.signin(t, "ADMIN@example.com", adminPassword)

	status, body, raw := s.do(t, http.MethodGet, "/api/user/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, adminEmail, body["email"])
	assert.Equal(t, float64(1), body["login_count"])
	assert.NotContains(t, string(raw), "argon2id")
	assert.NotContains(t, string(raw), "password")
}

func TestForwardedForFromUntrustedClientIsIgnored(t *testing.T) {
	s := newTestServer(t)
	const spoofed = "203.0.113.66"

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		bytes.NewBufferString(`{"email":"`+adminEmail+`","password":"`+adminPassword+`"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderXForwardedFor, spoofed)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	token := s.signin(t, adminEmail, adminPassword)
	_, me, _ := s.do(t, http.MethodGet, "/api/user/me", token, nil)

	status, body, _ := s.do(t, http.MethodGet, "/api/admin/users/"+me["id"].(string)+"/audit", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	logins := body["logins"].([]any)
	require.Len(t, logins, 2)
	for _, l := range logins {
		assert.NotEqual(t, spoofed, l.(map[string]any)["ip_address"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/diag/ip", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, spoofed)
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), spoofed)
}

func TestSigninFailures(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	id := s.createUser(t, admin, "inactive@example.com")
	s.do(t, http.MethodPut, "/api/admin/users/"+id, admin, map[string]any{"is_active": false})

	tests := []struct {
		name     string
		body     any
		status   int
		wantCode string
	}{
		{"wrong password", map[string]string{"email": adminEmail, "password": "nope-nope"}, fiber.StatusUnauthorized, "invalid_credentials"},
		{"unknown user", map[string]string{"email": "ghost@example.com", "password": "whatever"}, fiber.StatusUnauthorized, "invalid_credentials"},
		{"inactive", map[string]string{"email": "inactive@example.com", "password": "user-secret"}, fiber.StatusUnauthorized, "account_inactive"},
		{"missing password", map[string]string{"email": adminEmail}, fiber.StatusBadRequest, "invalid_input"},
		{"not json", "{", fiber.StatusBadRequest, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := s.do(t, http.MethodPost, "/api/auth/signin", "", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestTokenRejections(t *testing.T) {
	s := newTestServer(t)

	admin, err := s.platform.Users.EnsureAdmin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)

	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := auth.NewTokenService("test-secret", time.Hour).WithClock(past).Issue(admin.ID, true, 30)
	require.NoError(t, err)

	forged, _, err := auth.NewTokenService("other-secret", time.Hour).Issue(admin.ID, true, 30)
	require.NoError(t, err)

	unknown, _, err := s.platform.Tokens.Issue(uuid.New(), true, 30)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"missing", "", "missing_token"},
		{"garbage", "not-a-token", "not_authenticated"},
		{"expired", expired, "not_authenticated"},
		{"rotated secret", forged, "not_authenticated"},
		{"unknown user", unknown, "not_authenticated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := s.do(t, http.MethodGet, "/api/user/me", tt.token, nil)
			assert.Equal(t, fiber.StatusUnauthorized, status)
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestAdminBoundary(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	s.createUser(t, admin, "user@example.com")
	token := s.signin(t, "user@example.com", "user-secret")

	status, body, _ := s.do(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	status, _, _ = s.do(t, http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateUserIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	id := s.createUser(t, admin, "bob@example.com")

	status, body, _ := s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]any{
		"email":    "Bob@Example.com",
		"password": "another-secret",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "User already exists", body["message"])
	assert.Equal(t, id, body["user"].(map[string]any)["id"])

	status, body, _ = s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]any{
		"email":    "carol@example.com",
		"password": "abc",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "weak_secret", body["error"])
}

func TestListUsersNewestFirst(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	s.createUser(t, admin, "first@example.com")
	time.Sleep(2 * time.Millisecond)
	s.createUser(t, admin, "second@example.com")

	status, _, raw := s.do(t, http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, fiber.StatusOK, status)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(raw, &users))
	require.Len(t, users, 3)
	assert.Equal(t, "second@example.com", users[0]["email"])
	assert.Equal(t, "first@example.com", users[1]["email"])
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	id := s.createUser(t, admin, "dave@example.com")

	status, body, _ := s.do(t, http.MethodPut, "/api/admin/users/"+id, admin, map[string]any{
		"phone_number": "+31 20 123 4567",
		"password":     "fresh-secret",
		"expiry_date":  "2099-01-01T00:00:00Z",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "+31 20 123 4567", body["phone_number"])
	assert.Equal(t, "2099-01-01T00:00:00Z", body["expiry_date"])

	s.signin(t, "dave@example.com", "fresh-secret")

	status, body, _ = s.do(t, http.MethodPut, "/api/admin/users/"+uuid.NewString(), admin, map[string]any{"is_active": false})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "user_not_found", body["error"])

	status, _, _ = s.do(t, http.MethodPut, "/api/admin/users/nonexistent", admin, map[string]any{"is_active": false})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSetWebsitePermissions(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	id := s.createUser(t, admin, "erin@example.com")
	path := "/api/admin/users/" + id + "/permissions"

	status, body, _ := s.do(t, http.MethodPut, path, admin, []map[string]any{
		{"website": "example.com", "has_access": true},
		{"website": "blocked.com", "has_access": false},
	})
	require.Equal(t, fiber.StatusOK, status, body)

	perms := body["website_permissions"].([]any)
	require.Len(t, perms, 2)
	got := map[string]bool{}
	for _, p := range perms {
		entry := p.(map[string]any)
		got[entry["website"].(string)] = entry["has_access"].(bool)
		assert.NotNil(t, entry["approved_by"])
	}
	assert.Equal(t, map[string]bool{"example.com": true, "blocked.com": false}, got)

	tests := []struct {
		name string
		body any
	}{
		{"object instead of array", map[string]any{"website": "a.com"}},
		{"null body", "null"},
		{"empty body", ""},
		{"string body", `"example.com"`},
		{"missing has_access", []map[string]any{{"website": "a.com"}}},
		{"duplicate website", []map[string]any{{"website": "a.com", "has_access": true}, {"website": "A.com", "has_access": false}}},
		{"empty website", []map[string]any{{"website": "", "has_access": true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := s.do(t, http.MethodPut, path, admin, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
		})
	}

	status, body, _ = s.do(t, http.MethodGet, "/api/admin/users/"+id, admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["website_permissions"], 2, "rejected bodies leave the set untouched")

	status, _, _ = s.do(t, http.MethodPut, "/api/admin/users/"+uuid.NewString()+"/permissions", admin, []map[string]any{})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestGrantRevokeAndCookieInsertion(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	id := s.createUser(t, admin, "frank@example.com")
	token := s.signin(t, "frank@example.com", "user-secret")

	status, body, _ := s.do(t, http.MethodPost, "/api/user/cookie-insertions", token, map[string]string{"website": "example.com"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	status, _, _ = s.do(t, http.MethodPut, "/api/admin/users/"+id+"/permissions/example.com", admin, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body, _ = s.do(t, http.MethodPost, "/api/user/cookie-insertions", token, map[string]string{"website": "https://Example.com/"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "example.com", body["website"])

	status, _, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+id+"/permissions/example.com", admin, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _, _ = s.do(t, http.MethodPost, "/api/user/cookie-insertions", token, map[string]string{"website": "example.com"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body, _ = s.do(t, http.MethodGet, "/api/user/me/stats", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(3), body["total_insertions"])
	assert.Equal(t, float64(1), body["successful_insertions"])
	assert.Equal(t, float64(1), body["login_count"])

	status, body, _ = s.do(t, http.MethodGet, "/api/admin/users/"+id+"/audit", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["cookie_insertions"], 3)
	assert.Len(t, body["logins"], 1)
}

func TestBulkSetActive(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	u1 := s.createUser(t, admin, "u1@example.com")
	u2 := s.createUser(t, admin, "u2@example.com")

	input := map[string]any{"user_ids": []string{u1, u2, "nonexistent"}, "is_active": false}

	status, body, _ := s.do(t, http.MethodPost, "/api/admin/users/bulk-active", admin, input)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, float64(2), body["modified"])

	status, body, _ = s.do(t, http.MethodPost, "/api/admin/users/bulk-active", admin, input)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), body["modified"])

	status, _, _ = s.do(t, http.MethodPost, "/api/admin/users/bulk-active", admin, map[string]any{"user_ids": []string{u1}})
	assert.Equal(t, fiber.StatusBadRequest, status, "is_active is required")
}

func TestListWebsites(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	u1 := s.createUser(t, admin, "u1@example.com")
	u2 := s.createUser(t, admin, "u2@example.com")

	s.do(t, http.MethodPut, "/api/admin/users/"+u1+"/permissions/zulu.com", admin, nil)
	s.do(t, http.MethodPut, "/api/admin/users/"+u2+"/permissions/alpha.com", admin, nil)
	s.do(t, http.MethodDelete, "/api/admin/users/"+u2+"/permissions/zulu.com", admin, nil)

	status, _, raw := s.do(t, http.MethodGet, "/api/admin/websites", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[{"website":"alpha.com"},{"website":"zulu.com"}]`, string(raw))
}

func TestLogoutEndsOnlyThatSession(t *testing.T) {
	s := newTestServer(t)
	first := s.signin(t, adminEmail, adminPassword)
	second := s.signin(t, adminEmail, adminPassword)

	status, _, _ := s.do(t, http.MethodPost, "/api/auth/logout", first, nil)
	require.Equal(t, fiber.StatusNoContent, status)

	status, body, _ := s.do(t, http.MethodGet, "/api/user/me", first, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "session_expired", body["error"])

	status, _, _ = s.do(t, http.MethodGet, "/api/user/me", second, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestIdleSessionExpires(t *testing.T) {
	s := newTestServer(t)
	token := s.signin(t, adminEmail, adminPassword)

	status, _, _ := s.do(t, http.MethodGet, "/api/user/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)

	s.now = s.now.Add(6 * time.Minute)
	status, body, _ := s.do(t, http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "idle", body["state"])

	status, _, _ = s.do(t, http.MethodGet, "/api/user/me", token, nil)
	require.Equal(t, fiber.StatusOK, status, "activity brings an idle session back")

	s.now = s.now.Add(31 * time.Minute)
	status, body, _ = s.do(t, http.MethodGet, "/api/user/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "session_expired", body["error"])
}

func TestExportUserAudit(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)
	id := s.createUser(t, admin, "gina@example.com")

	status, body, _ := s.do(t, http.MethodPost, "/api/admin/users/"+id+"/audit/export", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "export_disabled", body["error"])

	storage := &memStorage{objects: map[string][]byte{}}
	s.platform.Export = export.NewService(storage, s.platform.Audit)

	status, body, _ = s.do(t, http.MethodPost, "/api/admin/users/"+id+"/audit/export", admin, nil)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Contains(t, storage.objects, body["key"])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	status, body, _ := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])
}

func TestAmbientRoutes(t *testing.T) {
	s := newTestServer(t)

	status, _, raw := s.do(t, http.MethodGet, "/robots.txt", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "Disallow: /")

	status, body, _ := s.do(t, http.MethodGet, "/api/diag/ip", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["ip"])

	status, _, _ = s.do(t, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestCreateUserInputShape(t *testing.T) {
	s := newTestServer(t)
	admin := s.signin(t, adminEmail, adminPassword)

	inactive := false
	status, body, _ := s.do(t, http.MethodPost, "/api/admin/users", admin, user.CreateUserInput{
		Email:    "hank@example.com",
		Password: "user-secret",
		Name:     "Hank",
		IsActive: &inactive,
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, false, body["is_active"])
	assert.Equal(t, "Hank", body["name"])

	status, _, _ = s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]any{"email": "not-an-email", "password": "user-secret"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) Get(key string) ([]byte, error) { return m.objects[key], nil }
func (m *memStorage) Set(key string, val []byte, _ time.Duration) error {
	m.objects[key] = val
	return nil
}
func (m *memStorage) Delete(key string) error { delete(m.objects, key); return nil }
func (m *memStorage) Reset() error            { m.objects = map[string][]byte{}; return nil }
func (m *memStorage) Close() error            { return nil }
