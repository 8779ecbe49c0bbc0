package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smartclinic/api/internal/models"
	"smartclinic/api/internal/repository"
	"smartclinic/api/internal/security"
	"smartclinic/api/internal/service"
	"smartclinic/api/internal/session"
)

// principalDirectory is a canned credential store for interceptor tests.
type principalDirectory map[models.Role]models.Principal

func (d principalDirectory) FindByUsernameOrEmail(_ context.Context, role models.Role, key string) (models.Principal, error) {
	p, ok := d[role]
	if !ok || (p.Username != key && p.Email != key) {
		return models.Principal{}, repository.ErrPrincipalNotFound
	}
	return p, nil
}

func (d principalDirectory) FindByEmail(_ context.Context, role models.Role, email string) (models.Principal, error) {
	p, ok := d[role]
	if !ok || p.Email != email {
		return models.Principal{}, repository.ErrPrincipalNotFound
	}
	return p, nil
}

func (d principalDirectory) GetByID(_ context.Context, role models.Role, id int64) (models.Principal, error) {
	p, ok := d[role]
	if !ok || p.ID != id {
		return models.Principal{}, repository.ErrPrincipalNotFound
	}
	return p, nil
}

func (d principalDirectory) CreatePatient(context.Context, models.Principal) (int64, error) {
	return 0, repository.ErrPrincipalNotFound
}

func (d principalDirectory) SetActive(context.Context, models.Role, int64, bool) error {
	return nil
}

func (d principalDirectory) UpdateAdminRole(context.Context, int64, models.AdminRole) error {
	return nil
}

func (d principalDirectory) SetDoctorPhotoURL(context.Context, int64, string) error {
	return nil
}

type testEnv struct {
	engine   *gin.Engine
	codec    *security.Codec
	sessions *session.MemoryStore
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	directory := principalDirectory{
		models.RolePatient: {ID: 1, Role: models.RolePatient, Username: "pat", Email: "pat@example.com", Active: true},
		models.RoleDoctor:  {ID: 2, Role: models.RoleDoctor, Username: "doc", Email: "doc@example.com", Active: true},
	}

	codec := security.NewCodec("test-secret", time.Hour)
	auth := service.NewAuthService(directory, nil, codec, zerolog.Nop())
	sessions := session.NewMemoryStore(time.Hour)

	engine := gin.New()
	engine.Use(Authenticate(auth, sessions, zerolog.Nop()))

	echoIdentity := func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": id.Subject, "role": string(id.Role)})
	}

	engine.GET("/api/healthz", echoIdentity)
	engine.POST("/patient/login", echoIdentity)
	engine.GET("/whoami", echoIdentity)
	engine.GET("/patient/appointments", RequireRoles(models.RolePatient), echoIdentity)
	engine.GET("/doctor/appointments", RequireRoles(models.RoleDoctor), echoIdentity)

	return testEnv{engine: engine, codec: codec, sessions: sessions}
}

func (e testEnv) do(method, path string, configure func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if configure != nil {
		configure(req)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateBearerHeader(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.codec.Issue("pat@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := env.do(http.MethodGet, "/patient/appointments", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if body != `{"role":"patient","subject":"pat@example.com"}` {
		t.Errorf("body = %s", body)
	}
}

func TestAuthenticateRoleFollowsPathPrefix(t *testing.T) {
	env := newTestEnv(t)

	// a patient token presented on a doctor route never yields an identity,
	// so the role gate rejects with 401 rather than 403
	token, err := env.codec.Issue("pat@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := env.do(http.MethodGet, "/doctor/appointments", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateSessionCookieFallback(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.codec.Issue("doc@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sid, err := env.sessions.Create(context.Background(), session.Handle{
		Token: token, Role: models.RoleDoctor, PrincipalID: 2,
	})
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	rec := env.do(http.MethodGet, "/doctor/appointments", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// unknown session id falls through to anonymous and the gate rejects
	rec = env.do(http.MethodGet, "/doctor/appointments", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "bogus"})
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus session status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateHeaderWinsOverCookie(t *testing.T) {
	env := newTestEnv(t)
	docToken, _ := env.codec.Issue("doc@example.com")
	patToken, _ := env.codec.Issue("pat@example.com")

	sid, err := env.sessions.Create(context.Background(), session.Handle{
		Token: patToken, Role: models.RolePatient, PrincipalID: 1,
	})
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	rec := env.do(http.MethodGet, "/doctor/appointments", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+docToken)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want header identity to win", rec.Code)
	}
}

func TestAuthenticateNeverTerminates(t *testing.T) {
	env := newTestEnv(t)

	// no credential at all: request proceeds, handler sees no identity
	rec := env.do(http.MethodGet, "/whoami", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != `{"anonymous":true}` {
		t.Errorf("body = %s", rec.Body.String())
	}

	// invalid credential: still proceeds, gate downstream decides
	rec = env.do(http.MethodGet, "/whoami", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("invalid token status = %d", rec.Code)
	}
	if rec.Body.String() != `{"anonymous":true}` {
		t.Errorf("invalid token body = %s", rec.Body.String())
	}
}

func TestAuthenticateSkipsOpenPaths(t *testing.T) {
	env := newTestEnv(t)

	// a garbage credential on an allow-listed path is never inspected
	for _, path := range []string{"/api/healthz"} {
		rec := env.do(http.MethodGet, path, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer not-a-token")
		})
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}
	rec := env.do(http.MethodPost, "/patient/login", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusOK {
		t.Errorf("POST /patient/login status = %d", rec.Code)
	}
}

func TestRequireRolesRejections(t *testing.T) {
	env := newTestEnv(t)

	// anonymous on a gated route
	rec := env.do(http.MethodGet, "/patient/appointments", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	if rec.Body.String() != `{"error":"unauthorized"}` {
		t.Errorf("anonymous body = %s", rec.Body.String())
	}
}

func TestOpenPath(t *testing.T) {
	cases := []struct {
		path string
		open bool
	}{
		{"/", true},
		{"/index.html", true},
		{"/static/app.js", true},
		{"/assets/logo.png", true},
		{"/api/healthz", true},
		{"/patient/login", true},
		{"/doctor/login", true},
		{"/admin/login", true},
		{"/patient/appointments", false},
		{"/doctor/appointments", false},
		{"/admin/audit-logs", false},
	}
	for _, tc := range cases {
		if got := openPath(tc.path); got != tc.open {
			t.Errorf("openPath(%q) = %v, want %v", tc.path, got, tc.open)
		}
	}
}

func TestRoleFromPath(t *testing.T) {
	cases := []struct {
		path string
		role models.Role
		ok   bool
	}{
		{"/admin/users", models.RoleAdmin, true},
		{"/doctor/appointments/3/confirm", models.RoleDoctor, true},
		{"/patient/appointments", models.RolePatient, true},
		{"/api/healthz", "", false},
		{"/", "", false},
	}
	for _, tc := range cases {
		role, ok := roleFromPath(tc.path)
		if role != tc.role || ok != tc.ok {
			t.Errorf("roleFromPath(%q) = (%q, %v), want (%q, %v)", tc.path, role, ok, tc.role, tc.ok)
		}
	}
}
