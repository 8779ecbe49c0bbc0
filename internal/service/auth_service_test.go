package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartclinic/api/internal/models"
	"smartclinic/api/internal/repository"
	"smartclinic/api/internal/security"
)

// fakePrincipalStore keeps principals in memory keyed by role.
type fakePrincipalStore struct {
	mu         sync.Mutex
	principals map[models.Role][]models.Principal
	nextID     int64
}

func newFakePrincipalStore() *fakePrincipalStore {
	return &fakePrincipalStore{
		principals: make(map[models.Role][]models.Principal),
		nextID:     1,
	}
}

func (f *fakePrincipalStore) add(p models.Principal) models.Principal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		p.ID = f.nextID
		f.nextID++
	}
	f.principals[p.Role] = append(f.principals[p.Role], p)
	return p
}

func (f *fakePrincipalStore) FindByUsernameOrEmail(_ context.Context, role models.Role, key string) (models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals[role] {
		if p.Username == key || p.Email == key {
			return p, nil
		}
	}
	return models.Principal{}, repository.ErrPrincipalNotFound
}

func (f *fakePrincipalStore) FindByEmail(_ context.Context, role models.Role, email string) (models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals[role] {
		if p.Email == email {
			return p, nil
		}
	}
	return models.Principal{}, repository.ErrPrincipalNotFound
}

func (f *fakePrincipalStore) GetByID(_ context.Context, role models.Role, id int64) (models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals[role] {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Principal{}, repository.ErrPrincipalNotFound
}

func (f *fakePrincipalStore) CreatePatient(_ context.Context, p models.Principal) (int64, error) {
	p.Role = models.RolePatient
	return f.add(p).ID, nil
}

func (f *fakePrincipalStore) SetActive(_ context.Context, role models.Role, id int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.principals[role] {
		if p.ID == id {
			f.principals[role][i].Active = active
			return nil
		}
	}
	return repository.ErrPrincipalNotFound
}

func (f *fakePrincipalStore) UpdateAdminRole(_ context.Context, id int64, role models.AdminRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.principals[models.RoleAdmin] {
		if p.ID == id {
			f.principals[models.RoleAdmin][i].AdminRole = role
			return nil
		}
	}
	return repository.ErrPrincipalNotFound
}

func (f *fakePrincipalStore) SetDoctorPhotoURL(_ context.Context, id int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals[models.RoleDoctor] {
		if p.ID == id {
			return nil
		}
	}
	return repository.ErrPrincipalNotFound
}

// fakeAuditStore records audit entries for assertion.
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAuditStore) Insert(_ context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func newTestAuthService(t *testing.T) (*AuthService, *fakePrincipalStore, *fakeAuditStore) {
	t.Helper()
	principals := newFakePrincipalStore()
	audit := &fakeAuditStore{}
	codec := security.NewCodec("test-secret", time.Hour)
	return NewAuthService(principals, audit, codec, zerolog.Nop()), principals, audit
}

func TestLoginSucceedsByUsernameAndEmail(t *testing.T) {
	svc, principals, audit := newTestAuthService(t)
	principals.add(models.Principal{
		Role:         models.RoleDoctor,
		Username:     "drwho",
		Email:        "who@clinic.example",
		PasswordHash: mustHash(t, "correct horse"),
		Active:       true,
	})

	for _, key := range []string{"drwho", "who@clinic.example"} {
		result, err := svc.Login(context.Background(), models.RoleDoctor, key, "correct horse")
		if err != nil {
			t.Fatalf("Login(%q): %v", key, err)
		}
		if result.Token == "" {
			t.Errorf("Login(%q) returned empty token", key)
		}
		if result.Principal.Email != "who@clinic.example" {
			t.Errorf("Login(%q) principal email = %q", key, result.Principal.Email)
		}
	}

	found := false
	for _, a := range audit.actions() {
		if a == "login" {
			found = true
		}
	}
	if !found {
		t.Error("successful login left no audit entry")
	}
}

func TestLoginUnknownPrincipal(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), models.RolePatient, "nobody", "whatever")
	if !errors.Is(err, repository.ErrPrincipalNotFound) {
		t.Errorf("error = %v, want ErrPrincipalNotFound", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, principals, audit := newTestAuthService(t)
	principals.add(models.Principal{
		Role:         models.RolePatient,
		Username:     "carol",
		Email:        "carol@example.com",
		PasswordHash: mustHash(t, "right password"),
		Active:       true,
	})

	_, err := svc.Login(context.Background(), models.RolePatient, "carol", "wrong password")
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("error = %v, want ErrBadCredentials", err)
	}

	actions := audit.actions()
	if len(actions) == 0 || actions[len(actions)-1] != "login_failed" {
		t.Errorf("audit actions = %v, want trailing login_failed", actions)
	}
}

func TestLoginDeactivatedRegardlessOfPassword(t *testing.T) {
	svc, principals, _ := newTestAuthService(t)
	principals.add(models.Principal{
		Role:         models.RolePatient,
		Username:     "dora",
		Email:        "dora@example.com",
		PasswordHash: mustHash(t, "right password"),
		Active:       false,
	})

	for _, password := range []string{"right password", "wrong password"} {
		_, err := svc.Login(context.Background(), models.RolePatient, "dora", password)
		if !errors.Is(err, ErrDeactivated) {
			t.Errorf("Login with %q: error = %v, want ErrDeactivated", password, err)
		}
	}
}

func TestLoginRoleIsolation(t *testing.T) {
	// alice exists only as a patient; a doctor login with her credentials
	// must fail with not-found, not leak across collections.
	svc, principals, _ := newTestAuthService(t)
	principals.add(models.Principal{
		Role:         models.RolePatient,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: mustHash(t, "alicepass"),
		Active:       true,
	})

	if _, err := svc.Login(context.Background(), models.RolePatient, "alice", "alicepass"); err != nil {
		t.Fatalf("patient login: %v", err)
	}
	if _, err := svc.Login(context.Background(), models.RoleDoctor, "alice", "alicepass"); !errors.Is(err, repository.ErrPrincipalNotFound) {
		t.Errorf("doctor login error = %v, want ErrPrincipalNotFound", err)
	}
}

func TestAuthorizeMatchesCandidateOrder(t *testing.T) {
	svc, principals, _ := newTestAuthService(t)

	// same email registered as both doctor and patient
	principals.add(models.Principal{
		Role: models.RoleDoctor, ID: 10,
		Username: "sam-doc", Email: "sam@example.com",
		PasswordHash: mustHash(t, "x"), Active: true,
	})
	principals.add(models.Principal{
		Role: models.RolePatient, ID: 20,
		Username: "sam-pat", Email: "sam@example.com",
		PasswordHash: mustHash(t, "x"), Active: true,
	})

	token, err := security.NewCodec("test-secret", time.Hour).Issue("sam@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := svc.Authorize(context.Background(), token, models.RolePatient, models.RoleDoctor)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if id.Role != models.RolePatient || id.PrincipalID != 20 {
		t.Errorf("identity = %+v, want first candidate role patient id 20", id)
	}

	id, err = svc.Authorize(context.Background(), token, models.RoleDoctor, models.RolePatient)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if id.Role != models.RoleDoctor || id.PrincipalID != 10 {
		t.Errorf("identity = %+v, want first candidate role doctor id 10", id)
	}
}

func TestAuthorizeRejections(t *testing.T) {
	svc, principals, _ := newTestAuthService(t)
	principals.add(models.Principal{
		Role: models.RolePatient,
		Username: "pia", Email: "pia@example.com",
		PasswordHash: mustHash(t, "x"), Active: true,
	})
	principals.add(models.Principal{
		Role: models.RoleDoctor,
		Username: "gone", Email: "gone@example.com",
		PasswordHash: mustHash(t, "x"), Active: false,
	})

	codec := security.NewCodec("test-secret", time.Hour)
	patientToken, _ := codec.Issue("pia@example.com")
	inactiveToken, _ := codec.Issue("gone@example.com")
	foreignToken, _ := security.NewCodec("other-secret", time.Hour).Issue("pia@example.com")

	cases := []struct {
		name  string
		token string
		roles []models.Role
	}{
		{"wrong role", patientToken, []models.Role{models.RoleAdmin}},
		{"no candidate roles", patientToken, nil},
		{"inactive principal", inactiveToken, []models.Role{models.RoleDoctor}},
		{"bad signature", foreignToken, []models.Role{models.RolePatient}},
		{"garbage token", "Bearer garbage", []models.Role{models.RolePatient}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Authorize(context.Background(), tc.token, tc.roles...); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestAuthorizeStripsBearerPrefix(t *testing.T) {
	svc, principals, _ := newTestAuthService(t)
	principals.add(models.Principal{
		Role: models.RolePatient,
		Username: "pia", Email: "pia@example.com",
		PasswordHash: mustHash(t, "x"), Active: true,
	})

	token, _ := security.NewCodec("test-secret", time.Hour).Issue("pia@example.com")

	id, err := svc.Authorize(context.Background(), "Bearer "+token, models.RolePatient)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if id.Subject != "pia@example.com" {
		t.Errorf("subject = %q", id.Subject)
	}
}

func TestRegisterPatient(t *testing.T) {
	svc, _, audit := newTestAuthService(t)

	result, err := svc.RegisterPatient(context.Background(), "newbie", "new@example.com", "a long password")
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if result.Token == "" || result.Principal.ID == 0 {
		t.Errorf("result = %+v, want token and assigned id", result)
	}

	// registered patient can immediately log in
	if _, err := svc.Login(context.Background(), models.RolePatient, "new@example.com", "a long password"); err != nil {
		t.Errorf("login after register: %v", err)
	}

	// duplicate email and duplicate username both refuse
	if _, err := svc.RegisterPatient(context.Background(), "other", "new@example.com", "pw123456"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email error = %v, want ErrEmailTaken", err)
	}
	if _, err := svc.RegisterPatient(context.Background(), "newbie", "other@example.com", "pw123456"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate username error = %v, want ErrEmailTaken", err)
	}

	found := false
	for _, a := range audit.actions() {
		if a == "register" {
			found = true
		}
	}
	if !found {
		t.Error("register left no audit entry")
	}
}

func TestSetActiveAudited(t *testing.T) {
	svc, principals, audit := newTestAuthService(t)
	p := principals.add(models.Principal{
		Role: models.RoleDoctor,
		Username: "doc", Email: "doc@example.com",
		PasswordHash: mustHash(t, "x"), Active: true,
	})

	if err := svc.SetActive(context.Background(), models.RoleDoctor, p.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := svc.Login(context.Background(), models.RoleDoctor, "doc", "x"); !errors.Is(err, ErrDeactivated) {
		t.Errorf("login after deactivation: error = %v, want ErrDeactivated", err)
	}

	actions := audit.actions()
	if len(actions) == 0 || actions[0] != "account_deactivated" {
		t.Errorf("audit actions = %v, want account_deactivated", actions)
	}
}

func TestPromoteAdminValidatesRole(t *testing.T) {
	svc, principals, _ := newTestAuthService(t)
	p := principals.add(models.Principal{
		Role: models.RoleAdmin,
		Username: "root", Email: "root@example.com",
		PasswordHash: mustHash(t, "x"), Active: true,
		AdminRole: models.AdminRoleAdmin,
	})

	if err := svc.PromoteAdmin(context.Background(), p.ID, models.AdminRoleSuperAdmin); err != nil {
		t.Fatalf("PromoteAdmin: %v", err)
	}
	if err := svc.PromoteAdmin(context.Background(), p.ID, models.AdminRole("czar")); err == nil {
		t.Error("unknown admin role accepted")
	}
}
