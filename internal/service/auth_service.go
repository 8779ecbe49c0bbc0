package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"smartclinic/api/internal/ids"
	"smartclinic/api/internal/models"
	"smartclinic/api/internal/repository"
	"smartclinic/api/internal/security"
)

var (
	ErrBadCredentials = errors.New("invalid password")
	ErrDeactivated    = errors.New("account is deactivated")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrEmailTaken     = errors.New("email or username already registered")
)

// PrincipalStore is the narrow view of the credential store the gateway needs.
type PrincipalStore interface {
	FindByUsernameOrEmail(ctx context.Context, role models.Role, key string) (models.Principal, error)
	FindByEmail(ctx context.Context, role models.Role, email string) (models.Principal, error)
	GetByID(ctx context.Context, role models.Role, id int64) (models.Principal, error)
	CreatePatient(ctx context.Context, p models.Principal) (int64, error)
	SetActive(ctx context.Context, role models.Role, id int64, active bool) error
	UpdateAdminRole(ctx context.Context, id int64, role models.AdminRole) error
	SetDoctorPhotoURL(ctx context.Context, id int64, url string) error
}

type AuditStore interface {
	Insert(ctx context.Context, entry models.AuditLog) error
}

// Identity is what a successful authorization yields: exactly one
// {subject, role, principal id} triple per request.
type Identity struct {
	Subject     string
	Role        models.Role
	PrincipalID int64
}

type LoginResult struct {
	Token     string
	Principal models.Principal
}

// AuthService authenticates principals against the credential store and
// resolves bearer tokens back to identities.
type AuthService struct {
	principals PrincipalStore
	audit      AuditStore
	codec      *security.Codec
	log        zerolog.Logger
}

func NewAuthService(principals PrincipalStore, audit AuditStore, codec *security.Codec, log zerolog.Logger) *AuthService {
	return &AuthService{
		principals: principals,
		audit:      audit,
		codec:      codec,
		log:        log,
	}
}

// Login verifies the password for a principal of the given role, looked up by
// username or email. Deactivated accounts are refused before the password is
// even checked, so the outcome does not depend on password correctness.
func (s *AuthService) Login(ctx context.Context, role models.Role, usernameOrEmail, password string) (LoginResult, error) {
	key := strings.TrimSpace(usernameOrEmail)

	principal, err := s.principals.FindByUsernameOrEmail(ctx, role, key)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return LoginResult{}, fmt.Errorf("%s login: %w", role, err)
		}
		return LoginResult{}, err
	}

	if !principal.Active {
		return LoginResult{}, ErrDeactivated
	}

	ok, err := security.VerifyPassword(password, principal.PasswordHash)
	if err != nil || !ok {
		s.writeAudit(ctx, string(role), principal.ID, "login_failed", "password mismatch")
		return LoginResult{}, ErrBadCredentials
	}

	token, err := s.codec.Issue(principal.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.writeAudit(ctx, string(role), principal.ID, "login", "")

	return LoginResult{Token: token, Principal: principal}, nil
}

// Authorize resolves a raw token (optionally carrying a "Bearer " prefix)
// against an ordered set of candidate roles and returns the first role whose
// collection holds an active principal with the token's subject. Expired or
// malformed tokens surface as ErrUnauthorized just like a role mismatch.
func (s *AuthService) Authorize(ctx context.Context, rawToken string, candidateRoles ...models.Role) (Identity, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(rawToken), "Bearer ")

	subject, err := s.codec.Verify(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnauthorized, err)
	}

	for _, role := range candidateRoles {
		principal, err := s.principals.FindByEmail(ctx, role, subject)
		if err != nil {
			if errors.Is(err, repository.ErrPrincipalNotFound) {
				continue
			}
			return Identity{}, err
		}
		if !principal.Active {
			continue
		}
		return Identity{
			Subject:     subject,
			Role:        role,
			PrincipalID: principal.ID,
		}, nil
	}

	return Identity{}, ErrUnauthorized
}

// RegisterPatient creates a patient account and logs it straight in.
func (s *AuthService) RegisterPatient(ctx context.Context, username, email, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("username, email and password are required")
	}

	if _, err := s.principals.FindByUsernameOrEmail(ctx, models.RolePatient, email); err == nil {
		return LoginResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrPrincipalNotFound) {
		return LoginResult{}, err
	}
	if _, err := s.principals.FindByUsernameOrEmail(ctx, models.RolePatient, username); err == nil {
		return LoginResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrPrincipalNotFound) {
		return LoginResult{}, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("hash password: %w", err)
	}

	principal := models.Principal{
		Role:         models.RolePatient,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}

	id, err := s.principals.CreatePatient(ctx, principal)
	if err != nil {
		return LoginResult{}, err
	}
	principal.ID = id

	token, err := s.codec.Issue(principal.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.writeAudit(ctx, string(models.RolePatient), id, "register", "")

	return LoginResult{Token: token, Principal: principal}, nil
}

// SetActive flips the soft-delete flag on any principal.
func (s *AuthService) SetActive(ctx context.Context, role models.Role, id int64, active bool) error {
	if err := s.principals.SetActive(ctx, role, id, active); err != nil {
		return err
	}
	action := "account_deactivated"
	if active {
		action = "account_activated"
	}
	s.writeAudit(ctx, string(role), id, action, "")
	return nil
}

// PromoteAdmin changes an admin's sub-role. Only a super_admin caller may do
// this; the handler enforces that, this just validates and writes.
func (s *AuthService) PromoteAdmin(ctx context.Context, id int64, role models.AdminRole) error {
	if role != models.AdminRoleAdmin && role != models.AdminRoleSuperAdmin {
		return fmt.Errorf("unknown admin role %q", role)
	}
	if err := s.principals.UpdateAdminRole(ctx, id, role); err != nil {
		return err
	}
	s.writeAudit(ctx, string(models.RoleAdmin), id, "admin_role_changed", string(role))
	return nil
}

func (s *AuthService) GetPrincipal(ctx context.Context, role models.Role, id int64) (models.Principal, error) {
	return s.principals.GetByID(ctx, role, id)
}

func (s *AuthService) SetDoctorPhotoURL(ctx context.Context, doctorID int64, url string) error {
	return s.principals.SetDoctorPhotoURL(ctx, doctorID, url)
}

func (s *AuthService) writeAudit(ctx context.Context, userType string, userID int64, action, details string) {
	if s.audit == nil {
		return
	}
	entry := models.AuditLog{
		ID:       ids.New(),
		UserType: userType,
		UserID:   userID,
		Action:   action,
		Details:  details,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
