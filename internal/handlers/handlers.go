package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smartclinic/api/internal/config"
	"smartclinic/api/internal/middleware"
	"smartclinic/api/internal/models"
	"smartclinic/api/internal/repository"
	"smartclinic/api/internal/service"
	"smartclinic/api/internal/session"
	"smartclinic/api/internal/storage"
)

// AuditLister is the read side of the audit log, used by the admin surface.
type AuditLister interface {
	List(ctx context.Context, userType, action string, from, to time.Time, limit int) ([]models.AuditLog, error)
}

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	auth         *service.AuthService
	appointments *service.AppointmentService
	sessions     session.Store
	auditLogs    AuditLister
	photos       *storage.ObjectStore
	db           *pgxpool.Pool
	cache        *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	auth *service.AuthService,
	appointments *service.AppointmentService,
	sessions session.Store,
	auditLogs AuditLister,
	photos *storage.ObjectStore,
	db *pgxpool.Pool,
	cache *redis.Client,
) HandlerSet {
	return HandlerSet{
		log:          log,
		cfg:          cfg,
		auth:         auth,
		appointments: appointments,
		sessions:     sessions,
		auditLogs:    auditLogs,
		photos:       photos,
		db:           db,
		cache:        cache,
	}
}

// Register wires the role-prefixed route tree. The authentication interceptor
// has already run for every request here; these groups only add the per-route
// access policy.
func (h HandlerSet) Register(router *gin.Engine, loginLimit gin.HandlerFunc) {
	router.GET("/api/healthz", h.Health)

	router.POST("/admin/login", loginLimit, h.Login(models.RoleAdmin))
	router.POST("/doctor/login", loginLimit, h.Login(models.RoleDoctor))
	router.POST("/patient/login", loginLimit, h.Login(models.RolePatient))
	router.POST("/patient/register", loginLimit, h.RegisterPatient)
	router.POST("/logout", h.Logout)

	patient := router.Group("/patient", middleware.RequireRoles(models.RolePatient))
	{
		patient.GET("/appointments", h.PatientAppointments)
		patient.POST("/appointments", h.BookAppointment)
		patient.POST("/appointments/:id/cancel", h.PatientCancelAppointment)
		patient.GET("/doctors/:id/availability", h.CheckAvailability)
	}

	doctor := router.Group("/doctor", middleware.RequireRoles(models.RoleDoctor))
	{
		doctor.GET("/appointments", h.DoctorAppointments)
		doctor.POST("/appointments/:id/confirm", h.ConfirmAppointment)
		doctor.POST("/appointments/:id/complete", h.CompleteAppointment)
		doctor.PATCH("/appointments/:id/schedule", h.RescheduleAppointment)
		doctor.POST("/profile/photo", h.UploadProfilePhoto)
	}

	admin := router.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/appointments", h.FilterAppointments)
		admin.PATCH("/users/:role/:id/active", h.SetUserActive)
		admin.PATCH("/admins/:id/role", h.UpdateAdminRole)
		admin.GET("/audit-logs", h.AuditLogs)
	}
}

// writeError maps the error taxonomy onto HTTP statuses without exposing
// internal detail for anything unexpected.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPrincipalNotFound),
		errors.Is(err, repository.ErrAppointmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, service.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, service.ErrDeactivated):
		c.JSON(http.StatusForbidden, gin.H{"error": "account_deactivated"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrSlotTaken), errors.Is(err, repository.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "slot_taken"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_status"})
	case errors.Is(err, service.ErrInvalidSlot):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slot"})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "already_registered"})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}
