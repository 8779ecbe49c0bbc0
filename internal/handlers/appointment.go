package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartclinic/api/internal/middleware"
	"smartclinic/api/internal/models"
	"smartclinic/api/internal/service"
)

const dateLayout = "2006-01-02"

type appointmentResponse struct {
	ID                int64  `json:"id"`
	PatientID         int64  `json:"patientId"`
	DoctorID          int64  `json:"doctorId"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	DurationMinutes   int    `json:"durationMinutes"`
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	PatientNotes      string `json:"patientNotes,omitempty"`
	ConsultationNotes string `json:"consultationNotes,omitempty"`
}

func toAppointmentResponse(a models.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                a.ID,
		PatientID:         a.PatientID,
		DoctorID:          a.DoctorID,
		Date:              a.Date.Format(dateLayout),
		Time:              a.StartTime,
		DurationMinutes:   a.DurationMinutes,
		Status:            string(a.Status),
		Reason:            a.Reason,
		PatientNotes:      a.PatientNotes,
		ConsultationNotes: a.ConsultationNotes,
	}
}

func toAppointmentList(appts []models.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type bookRequest struct {
	DoctorID        int64  `json:"doctorId" binding:"required"`
	Date            string `json:"date" binding:"required"`
	Time            string `json:"time" binding:"required"`
	DurationMinutes int    `json:"durationMinutes"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

// BookAppointment books a slot for the authenticated patient. The patient id
// always comes from the request identity, never from the body.
func (h HandlerSet) BookAppointment(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slot"})
		return
	}

	appt, err := h.appointments.Book(c.Request.Context(), models.Appointment{
		PatientID:       identity.PrincipalID,
		DoctorID:        req.DoctorID,
		Date:            date,
		StartTime:       req.Time,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		PatientNotes:    req.Notes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAppointmentResponse(appt))
}

// CheckAvailability answers whether a doctor's exact slot is free.
func (h HandlerSet) CheckAvailability(c *gin.Context) {
	doctorID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || doctorID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slot"})
		return
	}

	available, err := h.appointments.CheckAvailability(c.Request.Context(), doctorID, date, c.Query("time"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": available})
}

func (h HandlerSet) PatientAppointments(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	appts, err := h.appointments.Filter(c.Request.Context(), service.AppointmentFilter{
		PatientID: identity.PrincipalID,
		Status:    models.AppointmentStatus(c.Query("status")),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"appointments": toAppointmentList(appts)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h HandlerSet) PatientCancelAppointment(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	id, ok := pathID(c)
	if !ok {
		return
	}

	appt, err := h.appointments.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if appt.PatientID != identity.PrincipalID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access_denied"})
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.appointments.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment cancelled"})
}

func (h HandlerSet) DoctorAppointments(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	filter := service.AppointmentFilter{
		DoctorID: identity.PrincipalID,
		Status:   models.AppointmentStatus(c.Query("status")),
	}
	if from := c.Query("dateFrom"); from != "" {
		if t, err := time.Parse(dateLayout, from); err == nil {
			filter.DateFrom = t
		}
	}
	if to := c.Query("dateTo"); to != "" {
		if t, err := time.Parse(dateLayout, to); err == nil {
			filter.DateTo = t
		}
	}

	appts, err := h.appointments.Filter(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"appointments": toAppointmentList(appts)})
}

// ownedByDoctor loads the appointment and rejects doctors acting on another
// doctor's bookings.
func (h HandlerSet) ownedByDoctor(c *gin.Context, id int64) bool {
	identity, _ := middleware.IdentityFrom(c)

	appt, err := h.appointments.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return false
	}
	if appt.DoctorID != identity.PrincipalID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access_denied"})
		return false
	}
	return true
}

func (h HandlerSet) ConfirmAppointment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok || !h.ownedByDoctor(c, id) {
		return
	}

	if err := h.appointments.Confirm(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment confirmed"})
}

type completeRequest struct {
	Notes string `json:"notes"`
}

func (h HandlerSet) CompleteAppointment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok || !h.ownedByDoctor(c, id) {
		return
	}

	var req completeRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.appointments.Complete(c.Request.Context(), id, req.Notes); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment completed"})
}

type rescheduleRequest struct {
	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`
}

func (h HandlerSet) RescheduleAppointment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok || !h.ownedByDoctor(c, id) {
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slot"})
		return
	}

	appt, err := h.appointments.Reschedule(c.Request.Context(), id, date, req.Time)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

// FilterAppointments is the admin view over all appointments.
func (h HandlerSet) FilterAppointments(c *gin.Context) {
	filter := service.AppointmentFilter{
		Status: models.AppointmentStatus(c.Query("status")),
	}
	if v := c.Query("doctorId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.DoctorID = id
		}
	}
	if v := c.Query("patientId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.PatientID = id
		}
	}
	if from := c.Query("dateFrom"); from != "" {
		if t, err := time.Parse(dateLayout, from); err == nil {
			filter.DateFrom = t
		}
	}
	if to := c.Query("dateTo"); to != "" {
		if t, err := time.Parse(dateLayout, to); err == nil {
			filter.DateTo = t
		}
	}

	appts, err := h.appointments.Filter(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"appointments": toAppointmentList(appts)})
}
