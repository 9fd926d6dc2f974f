package handler

import (
	"errors"
	"net/http"

	"go-event-admission/internal/model"
	"go-event-admission/internal/service"
	apperrors "go-event-admission/pkg/app_errors"
	"go-event-admission/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RegistrationHandler struct {
	service service.AdmissionService
}

func NewRegistrationHandler(service service.AdmissionService) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

func (h *RegistrationHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.POST("sessions/:session_id/registrations", h.Register)
		router.POST("registrations/:registration_id/cancel", h.Cancel)
		router.GET("sessions/:session_id/seats", h.SeatStatus)
		router.GET("sessions/:session_id/waitlist", h.WaitlistSnapshot)
	}
}

func (h *RegistrationHandler) Register(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		h.handleError(c, apperrors.ErrInvalidInput, "Register")
		return
	}

	var req model.RegisterRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	outcome, err := h.service.Register(c, sessionID, req)
	if err != nil {
		h.handleError(c, err, "Register")
		return
	}

	c.JSON(http.StatusCreated, outcome)
}

func (h *RegistrationHandler) Cancel(c *gin.Context) {
	registrationID, err := uuid.Parse(c.Param("registration_id"))
	if err != nil {
		h.handleError(c, apperrors.ErrInvalidInput, "Cancel")
		return
	}

	result, err := h.service.Cancel(c, registrationID)
	if err != nil {
		h.handleError(c, err, "Cancel")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *RegistrationHandler) SeatStatus(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		h.handleError(c, apperrors.ErrInvalidInput, "SeatStatus")
		return
	}

	status, err := h.service.SeatStatus(c, sessionID)
	if err != nil {
		h.handleError(c, err, "SeatStatus")
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *RegistrationHandler) WaitlistSnapshot(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		h.handleError(c, apperrors.ErrInvalidInput, "WaitlistSnapshot")
		return
	}

	entries, err := h.service.WaitlistSnapshot(c, sessionID)
	if err != nil {
		h.handleError(c, err, "WaitlistSnapshot")
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *RegistrationHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input",
		})
	case errors.Is(err, apperrors.ErrSessionNotFound):
		log.Warn("Session not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Session not found",
		})
	case errors.Is(err, apperrors.ErrRegistrationNotFound):
		log.Warn("Registration not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Registration not found",
		})
	case errors.Is(err, apperrors.ErrRegistrationClosed):
		log.Warn("Registration closed")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Registration closed",
		})
	case errors.Is(err, apperrors.ErrDuplicateRegistration):
		log.Warn("Duplicate registration")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Already registered for this session",
		})
	case errors.Is(err, apperrors.ErrScheduleConflict):
		log.Warn("Schedule conflict")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Schedule conflict with another confirmed session",
		})
	case errors.Is(err, apperrors.ErrInvalidState):
		log.Warn("Invalid state")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Registration is not in a cancellable state",
		})
	case errors.Is(err, apperrors.ErrTransientStore):
		log.Warn("Transient store error")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Temporary failure, please retry",
		})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
