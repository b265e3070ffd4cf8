package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"TownSquare/internal/middleware"
	"TownSquare/internal/service"
)

type RSVPHandler struct {
	svc    *service.RSVPService
	logger *zap.Logger
}

func NewRSVPHandler(svc *service.RSVPService, logger *zap.Logger) *RSVPHandler {
	return &RSVPHandler{svc: svc, logger: logger}
}

// RSVP 报名，重复报名返回 changed=false
func (h *RSVPHandler) RSVP(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	changed, err := h.svc.RSVP(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *RSVPHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	changed, err := h.svc.CancelRSVP(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}
