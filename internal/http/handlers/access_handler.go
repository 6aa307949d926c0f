package handlers

import (
	"context"
	"net/http"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/middleware"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/Dhoini/stream-access-service/pkg/req"
	"github.com/Dhoini/stream-access-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// AccessResolver решает, может ли зритель смотреть трансляцию.
type AccessResolver interface {
	ResolveAccess(ctx context.Context, streamID string, requester domain.Requester) (domain.AccessDecision, error)
	ListEntitlements(ctx context.Context, requester domain.Requester) ([]domain.Entitlement, error)
}

// AccessHandler обрабатывает запросы проверки доступа
type AccessHandler struct {
	access AccessResolver
	log    *logger.Logger
}

func NewAccessHandler(access AccessResolver, log *logger.Logger) *AccessHandler {
	return &AccessHandler{access: access, log: log}
}

// GetAccess GET /streams/:stream_id/access
func (h *AccessHandler) GetAccess(c *gin.Context) {
	uri, err := req.BindURI[streamURI](c)
	if err != nil {
		writeError(c.Writer, domain.ErrInvalidInput, h.log)
		return
	}

	decision, err := h.access.ResolveAccess(c.Request.Context(), uri.StreamID, middleware.RequesterFromContext(c))
	if err != nil {
		writeError(c.Writer, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, decision, http.StatusOK)
}

// ListEntitlements GET /me/entitlements
func (h *AccessHandler) ListEntitlements(c *gin.Context) {
	entitlements, err := h.access.ListEntitlements(c.Request.Context(), middleware.RequesterFromContext(c))
	if err != nil {
		writeError(c.Writer, err, h.log)
		return
	}
	if entitlements == nil {
		entitlements = []domain.Entitlement{}
	}
	res.JsonResponse(c.Writer, gin.H{"entitlements": entitlements}, http.StatusOK)
}
