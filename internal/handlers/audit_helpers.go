package handlers

import (
	"context"
	nethttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/middleware"
	"social-service/internal/telemetry"
)

func requestIDFromHeader(c *gin.Context) string {
	requestID := c.GetHeader(middleware.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if userIDVal, ok := c.Get(middleware.ContextUserID); ok {
		if userID, ok := userIDVal.(int64); ok {
			return &userID
		}
	}
	return nil
}

// currentUser returns the authenticated user id, writing a 401 when there is none.
func currentUser(c *gin.Context) (int64, bool) {
	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
		return 0, false
	}
	return *userID, true
}

func parseIDParam(c *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+label)
		return 0, false
	}
	return id, true
}

type auditor struct {
	audit telemetry.Auditor
}

func (a auditor) emitAudit(ctx context.Context, level, text, requestID string, userID *int64) {
	if a.audit == nil {
		return
	}
	a.audit.EmitAudit(ctx, level, text, requestID, userID)
}

// auditOutcome records the result of a mutation: INFO with success on nil,
// ERROR with the error text otherwise.
func (a auditor) auditOutcome(c *gin.Context, success string, err error) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)
	if err != nil {
		a.emitAudit(c.Request.Context(), telemetry.LevelError, err.Error(), requestID, userID)
		return
	}
	a.emitAudit(c.Request.Context(), telemetry.LevelInfo, success, requestID, userID)
}
