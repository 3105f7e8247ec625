package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campusreg/enrollment-api/internal/middleware"
	"github.com/campusreg/enrollment-api/internal/models"
)

// requesterFromRequest resolves the caller identity: bearer claims first,
// explicit query fields as the fallback for internal callers.
func requesterFromRequest(c *gin.Context) models.Requester {
	if requester, ok := middleware.RequesterFromContext(c); ok {
		return requester
	}
	return models.Requester{
		ID:   c.Query("requesterId"),
		Role: c.Query("requesterRole"),
	}
}
