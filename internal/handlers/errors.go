package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"predictsol/internal/settlement"
)

// statusFor maps an engine rejection to its HTTP status
func statusFor(err error) int {
	switch settlement.KindOf(err) {
	case settlement.KindValidation:
		return http.StatusBadRequest
	case settlement.KindAuthorization:
		return http.StatusForbidden
	case settlement.KindNotFound:
		return http.StatusNotFound
	case settlement.KindState, settlement.KindCustody:
		return http.StatusConflict
	case settlement.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Warn("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  settlement.CodeOf(err),
	})
}
