package api

import (
	"errors"
	"net/http"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrConflict, http.StatusConflict, "conflict"},
	{models.ErrLimitExceeded, http.StatusUnprocessableEntity, "limit_exceeded"},
	{models.ErrInvalidState, http.StatusUnprocessableEntity, "invalid_state"},
}

// respondError maps err onto its kind's status. Unknown errors are logged and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			c.JSON(k.status, gin.H{"error": k.code, "message": err.Error()})
			return
		}
	}

	util.GetLogger().Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal server error"})
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": "invalid_input", "message": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
