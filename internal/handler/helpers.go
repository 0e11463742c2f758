package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/middleware"
	"github.com/xxxsen/notebook/internal/pkg/errcode"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
	"github.com/xxxsen/notebook/internal/pkg/response"
	"github.com/xxxsen/notebook/internal/service"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

// classify maps a service error to an error code, the http status used by
// non enveloped responses and the message shown to the caller.
func classify(err error) (int, int, string) {
	var providerErr *ai.ProviderError
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, http.StatusNotFound, err.Error()
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, http.StatusBadRequest, err.Error()
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized, http.StatusUnauthorized, err.Error()
	case errors.Is(err, appErr.ErrForbidden):
		return errcode.ErrForbidden, http.StatusForbidden, err.Error()
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, http.StatusTooManyRequests, err.Error()
	case errors.Is(err, ai.ErrNotConfigured), errors.Is(err, ai.ErrUnavailable):
		return errcode.ErrAIUnavailable, http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, service.ErrEmbeddingFailed):
		return errcode.ErrEmbeddingFailed, http.StatusInternalServerError, "Failed to process question"
	case errors.As(err, &providerErr):
		return errcode.ErrProvider, http.StatusBadGateway, err.Error()
	case errors.Is(err, service.ErrEmptyScript):
		return errcode.ErrInternal, http.StatusInternalServerError, err.Error()
	default:
		return errcode.ErrInternal, http.StatusInternalServerError, "internal error"
	}
}

func logError(c *gin.Context, err error) {
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logError(c, err)
	code, _, msg := classify(err)
	response.Error(c, code, msg)
}

// handleRawError is handleError for endpoints whose success body is not the
// json envelope.
func handleRawError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logError(c, err)
	code, status, msg := classify(err)
	response.Raw(c, status, code, msg)
}

func badRequest(c *gin.Context, msg string) {
	response.Error(c, errcode.ErrInvalid, msg)
}

func queryInt(c *gin.Context, key string, def int) int {
	value := c.Query(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	value := c.Query(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func queryBool(c *gin.Context, key string) bool {
	parsed, _ := strconv.ParseBool(c.Query(key))
	return parsed
}

func writeAudio(c *gin.Context, data []byte, filename string) {
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "audio/wav", data)
}
