package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/nixai/internal/ai"
	"github.com/xxxsen/nixai/internal/index"
	"github.com/xxxsen/nixai/internal/loader"
	"github.com/xxxsen/nixai/internal/middleware"
	"github.com/xxxsen/nixai/internal/pkg/errcode"
	appErr "github.com/xxxsen/nixai/internal/pkg/errors"
	"github.com/xxxsen/nixai/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	var genErr *ai.GenerationError
	var loadErr *loader.LoadError
	switch {
	case errors.As(err, &genErr):
		switch genErr.Kind {
		case ai.KindAuth:
			response.Error(c, errcode.ErrGenerationAuth, "")
		case ai.KindConnectivity:
			response.Error(c, errcode.ErrGenerationConnectivity, "")
		default:
			response.Error(c, errcode.ErrGenerationFailed, "")
		}
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "")
	case errors.As(err, &loadErr), errors.Is(err, appErr.ErrUnsupportedFile):
		response.Error(c, errcode.ErrInvalidFile, "")
	case errors.Is(err, index.ErrInvalidTenant):
		response.Error(c, errcode.ErrInvalidTenant, "")
	case errors.Is(err, appErr.ErrTooLarge):
		response.Error(c, errcode.ErrFileTooLarge, "")
	case errors.Is(err, appErr.ErrBusy):
		response.Error(c, errcode.ErrIngestBusy, "")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "")
	default:
		response.Error(c, errcode.ErrInternal, "")
	}
}
