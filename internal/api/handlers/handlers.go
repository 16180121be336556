package handlers

import (
	"context"
	"errors"

	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/apms-ops/apms-backend-go/internal/core/refs"
	"github.com/apms-ops/apms-backend-go/internal/core/views"
	apperrors "github.com/apms-ops/apms-backend-go/pkg/errors"
	"github.com/apms-ops/apms-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	cfg       *config.Config
	analytics *analytics.Service
	views     *views.Service
	refs      *refs.Service
	logger    *logrus.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(cfg *config.Config, analyticsSvc *analytics.Service, viewsSvc *views.Service, refsSvc *refs.Service, logger *logrus.Logger) *Handlers {
	return &Handlers{
		cfg:       cfg,
		analytics: analyticsSvc,
		views:     viewsSvc,
		refs:      refsSvc,
		logger:    logger,
	}
}

// respondQueryError maps domain errors onto HTTP statuses: rejected
// specs are the client's fault, store timeouts and failures are
// upstream conditions the caller may retry.
func (h *Handlers) respondQueryError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Code >= 500 {
		h.logger.WithError(err).Error("query failed")
	}
	if appErr.Details != "" {
		utils.SendErrorWithDetails(c, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	utils.SendError(c, appErr.Code, appErr.Message)
}

// NotFound is the fallback for unmatched routes.
func (h *Handlers) NotFound(c *gin.Context) {
	utils.SendError(c, apperrors.ErrNotFound.Code, apperrors.ErrNotFound.Message)
}

func toAppError(err error) *apperrors.AppError {
	switch {
	case analytics.IsInvalidSpec(err):
		return apperrors.New(apperrors.ErrBadRequest.Code, err.Error())
	case analytics.IsExecutionError(err):
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.WithDetails(apperrors.ErrGatewayTimeout, "query timed out")
		}
		return apperrors.WithDetails(apperrors.ErrBadGateway, "query execution failed")
	default:
		return apperrors.ErrInternalServer
	}
}
