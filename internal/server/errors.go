package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/custody"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/aman-zulfiqar/minidex/internal/service"
	"github.com/aman-zulfiqar/minidex/internal/store"
	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, etc.)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	if amm.IsPoolError(err) {
		switch {
		case errors.Is(err, amm.ErrSlippageExceeded):
			return http.StatusConflict
		case errors.Is(err, amm.ErrInvalidTokenMints):
			return http.StatusBadRequest
		default:
			return http.StatusUnprocessableEntity
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrPoolExists),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, service.ErrRiskRejected),
		errors.Is(err, custody.ErrUnknownAccount),
		errors.Is(err, custody.ErrAlreadyProvisioned),
		errors.Is(err, service.ErrCustodyMismatch):
		return http.StatusConflict
	case errors.Is(err, custody.ErrInsufficientFunds),
		errors.Is(err, custody.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, custody.ErrUnauthorized),
		errors.Is(err, pool.ErrAuthorityMismatch):
		return http.StatusForbidden
	case errors.Is(err, custody.ErrInvalidInstruction),
		errors.Is(err, custody.ErrAssetMismatch),
		errors.Is(err, pool.ErrInvalidDirection):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFundingUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
