package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/aman-zulfiqar/minidex/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Service        *service.Service // Pool operations
	DevMode        bool             // Enable detailed error responses and dev-only routes
	RequestTimeout time.Duration    // Per-request deadline for service calls
	Logger         *logrus.Logger   // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail maps a service error to a response. Pool errors always carry their
// numeric code; server errors hide the cause outside dev mode.
func (h *Handlers) fail(c echo.Context, err error, msg string) error {
	status := statusFor(err)
	details := map[string]any{}
	if code, ok := amm.Code(err); ok {
		details["error_code"] = code
	}
	if h.DevMode {
		details["err"] = err.Error()
	}

	resp := ErrorResponse{Error: msg, Code: status}
	if status < http.StatusInternalServerError {
		resp.Error = err.Error()
	} else if h.Logger != nil {
		h.Logger.WithError(err).WithField("path", c.Path()).Error(msg)
	}
	if len(details) > 0 {
		resp.Details = details
	}
	return c.JSON(status, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func parseUintQuery(c echo.Context, name string, def uint64) (uint64, bool) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return def, true
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true, ProgramID: h.Service.ProgramID().String()})
}

// ListPools returns every known pool
func (h *Handlers) ListPools(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	items, err := h.Service.List(ctx)
	if err != nil {
		return h.fail(c, err, "failed to list pools")
	}
	if items == nil {
		items = []*pool.Record{}
	}
	return c.JSON(http.StatusOK, PoolsResponse{Items: items})
}

// CreatePool initializes the pool for the ordered pair in the body
// Returns 409 when the pool already exists
func (h *Handlers) CreatePool(c echo.Context) error {
	var req CreatePoolRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	assetA, err := pool.ParseAsset(req.AssetA)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asset_a", map[string]any{"asset_a": "must be a base58 mint or known symbol"})
	}
	assetB, err := pool.ParseAsset(req.AssetB)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asset_b", map[string]any{"asset_b": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	rec, err := h.Service.CreatePool(ctx, assetA, assetB, req.FeeBps)
	if err != nil {
		return h.fail(c, err, "failed to create pool")
	}
	return c.JSON(http.StatusCreated, rec)
}

// GetPool returns one pool record by address
func (h *Handlers) GetPool(c echo.Context) error {
	addr, err := pool.ParseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	rec, err := h.Service.Get(ctx, addr)
	if err != nil {
		return h.fail(c, err, "failed to get pool")
	}
	return c.JSON(http.StatusOK, rec)
}

// Quote prices a swap without executing it
// Query: amount_in (required), direction (default a_to_b), slippage_bps (default 50)
func (h *Handlers) Quote(c echo.Context) error {
	addr, err := pool.ParseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a base58 public key"})
	}
	if strings.TrimSpace(c.QueryParam("amount_in")) == "" {
		return h.err(c, http.StatusBadRequest, "invalid amount_in", map[string]any{"amount_in": "required"})
	}
	amountIn, ok := parseUintQuery(c, "amount_in", 0)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid amount_in", map[string]any{"amount_in": "must be uint64"})
	}
	slippage, ok := parseUintQuery(c, "slippage_bps", 50)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid slippage_bps", map[string]any{"slippage_bps": "must be uint64"})
	}
	dir := pool.AToB
	if v := c.QueryParam("direction"); v != "" {
		if dir, err = pool.ParseDirection(v); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "a_to_b or b_to_a"})
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	q, err := h.Service.Quote(ctx, addr, amountIn, dir, slippage)
	if err != nil {
		return h.fail(c, err, "failed to quote")
	}
	return c.JSON(http.StatusOK, q)
}

// AddLiquidity deposits both assets into the pool
func (h *Handlers) AddLiquidity(c echo.Context) error {
	addr, err := pool.ParseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a base58 public key"})
	}
	var req AddLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, err := pool.ParseKey(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	receipt, err := h.Service.AddLiquidity(ctx, addr, pool.AddLiquidityRequest{
		Owner:     owner,
		AmountA:   req.AmountA,
		AmountB:   req.AmountB,
		MinShares: req.MinShares,
	})
	if err != nil {
		return h.fail(c, err, "failed to add liquidity")
	}
	return c.JSON(http.StatusOK, receipt)
}

// Swap trades against the pool
func (h *Handlers) Swap(c echo.Context) error {
	addr, err := pool.ParseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a base58 public key"})
	}
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, err := pool.ParseKey(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": "must be a base58 public key"})
	}
	dir := pool.AToB
	if req.Direction != "" {
		if dir, err = pool.ParseDirection(req.Direction); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "a_to_b or b_to_a"})
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	receipt, err := h.Service.Swap(ctx, addr, pool.SwapRequest{
		Owner:        owner,
		AmountIn:     req.AmountIn,
		MinAmountOut: req.MinAmountOut,
		Direction:    dir,
	})
	if err != nil {
		return h.fail(c, err, "failed to swap")
	}
	return c.JSON(http.StatusOK, receipt)
}

// RemoveLiquidity burns shares and returns the owner's cut of both reserves
func (h *Handlers) RemoveLiquidity(c echo.Context) error {
	addr, err := pool.ParseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a base58 public key"})
	}
	var req RemoveLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, err := pool.ParseKey(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	receipt, err := h.Service.RemoveLiquidity(ctx, addr, pool.RemoveLiquidityRequest{
		Owner:      owner,
		Shares:     req.Shares,
		MinAmountA: req.MinAmountA,
		MinAmountB: req.MinAmountB,
	})
	if err != nil {
		return h.fail(c, err, "failed to remove liquidity")
	}
	return c.JSON(http.StatusOK, receipt)
}

// Position reports an owner's shares in a pool and what they redeem for
func (h *Handlers) Position(c echo.Context) error {
	addr, err := pool.ParseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a base58 public key"})
	}
	owner, err := pool.ParseKey(c.Param("owner"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	pos, err := h.Service.Position(ctx, addr, owner)
	if err != nil {
		return h.fail(c, err, "failed to get position")
	}
	return c.JSON(http.StatusOK, pos)
}

// Balance returns the custodian balance of owner in asset
func (h *Handlers) Balance(c echo.Context) error {
	owner, err := pool.ParseKey(c.Param("owner"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": "must be a base58 public key"})
	}
	asset, err := pool.ParseAsset(c.Param("asset"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asset", map[string]any{"asset": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	bal, err := h.Service.Balance(ctx, owner, asset)
	if err != nil {
		return h.fail(c, err, "failed to get balance")
	}
	return c.JSON(http.StatusOK, BalanceResponse{Owner: owner.String(), Asset: asset.String(), Balance: bal})
}

// Fund credits an account in development setups
func (h *Handlers) Fund(c echo.Context) error {
	var req FundRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, err := pool.ParseKey(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": "must be a base58 public key"})
	}
	asset, err := pool.ParseAsset(req.Asset)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asset", map[string]any{"asset": "must be a base58 public key"})
	}
	if req.Amount == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be > 0"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.RequestTimeout)
	defer cancel()

	bal, err := h.Service.Fund(ctx, owner, asset, req.Amount)
	if err != nil {
		return h.fail(c, err, "failed to fund account")
	}
	return c.JSON(http.StatusOK, BalanceResponse{Owner: owner.String(), Asset: asset.String(), Balance: bal})
}
