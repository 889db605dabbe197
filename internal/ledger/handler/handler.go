// Package handler exposes the ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/replay"
	"twubi/internal/ledger/service"
	"twubi/internal/ledger/wad"
	dErrors "twubi/pkg/domain-errors"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/httputil"
	adminmw "twubi/pkg/platform/middleware/admin"
	authmw "twubi/pkg/platform/middleware/auth"
	"twubi/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/ledger-mocks.go -package=mocks Service

// Service defines the ledger operations the HTTP layer calls.
type Service interface {
	CurrentEpoch(ctx context.Context) int64
	GetRateIndex(ctx context.Context, region models.RegionID) (*models.RateIndex, error)
	GetOrInitRateIndex(ctx context.Context, region models.RegionID) (*models.RateIndex, error)
	ClaimUBI(ctx context.Context, wallet string) (*models.UBIClaim, error)
	RequestConversion(ctx context.Context, wallet string, req service.ConversionRequest) (*models.PendingConversion, error)
	ClaimConversion(ctx context.Context, wallet string, id models.ConversionID) (*models.ConversionClaim, error)
	ListConversions(ctx context.Context, wallet string) ([]*models.PendingConversion, error)
	Balances(ctx context.Context, wallet string) (*models.Balances, error)
	RegisterPerson(ctx context.Context, req service.RegisterRequest) (*models.Person, error)
	RotateWallet(ctx context.Context, personID, wallet string) (*models.Person, error)
	SubmitOracle(ctx context.Context, sub service.OracleSubmission) (*models.OracleSignal, error)
	FundTreasury(ctx context.Context, amount wad.Amount) (wad.Amount, error)
	OracleSignal(ctx context.Context, region models.RegionID) (*models.OracleSignal, error)
	Events(ctx context.Context, afterID int64, limit int) ([]audit.Event, error)
	ExportState(ctx context.Context) (*replay.Export, error)
}

// Handler wires ledger endpoints to the ledger service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
	adminToken   string
}

// New constructs a ledger handler. Wallet routes authenticate with
// jwtValidator; operator routes require adminToken.
func New(service Service, logger *slog.Logger, jwtValidator authmw.JWTValidator, adminToken string) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
		adminToken:   adminToken,
	}
}

// Register mounts ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/rate-index/{region}", h.HandleGetRateIndex)
	r.Get("/api/oracle/{region}", h.HandleGetOracleSignal)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/api/ubi/claim", h.HandleClaimUBI)
		r.Post("/api/conversions", h.HandleRequestConversion)
		r.Get("/api/conversions/pending", h.HandleListConversions)
		r.Post("/api/conversions/{id}/claim", h.HandleClaimConversion)
		r.Get("/api/balances", h.HandleBalances)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/api/users/register", h.HandleRegister)
		r.Post("/api/oracle/submit", h.HandleSubmitOracle)
		r.Post("/api/admin/treasury/fund", h.HandleFundTreasury)
		r.Post("/api/admin/wallets/rotate", h.HandleRotateWallet)
		r.Post("/api/admin/rate-index/{region}", h.HandleInitRateIndex)
		r.Get("/api/admin/events", h.HandleListEvents)
		r.Get("/api/admin/export-state", h.HandleExportState)
	})
}

func parseRegion(r *http.Request) (models.RegionID, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, "region"), 10, 64)
	if err != nil {
		return 0, models.InvalidRequest("region", "must be an integer")
	}
	return models.RegionID(v), nil
}

// callerWallet returns the authenticated wallet or writes a 401.
func (h *Handler) callerWallet(w http.ResponseWriter, ctx context.Context) (string, bool) {
	wallet := requestcontext.Wallet(ctx)
	if wallet == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return wallet, true
}

// fail logs a service error at a level matching its class and writes it.
func (h *Handler) fail(w http.ResponseWriter, ctx context.Context, op string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"error", err,
	}
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "ledger operation failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "ledger operation rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

// HandleGetRateIndex handles GET /api/rate-index/{region}.
func (h *Handler) HandleGetRateIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	region, err := parseRegion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ri, err := h.service.GetRateIndex(ctx, region)
	if err != nil {
		h.fail(w, ctx, "get_rate_index", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RateIndexResponse{RateIndex: ri, Epoch: h.service.CurrentEpoch(ctx)})
}

// HandleGetOracleSignal handles GET /api/oracle/{region}.
func (h *Handler) HandleGetOracleSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	region, err := parseRegion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	signal, err := h.service.OracleSignal(ctx, region)
	if err != nil {
		h.fail(w, ctx, "oracle_signal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, signal)
}

// HandleInitRateIndex handles POST /api/admin/rate-index/{region}.
func (h *Handler) HandleInitRateIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	region, err := parseRegion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ri, err := h.service.GetOrInitRateIndex(ctx, region)
	if err != nil {
		h.fail(w, ctx, "get_or_init_rate_index", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RateIndexResponse{RateIndex: ri, Epoch: h.service.CurrentEpoch(ctx)})
}

// HandleClaimUBI handles POST /api/ubi/claim.
func (h *Handler) HandleClaimUBI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := h.callerWallet(w, ctx)
	if !ok {
		return
	}
	claim, err := h.service.ClaimUBI(ctx, wallet)
	if err != nil {
		h.fail(w, ctx, "claim_ubi", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleRequestConversion handles POST /api/conversions.
func (h *Handler) HandleRequestConversion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := h.callerWallet(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConversionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	conversion, err := h.service.RequestConversion(ctx, wallet, req.parsed)
	if err != nil {
		h.fail(w, ctx, "request_conversion", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, conversion)
}

// HandleClaimConversion handles POST /api/conversions/{id}/claim.
func (h *Handler) HandleClaimConversion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := h.callerWallet(w, ctx)
	if !ok {
		return
	}
	id, err := models.ParseConversionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := h.service.ClaimConversion(ctx, wallet, id)
	if err != nil {
		h.fail(w, ctx, "claim_conversion", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleListConversions handles GET /api/conversions/pending.
func (h *Handler) HandleListConversions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := h.callerWallet(w, ctx)
	if !ok {
		return
	}
	conversions, err := h.service.ListConversions(ctx, wallet)
	if err != nil {
		h.fail(w, ctx, "list_conversions", err)
		return
	}
	if conversions == nil {
		conversions = []*models.PendingConversion{}
	}
	httputil.WriteJSON(w, http.StatusOK, ConversionsResponse{Conversions: conversions})
}

// HandleBalances handles GET /api/balances.
func (h *Handler) HandleBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := h.callerWallet(w, ctx)
	if !ok {
		return
	}
	balances, err := h.service.Balances(ctx, wallet)
	if err != nil {
		h.fail(w, ctx, "balances", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balances)
}

// HandleRegister handles POST /api/users/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	person, err := h.service.RegisterPerson(ctx, req.toService())
	if err != nil {
		h.fail(w, ctx, "register_person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, person)
}

// HandleRotateWallet handles POST /api/admin/wallets/rotate.
func (h *Handler) HandleRotateWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RotateWalletRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	person, err := h.service.RotateWallet(ctx, req.PersonID, req.NewWallet)
	if err != nil {
		h.fail(w, ctx, "rotate_wallet", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

// HandleSubmitOracle handles POST /api/oracle/submit.
func (h *Handler) HandleSubmitOracle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[OracleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	signal, err := h.service.SubmitOracle(ctx, req.parsed)
	if err != nil {
		h.fail(w, ctx, "submit_oracle", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, signal)
}

// HandleFundTreasury handles POST /api/admin/treasury/fund.
func (h *Handler) HandleFundTreasury(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FundTreasuryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	balance, err := h.service.FundTreasury(ctx, req.parsed)
	if err != nil {
		h.fail(w, ctx, "fund_treasury", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TreasuryResponse{BalanceBU: balance})
}

// HandleListEvents handles GET /api/admin/events?after=&limit=.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var after int64
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, models.InvalidRequest("after", "must be an integer"))
			return
		}
		after = v
	}
	var limit int
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, models.InvalidRequest("limit", "must be an integer"))
			return
		}
		limit = v
	}

	events, err := h.service.Events(ctx, after, limit)
	if err != nil {
		h.fail(w, ctx, "events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventsResponse(events, after))
}

// HandleExportState handles GET /api/admin/export-state.
func (h *Handler) HandleExportState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	export, err := h.service.ExportState(ctx)
	if err != nil {
		h.fail(w, ctx, "export_state", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, export)
}
