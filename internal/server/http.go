// Package server exposes the engine over a JSON HTTP API. Mutating
// endpoints take the acting account in the request body; guardian endpoints
// additionally require the shared guardian token.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"RainLedger/internal/engine"
	"RainLedger/internal/funds"
	"RainLedger/internal/observability"
	"RainLedger/internal/option"
	"RainLedger/internal/query"
	"RainLedger/internal/reinsurance"
	"RainLedger/internal/vault"
)

const guardianTokenHeader = "X-Guardian-Token"

type Config struct {
	Addr          string
	GuardianToken string
}

type Server struct {
	cfg     Config
	engine  *engine.Engine
	query   *query.Service
	cache   *ViewCache
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
	http    *http.Server
}

// New wires the router. query and cache may be nil; the history endpoints
// return 503 without a query service and reads skip the cache.
func New(cfg Config, eng *engine.Engine, qs *query.Service, cache *ViewCache,
	health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {

	s := &Server{
		cfg:     cfg,
		engine:  eng,
		query:   qs,
		cache:   cache,
		health:  health,
		metrics: metrics,
		log:     log.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.instrument)

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts/{account}/credit", s.handleCredit)
		r.Post("/accounts/{account}/debit", s.handleDebit)
		r.Get("/accounts/{account}", s.handleBalance)

		r.Post("/quotes", s.handleRequestQuote)
		r.Get("/quotes/{handle}", s.handleQuoteStatus)

		r.Post("/options", s.handleCreateOption)
		r.Get("/options/active", s.handleActiveOptions)
		r.Get("/options/{id}", s.handleOption)
		r.Get("/options/{id}/simulate", s.handleSimulatePayout)
		r.Post("/options/{id}/settlement-requests", s.handleRequestSettlement)
		r.Post("/options/{id}/settlements", s.handleSettle)
		r.Post("/options/{id}/claims", s.handleClaimPayout)
		r.Post("/options/{id}/transfers", s.handleTransferCertificate)

		r.Get("/vault", s.handleVaultStats)
		r.Post("/vault/deposits", s.handleVaultDeposit)
		r.Post("/vault/withdrawals", s.handleVaultWithdraw)
		r.Get("/vault/positions/{account}", s.handleVaultPosition)

		r.Get("/reinsurance", s.handleReinsuranceStats)
		r.Post("/reinsurance/deposits", s.handleReinsuranceDeposit)
		r.Post("/reinsurance/withdrawals", s.handleReinsuranceWithdraw)
		r.Post("/reinsurance/transfers", s.handleReinsuranceTransfer)
		r.Post("/reinsurance/yield-claims", s.handleClaimYield)
		r.Get("/reinsurance/positions/{account}", s.handleReinsurancePosition)
		r.Get("/reinsurance/draws", s.handleDrawHistory)

		r.Route("/guardian", func(r chi.Router) {
			r.Use(s.requireGuardian)
			r.Post("/limits", s.handleSetLimits)
			r.Post("/draws", s.handleFundVault)
			r.Post("/fees/withdrawals", s.handleWithdrawFees)
			r.Get("/fees", s.handleFeeRevenue)
			r.Get("/invariants", s.handleInvariants)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/options", s.handleHistoryOptions)
			r.Get("/records", s.handleHistoryRecords)
		})
	})

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

// --- middleware ---

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.metrics == nil {
			return
		}
		endpoint := r.Method + " " + routePattern(r)
		s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func (s *Server) requireGuardian(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(guardianTokenHeader)
		if s.cfg.GuardianToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.GuardianToken)) != 1 {
			s.writeError(w, r, http.StatusForbidden, errors.New("guardian token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- account handlers ---

type amountRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	account := funds.Account(chi.URLParam(r, "account"))
	if err := s.engine.CreditAccount(account, req.Amount); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyVault)
	s.writeJSON(w, http.StatusOK, map[string]int64{"balance": s.engine.Balance(account)})
}

func (s *Server) handleDebit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	account := funds.Account(chi.URLParam(r, "account"))
	if err := s.engine.DebitAccount(account, req.Amount); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"balance": s.engine.Balance(account)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := funds.Account(chi.URLParam(r, "account"))
	s.writeJSON(w, http.StatusOK, map[string]int64{"balance": s.engine.Balance(account)})
}

// --- quote and option handlers ---

type quoteRequest struct {
	Requester     string    `json:"requester"`
	Direction     string    `json:"direction"`
	Latitude      string    `json:"latitude"`
	Longitude     string    `json:"longitude"`
	Start         time.Time `json:"start"`
	Expiry        time.Time `json:"expiry"`
	StrikeMM      int64     `json:"strike_mm"`
	SpreadMM      int64     `json:"spread_mm"`
	NotionalPerMM int64     `json:"notional_per_mm"`
}

func (s *Server) handleRequestQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	dir, err := option.ParseDirection(req.Direction)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("direction must be above_strike or below_strike"))
		return
	}
	handle, err := s.engine.RequestQuote(funds.Account(req.Requester), dir,
		req.Latitude, req.Longitude, req.Start, req.Expiry,
		req.StrikeMM, req.SpreadMM, req.NotionalPerMM)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"handle": handle.String()})
}

func (s *Server) handleQuoteStatus(w http.ResponseWriter, r *http.Request) {
	handle, err := uuid.Parse(chi.URLParam(r, "handle"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid quote handle"))
		return
	}
	premium, fulfilled, err := s.engine.QuoteStatus(handle)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"handle":    handle.String(),
		"fulfilled": fulfilled,
		"premium":   premium,
	})
}

type createOptionRequest struct {
	Caller string `json:"caller"`
	Handle string `json:"handle"`
	Paid   int64  `json:"paid"`
}

func (s *Server) handleCreateOption(w http.ResponseWriter, r *http.Request) {
	var req createOptionRequest
	if !s.decode(w, r, &req) {
		return
	}
	handle, err := uuid.Parse(req.Handle)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid quote handle"))
		return
	}
	id, err := s.engine.CreateFromQuote(funds.Account(req.Caller), handle, req.Paid)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyVault)
	s.writeJSON(w, http.StatusCreated, map[string]int64{"option_id": id})
}

func (s *Server) handleOption(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	key := cacheKeyOption(id)
	if data, hit := s.cache.Get(r.Context(), "option", key); hit {
		s.writeRaw(w, http.StatusOK, data)
		return
	}
	view, err := s.engine.Option(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.cache.Set(r.Context(), key, data)
	s.writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleActiveOptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.ActiveOptions())
}

func (s *Server) handleSimulatePayout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	measured, err := strconv.ParseInt(r.URL.Query().Get("measured_mm"), 10, 64)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("measured_mm query parameter required"))
		return
	}
	payout, err := s.engine.SimulatePayout(id, measured)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"measured_mm": measured, "payout": payout})
}

func (s *Server) handleRequestSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	handle, err := s.engine.RequestSettlement(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyOption(id))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"oracle_handle": handle.String()})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	payout, err := s.engine.Settle(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyOption(id), cacheKeyVault)
	s.writeJSON(w, http.StatusOK, map[string]int64{"payout": payout})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleClaimPayout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	payout, err := s.engine.ClaimPayout(funds.Account(req.Caller), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyOption(id))
	s.writeJSON(w, http.StatusOK, map[string]int64{"payout": payout})
}

type transferRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

func (s *Server) handleTransferCertificate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.TransferCertificate(funds.Account(req.Caller), funds.Account(req.To), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyOption(id))
	w.WriteHeader(http.StatusNoContent)
}

// --- vault handlers ---

type depositRequest struct {
	Depositor string `json:"depositor"`
	Assets    int64  `json:"assets"`
}

type withdrawRequest struct {
	Depositor string `json:"depositor"`
	Shares    int64  `json:"shares"`
}

func (s *Server) handleVaultStats(w http.ResponseWriter, r *http.Request) {
	if data, hit := s.cache.Get(r.Context(), "vault_stats", cacheKeyVault); hit {
		s.writeRaw(w, http.StatusOK, data)
		return
	}
	stats := s.engine.VaultStats()
	data, err := json.Marshal(stats)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.cache.Set(r.Context(), cacheKeyVault, data)
	s.writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decode(w, r, &req) {
		return
	}
	shares, err := s.engine.VaultDeposit(funds.Account(req.Depositor), req.Assets)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyVault)
	s.writeJSON(w, http.StatusOK, map[string]int64{"shares": shares})
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	assets, err := s.engine.VaultWithdraw(funds.Account(req.Depositor), req.Shares)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyVault)
	s.writeJSON(w, http.StatusOK, map[string]int64{"assets": assets})
}

func (s *Server) handleVaultPosition(w http.ResponseWriter, r *http.Request) {
	account := funds.Account(chi.URLParam(r, "account"))
	s.writeJSON(w, http.StatusOK, map[string]int64{
		"shares":       s.engine.VaultShares(account),
		"max_withdraw": s.engine.VaultMaxWithdraw(account),
	})
}

// --- reinsurance handlers ---

func (s *Server) handleReinsuranceStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.ReinsuranceStats())
}

func (s *Server) handleReinsuranceDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decode(w, r, &req) {
		return
	}
	shares, err := s.engine.ReinsuranceDeposit(funds.Account(req.Depositor), req.Assets)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"shares": shares})
}

func (s *Server) handleReinsuranceWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	assets, err := s.engine.ReinsuranceWithdraw(funds.Account(req.Depositor), req.Shares)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"assets": assets})
}

type shareTransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Shares int64  `json:"shares"`
}

func (s *Server) handleReinsuranceTransfer(w http.ResponseWriter, r *http.Request) {
	var req shareTransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.ReinsuranceTransferShares(funds.Account(req.From), funds.Account(req.To), req.Shares); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClaimYield(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := s.engine.ClaimYield(funds.Account(req.Caller))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"yield": amount})
}

func (s *Server) handleReinsurancePosition(w http.ResponseWriter, r *http.Request) {
	account := funds.Account(chi.URLParam(r, "account"))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"shares":        s.engine.ReinsuranceShares(account),
		"lockup_expiry": s.engine.ReinsuranceLockup(account),
	})
}

func (s *Server) handleDrawHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.DrawHistory())
}

// --- guardian handlers ---

type limitsRequest struct {
	MaxUtilizationBps    int64 `json:"max_utilization_bps"`
	TargetUtilizationBps int64 `json:"target_utilization_bps"`
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.SetUtilizationLimits(req.MaxUtilizationBps, req.TargetUtilizationBps); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyVault)
	w.WriteHeader(http.StatusNoContent)
}

type fundVaultRequest struct {
	Requested int64  `json:"requested"`
	Trigger   string `json:"trigger"`
	Reason    string `json:"reason"`
}

func (s *Server) handleFundVault(w http.ResponseWriter, r *http.Request) {
	var req fundVaultRequest
	if !s.decode(w, r, &req) {
		return
	}
	transferred, err := s.engine.FundVaultFromReinsurance(req.Requested, req.Trigger, req.Reason)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.invalidate(r, cacheKeyVault)
	s.writeJSON(w, http.StatusOK, map[string]int64{"transferred": transferred})
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.WithdrawFees(req.Amount); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFeeRevenue(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int64{"fee_revenue": s.engine.FeeRevenue()})
}

func (s *Server) handleInvariants(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CheckInvariants(); err != nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"status": "violated", "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- history handlers ---

func (s *Server) handleHistoryOptions(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("history store not configured"))
		return
	}
	limit := queryLimit(r)
	q := r.URL.Query()
	var (
		rows []query.OptionRow
		err  error
	)
	switch {
	case q.Get("holder") != "":
		rows, err = s.query.OptionsByHolder(r.Context(), q.Get("holder"), limit)
	case q.Get("status") != "":
		rows, err = s.query.OptionsByStatus(r.Context(), q.Get("status"), limit)
	default:
		s.writeError(w, r, http.StatusBadRequest, errors.New("holder or status query parameter required"))
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistoryRecords(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("history store not configured"))
		return
	}
	rows, err := s.query.Records(r.Context(), r.URL.Query().Get("kind"), queryLimit(r))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// --- helpers ---

const cacheKeyVault = "rain:view:vault"

func cacheKeyOption(id int64) string {
	return "rain:view:option:" + strconv.FormatInt(id, 10)
}

func (s *Server) invalidate(r *http.Request, keys ...string) {
	s.cache.Invalidate(r.Context(), keys...)
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid option id"))
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeRaw(w, status, data)
}

func (s *Server) writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps ledger sentinels onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, option.ErrUnknownOption),
		errors.Is(err, option.ErrUnknownQuote):
		return http.StatusNotFound
	case errors.Is(err, option.ErrNotYourQuote),
		errors.Is(err, option.ErrNotBeneficiary),
		errors.Is(err, option.ErrNotCertificateHolder):
		return http.StatusForbidden
	case errors.Is(err, option.ErrInvalidTerms),
		errors.Is(err, option.ErrInvalidLocation),
		errors.Is(err, option.ErrNotionalBelowMin),
		errors.Is(err, option.ErrPremiumBelowMin),
		errors.Is(err, option.ErrInsufficientPayment),
		errors.Is(err, funds.ErrZeroAmount),
		errors.Is(err, funds.ErrSameAccount),
		errors.Is(err, vault.ErrZeroAmount),
		errors.Is(err, vault.ErrInvalidLimits),
		errors.Is(err, reinsurance.ErrZeroAmount):
		return http.StatusBadRequest
	case errors.Is(err, option.ErrQuoteNotFulfilled),
		errors.Is(err, option.ErrOracleNotFulfilled):
		return http.StatusAccepted
	case errors.Is(err, funds.ErrInsufficientBalance),
		errors.Is(err, option.ErrInsufficientFeeRevenue),
		errors.Is(err, vault.ErrInsufficientLiquidity),
		errors.Is(err, reinsurance.ErrInsufficientPoolLiquidity),
		errors.Is(err, reinsurance.ErrNoYieldAvailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, option.ErrQuoteExpired),
		errors.Is(err, option.ErrOptionNotExpired),
		errors.Is(err, option.ErrInvalidOptionStatus),
		errors.Is(err, option.ErrSettlementNotRequested),
		errors.Is(err, option.ErrNoPendingPayout),
		errors.Is(err, option.ErrTransferLocked),
		errors.Is(err, option.ErrVaultCannotUnderwrite),
		errors.Is(err, vault.ErrUtilizationTooHigh),
		errors.Is(err, vault.ErrLocationExposureTooHigh),
		errors.Is(err, reinsurance.ErrCapitalLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
