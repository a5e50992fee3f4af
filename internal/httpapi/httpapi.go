package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"notakasir/backend/internal/catalog"
	"notakasir/backend/internal/domain"
	"notakasir/backend/internal/obs"
	"notakasir/backend/internal/service"
	"notakasir/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	log           zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger zerolog.Logger) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		log:           logger,
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(obs.RequestID)
	r.Use(obs.RequestLogger{Logger: a.log}.Middleware)
	r.Use(a.securityHeaders)

	r.Get("/healthz", a.handleHealth)
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth("cashier", "admin"))

		r.Get("/api/v1/catalog", a.handleCatalog)
		r.Get("/api/v1/bills/number", a.handleNewBillNumber)
		r.Post("/api/v1/bills/quote", a.handleQuote)
		r.Post("/api/v1/bills", a.handleSaveBill)
		r.Get("/api/v1/bills/recent", a.handleRecentBills)
		r.Get("/api/v1/bills/{billNo}", a.handleGetBill)
		r.Get("/api/v1/bills/{billNo}/invoice", a.handleInvoice)
	})

	return r
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeError(w, a.log, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}

			token := strings.TrimSpace(authorization[len("Bearer "):])
			actor, err := a.auth.ParseToken(token)
			if err != nil {
				writeError(w, a.log, http.StatusUnauthorized, err)
				return
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, a.log, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, a.log, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.log, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, a.log, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": a.service.Catalog()})
}

func (a *API) handleNewBillNumber(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"bill_no": a.service.NewBillNumber()})
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.log, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Quote(req)
	if err != nil {
		writeError(w, a.log, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSaveBill(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveBillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.log, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.SaveBill(r.Context(), req)
	if err != nil {
		writeError(w, a.log, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	billNo := strings.TrimSpace(chi.URLParam(r, "billNo"))
	if billNo == "" {
		writeError(w, a.log, http.StatusBadRequest, errors.New("bill number required"))
		return
	}

	view, err := a.service.GetBill(r.Context(), billNo)
	if err != nil {
		writeError(w, a.log, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	billNo := strings.TrimSpace(chi.URLParam(r, "billNo"))
	if billNo == "" {
		writeError(w, a.log, http.StatusBadRequest, errors.New("bill number required"))
		return
	}

	doc, err := a.service.RenderInvoice(r.Context(), billNo)
	if err != nil {
		writeError(w, a.log, statusForError(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc.Text))
}

func (a *API) handleRecentBills(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), store.DefaultHistoryLimit, 200)

	bills, err := a.service.ListRecentBills(r.Context(), limit)
	if err != nil {
		writeError(w, a.log, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrUnknownCode),
		errors.Is(err, store.ErrInvalidBill):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateBillNumber):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, status int, err error) {
	// 5xx details stay in the log so SQL errors and file paths never reach
	// the client. 4xx messages are user-facing and pass through.
	msg := err.Error()
	if status >= 500 {
		logger.Error().Err(err).Int("status", status).Msg("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
