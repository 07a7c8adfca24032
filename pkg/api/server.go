package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/logger"
	"github.com/rmax-ai/restock/pkg/notify"
	"github.com/rmax-ai/restock/pkg/reports"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// InventoryService is the part of engine.Inventory the API needs.
type InventoryService interface {
	reports.ReportSource
	CreateItem(ctx context.Context, item engine.Item) (engine.Item, error)
	UpdateItem(ctx context.Context, id string, patch engine.ItemPatch) (engine.Item, error)
	RecordQuantity(ctx context.Context, id string, quantity float64) (engine.Item, error)
	DeleteItem(ctx context.Context, id string) error
	Forecast(ctx context.Context, id string) (engine.ItemPrediction, error)
	Alerts(ctx context.Context) ([]engine.Alert, error)
	Notifications(ctx context.Context) ([]notify.Notification, error)
	Summarize(ctx context.Context) (engine.Summary, error)
}

// Server encapsulates the HTTP API server
type Server struct {
	inventory InventoryService
	server    *http.Server
	log       *logger.Logger
	checkDays int

	// sha256 of the bearer token; empty disables auth
	tokenHash string

	// TLS Config
	tlsCertFile string
	tlsKeyFile  string
}

// NewServer creates a new API server instance
func NewServer(inv InventoryService, addr string) *Server {
	s := &Server{
		inventory: inv,
		log:       logger.Nop(),
		checkDays: 7,
	}

	// Use default port if addr is empty
	if addr == "" {
		addr = ":8090"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Handler builds the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/items", s.withAuth(s.handleItems))
	mux.HandleFunc("/v1/items/", s.withAuth(s.handleItem))
	mux.HandleFunc("/v1/shopping-list", s.withAuth(s.handleShoppingList))
	mux.HandleFunc("/v1/alerts", s.withAuth(s.handleAlerts))
	mux.HandleFunc("/v1/notifications", s.withAuth(s.handleNotifications))
	mux.HandleFunc("/v1/reports", s.withAuth(s.handleReports))
	mux.HandleFunc("/v1/summary", s.withAuth(s.handleSummary))

	// Middleware: Logging, Panic Recovery, Security Headers
	return s.withLogging(s.withRecovery(withSecureHeaders(mux)))
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(l *logger.Logger) {
	if l != nil {
		s.log = l
	}
}

// SetAuthToken requires every /v1 request except health to carry the token.
func (s *Server) SetAuthToken(token string) {
	if token == "" {
		s.tokenHash = ""
		return
	}
	s.tokenHash = hashToken(token)
}

// SetCheckThreshold sets the days used for needs_check in history responses.
func (s *Server) SetCheckThreshold(days int) {
	if days > 0 {
		s.checkDays = days
	}
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	// The handler captures settings applied after NewServer.
	s.server.Handler = s.Handler()

	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.log.Infow("server_starting_tls", "addr", s.server.Addr)
		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != http.ErrServerClosed {
			return err
		}
	} else {
		s.log.Infow("server_starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Infow("server_stopping")
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleItems lists or creates items.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.inventory.ListItems(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemListResponse{Items: items})

	case http.MethodPost:
		var item engine.Item
		if !s.decode(w, r, &item) {
			return
		}
		created, err := s.inventory.CreateItem(r.Context(), item)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

// handleItem serves /v1/items/{id} and its sub-resources.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/items/"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) > 2 {
		writeJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}

	id := parts[0]
	if len(parts) == 2 {
		switch parts[1] {
		case "prediction":
			s.handlePrediction(w, r, id)
		case "quantity":
			s.handleQuantity(w, r, id)
		case "history":
			s.handleHistory(w, r, id)
		default:
			writeJSONError(w, http.StatusNotFound, "not_found", "")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := s.inventory.GetItem(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut, http.MethodPatch:
		var patch engine.ItemPatch
		if !s.decode(w, r, &patch) {
			return
		}
		item, err := s.inventory.UpdateItem(r.Context(), id, patch)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if err := s.inventory.DeleteItem(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	pred, err := s.inventory.Forecast(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleQuantity(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	var req QuantityRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeJSONError(w, http.StatusBadRequest, "missing_required_fields", "quantity")
		return
	}
	item, err := s.inventory.RecordQuantity(r.Context(), id, *req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		s.streamReport(w, r, reports.ReportTypeHistory, reports.ReportParams{
			Filters: map[string]interface{}{"item_id": id},
		})
		return
	}

	item, err := s.inventory.GetItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h := item.History()
	writeJSON(w, http.StatusOK, HistoryResponse{
		ItemID:       item.ID,
		Observations: h,
		NeedsCheck:   h.NeedsCheckReminder(time.Now().UTC(), s.checkDays),
	})
}

func (s *Server) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		s.streamReport(w, r, reports.ReportTypeShoppingList, reports.ReportParams{})
		return
	}
	list, err := s.inventory.ShoppingList(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	alerts, err := s.inventory.Alerts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	out, err := s.inventory.Notifications(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	sum, err := s.inventory.Summarize(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleReports serves CSV reports selected by ?type=.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	q := r.URL.Query()
	reportType := reports.ReportType(q.Get("type"))
	if reportType == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_type", "")
		return
	}

	params := reports.ReportParams{Filters: make(map[string]interface{})}
	if id := q.Get("item_id"); id != "" {
		params.Filters["item_id"] = id
	}
	if c := q.Get("category"); c != "" {
		params.Filters["category"] = c
	}

	s.streamReport(w, r, reportType, params)
}

func (s *Server) streamReport(w http.ResponseWriter, r *http.Request, reportType reports.ReportType, params reports.ReportParams) {
	gen, err := reports.NewReportGenerator(reportType, s.inventory)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_report_type", err.Error())
		return
	}

	reader, err := gen.Generate(r.Context(), params)
	if err != nil {
		if errors.Is(err, reports.ErrMissingItem) {
			writeJSONError(w, http.StatusBadRequest, "missing_item_id", "")
			return
		}
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	filename := fmt.Sprintf("%s_%d.csv", reportType, time.Now().Unix())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if _, err := io.Copy(w, reader); err != nil {
		s.log.Errorw("failed_to_stream_report", "trace_id", getTraceID(r.Context()), "error", err)
	}
}

// decode reads a JSON body into v, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json_body", "")
		return false
	}
	return true
}

// writeError maps engine errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrItemNotFound):
		writeJSONError(w, http.StatusNotFound, "item_not_found", "")
	case errors.Is(err, engine.ErrInvalidItem):
		writeJSONError(w, http.StatusBadRequest, "invalid_item", err.Error())
	case errors.Is(err, engine.ErrItemExists):
		writeJSONError(w, http.StatusConflict, "item_exists", "")
	default:
		s.log.Errorw("request_failed", "trace_id", getTraceID(r.Context()), "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// Middleware: bearer token auth, active only when a token is configured
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash == "" {
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing_token")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid_token_format")
			return
		}

		hash := hashToken(parts[1])
		if subtle.ConstantTimeCompare([]byte(hash), []byte(s.tokenHash)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid_token")
			return
		}

		next(w, r)
	}
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Errorw("panic_recovered", "trace_id", getTraceID(r.Context()), "error", fmt.Sprint(err))
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Logging with trace IDs
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		// Wrap writer to capture status code
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		s.log.Infow("http_request",
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		next.ServeHTTP(w, r)
	})
}
