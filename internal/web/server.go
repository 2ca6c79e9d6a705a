package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/adaptive-vault/aev/internal/config"
	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/state"
	"github.com/adaptive-vault/aev/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// EngineView is the read-only surface the server exposes. Every snapshot is
// taken under the engine lock, so responses are internally consistent.
type EngineView interface {
	EpochSnapshot() types.Epoch
	TrancheSnapshot() types.TrancheState
	FeeSnapshot() types.FeeRates
	VolatilitySnapshot() types.VolatilityState
	ShieldSnapshot() (types.ShieldPoolState, []types.ShieldPolicy)
	TeleportSnapshot() (types.TeleportPoolState, []types.YieldNote)
	LadderSnapshot() []types.LadderRungSnapshot
	RecentSettlements(limit int) []types.SettlementSnapshot
}

// WebServer handles HTTP requests for vault state visualization
type WebServer struct {
	router *mux.Router
	port   string
	engine EngineView
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, engine EngineView) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		engine: engine,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/epoch", ws.handleGetEpoch).Methods("GET")
	api.HandleFunc("/tranches", ws.handleGetTranches).Methods("GET")
	api.HandleFunc("/fees", ws.handleGetFees).Methods("GET")
	api.HandleFunc("/volatility", ws.handleGetVolatility).Methods("GET")
	api.HandleFunc("/shield", ws.handleGetShield).Methods("GET")
	api.HandleFunc("/teleport", ws.handleGetTeleport).Methods("GET")
	api.HandleFunc("/ladder", ws.handleGetLadder).Methods("GET")
	api.HandleFunc("/settlements", ws.handleGetSettlements).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Router exposes the configured router, used by tests.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbConfigured := state.DB != nil
	dbHealthy := false
	if dbConfigured {
		dbHealthy = state.TestDBConnection() == nil
	}

	epoch := ws.engine.EpochSnapshot()

	overallStatus := "OK"
	if dbConfigured && !dbHealthy {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "aev-adaptive-epoch-vault",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_configured": dbConfigured,
			"database_healthy":    dbHealthy,
			"current_epoch":       epoch.Index,
			"epoch_state":         epoch.State,
			"epoch_ends":          epoch.EndTime,
		},
	}

	statusCode := http.StatusOK
	if overallStatus != "OK" {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetEpoch returns the current epoch record
func (ws *WebServer) handleGetEpoch(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.EpochSnapshot())
}

// handleGetTranches returns the main ledger balances
func (ws *WebServer) handleGetTranches(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.TrancheSnapshot())
}

// handleGetFees returns the fee schedule in force
func (ws *WebServer) handleGetFees(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.FeeSnapshot())
}

// handleGetVolatility returns the volatility monitor state
func (ws *WebServer) handleGetVolatility(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.VolatilitySnapshot())
}

// handleGetShield returns the shield pool state and its policies
func (ws *WebServer) handleGetShield(w http.ResponseWriter, r *http.Request) {
	poolState, policies := ws.engine.ShieldSnapshot()
	response := map[string]interface{}{
		"pool":     poolState,
		"policies": policies,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetTeleport returns the teleport pool state and its notes
func (ws *WebServer) handleGetTeleport(w http.ResponseWriter, r *http.Request) {
	poolState, notes := ws.engine.TeleportSnapshot()
	response := map[string]interface{}{
		"pool":  poolState,
		"notes": notes,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLadder returns the per-rung ladder views
func (ws *WebServer) handleGetLadder(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.LadderSnapshot())
}

// handleGetSettlements returns recent settlement snapshots, newest first from
// the database when one is configured, otherwise from the in-memory ring.
func (ws *WebServer) handleGetSettlements(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	var settlements []types.SettlementSnapshot
	if state.DB != nil {
		dbSettlements, err := state.GetRecentSettlements(limit)
		if err != nil {
			webLogger.Error().Err(err).Msg("Failed to get recent settlements")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve settlements")
			return
		}
		settlements = dbSettlements
	} else {
		settlements = ws.engine.RecentSettlements(limit)
	}

	response := map[string]interface{}{
		"settlements": settlements,
		"count":       len(settlements),
		"limit":       limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParameters returns the active engine parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	if state.DB == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No parameter store configured")
		return
	}

	params, err := state.LoadActiveEngineParameters(config.DefaultParamsName)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get engine parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve engine parameters")
		return
	}

	response := map[string]interface{}{
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
