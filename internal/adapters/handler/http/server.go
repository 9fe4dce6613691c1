package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/ports"
	"agentmarket.ledger/internal/core/services"
)

type Server struct {
	router    *chi.Mux
	registry  *services.RegistryService
	hiring    *services.HiringService
	stats     *services.StatsService
	accounts  *services.AccountService
	healthSvc *services.HealthService
	feed      ports.HireFeed
	hub       *Hub
}

func NewServer(
	registry *services.RegistryService,
	hiring *services.HiringService,
	stats *services.StatsService,
	accounts *services.AccountService,
	healthSvc *services.HealthService,
	feed ports.HireFeed,
	hub *Hub,
) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		registry:  registry,
		hiring:    hiring,
		stats:     stats,
		accounts:  accounts,
		healthSvc: healthSvc,
		feed:      feed,
		hub:       hub,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware)
	s.router.Use(CallerAddress)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Caller-Address"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		MetricsHandler().ServeHTTP(w, r)
	})

	// Kubernetes probes
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/health/detailed", s.handleDetailedHealth)
	s.router.Get("/api/ws", s.handleWS)

	s.router.Route("/api/agents", func(r chi.Router) {
		r.Get("/", s.handleListActiveAgents)
		r.Post("/", s.handleRegisterAgent)
		r.Put("/", s.handleUpdateAgent)
		r.Post("/deactivate", s.handleDeactivateAgent)
		r.Get("/search", s.handleFindByCapability)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/{address}", s.handleGetAgent)
		r.Get("/{address}/registered", s.handleIsRegistered)
	})

	s.router.Route("/api/hires", func(r chi.Router) {
		r.Post("/", s.handleHireAgent)
		r.Post("/agent", s.handleHireAgentFromAgent)
		r.Get("/feed", s.handleHireFeed)
	})

	s.router.Route("/api/stats", func(r chi.Router) {
		r.Get("/", s.handleProtocolStats)
		r.Get("/agent-count", s.handleAgentCount)
	})

	s.router.Route("/api/accounts", func(r chi.Router) {
		r.Get("/{address}", s.handleGetBalance)
		r.Post("/{address}/deposit", s.handleDeposit)
	})
}

// Router exposes the chi mux, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// Identity endpoints

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var profile services.AgentProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, domain.ErrInvalidProfile)
		return
	}
	agent, err := s.registry.Register(r.Context(), caller, profile)
	if err != nil {
		writeError(w, err)
		return
	}

	RecordRegistration()
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var profile services.AgentProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, domain.ErrInvalidProfile)
		return
	}
	agent, err := s.registry.Update(r.Context(), caller, profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleDeactivateAgent(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.registry.Deactivate(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.registry.GetAgent(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleIsRegistered(w http.ResponseWriter, r *http.Request) {
	registered, err := s.registry.IsRegistered(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"registered": registered})
}

func (s *Server) handleListActiveAgents(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.registry.ListActiveAgents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"addresses": addresses,
		"count":     len(addresses),
	})
}

func (s *Server) handleFindByCapability(w http.ResponseWriter, r *http.Request) {
	capability := r.URL.Query().Get("capability")
	addresses, err := s.registry.FindAgentsByCapability(r.Context(), capability)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"capability": capability,
		"addresses":  addresses,
		"count":      len(addresses),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	agents, err := s.registry.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// Hiring endpoints

type hireRequest struct {
	AgentAddress string `json:"agent_address"`
	Amount       int64  `json:"amount"`
}

func (s *Server) handleHireAgent(w http.ResponseWriter, r *http.Request) {
	s.settleHire(w, r, false)
}

func (s *Server) handleHireAgentFromAgent(w http.ResponseWriter, r *http.Request) {
	s.settleHire(w, r, true)
}

func (s *Server) settleHire(w http.ResponseWriter, r *http.Request, agentToAgent bool) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req hireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInsufficientPayment)
		return
	}

	var receipt *domain.HireReceipt
	if agentToAgent {
		receipt, err = s.hiring.HireAgentFromAgent(r.Context(), caller, req.AgentAddress, req.Amount)
	} else {
		receipt, err = s.hiring.HireAgent(r.Context(), caller, req.AgentAddress, req.Amount)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	RecordHire(receipt.GrossAmount, receipt.ProtocolFee, agentToAgent)
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleHireFeed(w http.ResponseWriter, r *http.Request) {
	var offset, limit int64 = 0, 20
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.ParseInt(o, 10, 64); err == nil && val >= 0 {
			offset = val
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.ParseInt(l, 10, 64); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}

	events, err := s.feed.Recent(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.feed.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// Accounting endpoints

func (s *Server) handleProtocolStats(w http.ResponseWriter, r *http.Request) {
	counters, err := s.stats.GetProtocolStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

func (s *Server) handleAgentCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.stats.GetAgentCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"agent_count": count})
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	balance, err := s.accounts.Balance(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"balance": balance,
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInsufficientPayment)
		return
	}
	balance, err := s.accounts.Deposit(r.Context(), chi.URLParam(r, "address"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": chi.URLParam(r, "address"),
		"balance": balance,
	})
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthSvc.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if report.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, report)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.hub, w, r)
}

// Response helpers

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), errorResponse{
		Error:   errorCode(err),
		Message: err.Error(),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyRegistered), errors.Is(err, domain.ErrAgentInactive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotRegistered):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAgent):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientPayment), errors.Is(err, domain.ErrTransferFailed):
		// 402 is the protocol's pay-or-retry signal.
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return "AlreadyRegistered"
	case errors.Is(err, domain.ErrNotRegistered):
		return "NotRegistered"
	case errors.Is(err, domain.ErrInvalidAgent):
		return "InvalidAgent"
	case errors.Is(err, domain.ErrAgentInactive):
		return "AgentInactive"
	case errors.Is(err, domain.ErrInsufficientPayment):
		return "InsufficientPayment"
	case errors.Is(err, domain.ErrTransferFailed):
		return "TransferFailed"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, domain.ErrInvalidProfile):
		return "InvalidProfile"
	default:
		return "Internal"
	}
}
