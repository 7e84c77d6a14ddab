// Package server exposes the HTTP JSON API consumed by gate terminals and
// member devices.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	auditdomain "gym-access-control/backend/internal/audit/domain"
	"gym-access-control/backend/internal/decision"
	"gym-access-control/backend/internal/facility/rbac"
	"gym-access-control/backend/internal/security"
	"gym-access-control/backend/internal/token"
)

// Decider runs one gate scan end to end.
type Decider interface {
	Decide(ctx context.Context, req decision.Request) (*decision.Response, error)
}

// PolicyHealth reports whether the entry policy engine can compile and
// evaluate its default policy.
type PolicyHealth interface {
	HealthCheck(ctx context.Context) error
}

// LogReader lists recorded access decisions for a facility, newest first.
type LogReader interface {
	ListByFacility(ctx context.Context, facilityID string, limit, offset int32) ([]*auditdomain.AccessLog, error)
	CountByFacility(ctx context.Context, facilityID string) (int64, error)
}

type Dependencies struct {
	Logger   *log.Logger
	Addr     string
	Engine   Decider
	Issuer   *token.Issuer
	Tokens   *security.TokenProvider
	Staff    rbac.StaffGetter
	Logs     LogReader
	DB       *sql.DB
	Policy   PolicyHealth
	TokenTTL time.Duration
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	engine     Decider
	issuer     *token.Issuer
	tokens     *security.TokenProvider
	staff      rbac.StaffGetter
	logs       LogReader
	db         *sql.DB
	policy     PolicyHealth
	tokenTTL   time.Duration
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:   d.Logger,
		mux:      mux,
		engine:   d.Engine,
		issuer:   d.Issuer,
		tokens:   d.Tokens,
		staff:    d.Staff,
		logs:     d.Logs,
		db:       d.DB,
		policy:   d.Policy,
		tokenTTL: d.TokenTTL,
	}

	mux.HandleFunc("POST /v1/access/validations", s.handleValidate)
	mux.HandleFunc("POST /v1/tokens", s.handleIssueToken)
	mux.HandleFunc("GET /v1/facilities/{facilityID}/access-logs", s.handleListLogs)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	handler := loggingMiddleware(d.Logger, mux)
	handler = otelhttp.NewHandler(handler, "http.server")

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type validateRequest struct {
	Token      string `json:"token"`
	FacilityID string `json:"facility_id"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req validateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.Token == "" || req.FacilityID == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "token and facility_id are required")
		return
	}

	// The validator identity comes from the verified JWT, never the body, so
	// a terminal cannot attribute scans to someone else.
	validatorID := claims.Subject
	if _, err := rbac.RequireFacilityStaff(r.Context(), s.staff, validatorID, req.FacilityID); err != nil {
		if errors.Is(err, rbac.ErrNotStaff) {
			writeError(w, http.StatusForbidden, "not_staff", "identity is not staff at this facility")
			return
		}
		s.logger.Printf("staff lookup error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "system unavailable")
		return
	}

	resp, err := s.engine.Decide(r.Context(), decision.Request{
		RawToken:            req.Token,
		FacilityID:          req.FacilityID,
		ValidatorIdentityID: validatorID,
	})
	if err != nil {
		if errors.Is(err, decision.ErrUnavailable) {
			s.logger.Printf("validation unavailable: %v", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", "system unavailable")
			return
		}
		s.logger.Printf("validation error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type issueTokenResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// handleIssueToken mints a gate token for the authenticated member. The
// identity is the JWT subject; members cannot request tokens for others.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	tok, err := s.issuer.Issue(r.Context(), claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrUnknownIdentity):
			writeError(w, http.StatusNotFound, "unknown_identity", "identity not found")
		case errors.Is(err, token.ErrBadIdentityID):
			writeError(w, http.StatusUnprocessableEntity, "bad_identity_id", err.Error())
		default:
			s.logger.Printf("token issuance error: %v", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", "system unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, issueTokenResponse{
		Token:            tok.Raw,
		ExpiresInSeconds: int64(s.tokenTTL.Seconds()),
	})
}

type accessLogEntry struct {
	ID                  string    `json:"id"`
	IdentityID          string    `json:"identity_id,omitempty"`
	ValidatorIdentityID string    `json:"validator_identity_id"`
	Outcome             string    `json:"outcome"`
	Reason              string    `json:"reason,omitempty"`
	TokenFingerprint    string    `json:"token_fingerprint,omitempty"`
	OccurredAt          time.Time `json:"occurred_at"`
}

type listLogsResponse struct {
	Logs  []accessLogEntry `json:"logs"`
	Total int64            `json:"total"`
}

// handleListLogs returns a facility's access log, newest first. Staff only.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	facilityID := r.PathValue("facilityID")

	if _, err := rbac.RequireFacilityStaff(r.Context(), s.staff, claims.Subject, facilityID); err != nil {
		if errors.Is(err, rbac.ErrNotStaff) {
			writeError(w, http.StatusForbidden, "not_staff", "identity is not staff at this facility")
			return
		}
		s.logger.Printf("staff lookup error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "system unavailable")
		return
	}

	limit := queryInt(r, "limit", 50, 200)
	offset := queryInt(r, "offset", 0, 1<<30)

	entries, err := s.logs.ListByFacility(r.Context(), facilityID, limit, offset)
	if err != nil {
		s.logger.Printf("list access logs error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "system unavailable")
		return
	}
	total, err := s.logs.CountByFacility(r.Context(), facilityID)
	if err != nil {
		s.logger.Printf("count access logs error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "system unavailable")
		return
	}

	resp := listLogsResponse{Logs: make([]accessLogEntry, 0, len(entries)), Total: total}
	for _, e := range entries {
		resp.Logs = append(resp.Logs, accessLogEntry{
			ID:                  e.ID,
			IdentityID:          e.IdentityID,
			ValidatorIdentityID: e.ValidatorIdentityID,
			Outcome:             string(e.Outcome),
			Reason:              e.Reason,
			TokenFingerprint:    e.TokenFingerprint,
			OccurredAt:          e.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, name string, def, max int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	if int32(n) > max {
		return max
	}
	return int32(n)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.logger.Printf("healthz db ping: %v", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(r.Context()); err != nil {
			s.logger.Printf("healthz policy check: %v", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", "policy engine unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
