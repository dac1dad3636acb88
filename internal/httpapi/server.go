package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/secure"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

type Dependencies struct {
	Logger *slog.Logger
	Addr   string
	Ledger *ledger.Ledger
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	ledger     *ledger.Ledger
	validate   *validator.Validate
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:   d.Logger,
		mux:      mux,
		ledger:   d.Ledger,
		validate: validator.New(),
	}

	mux.HandleFunc("POST /v1/attendance/toggle", s.handleToggle)
	mux.HandleFunc("GET /v1/attendance", s.handleAttendance)
	mux.HandleFunc("POST /v1/location", s.handleLocation)
	mux.HandleFunc("GET /v1/anomalies", s.handleAnomalies)
	mux.HandleFunc("GET /v1/audit", s.handleAudit)
	mux.HandleFunc("GET /v1/integrity", s.handleIntegrity)
	mux.HandleFunc("GET /v1/retention", s.handleRetentionStatus)
	mux.HandleFunc("POST /v1/retention/run", s.handleRetentionRun)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /v1/settings", s.handlePatchSettings)

	handler := loggingMiddleware(d.Logger, mux)

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

// ── Attendance ───────────────────────────────────────────────────────────────

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req service.ToggleRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.ledger.Attendance.Toggle(r.Context(), req)
	if err != nil {
		s.fail(w, r, "toggle", err)
		return
	}
	s.respond(w, r, http.StatusCreated, res)
}

type attendanceResponse struct {
	Events []types.AttendanceEvent `json:"events"`
	Status types.Status            `json:"status"`
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	events, err := s.ledger.Attendance.Events(r.Context())
	if err != nil {
		s.fail(w, r, "attendance", err)
		return
	}
	st, err := s.ledger.Attendance.Status(r.Context())
	if err != nil {
		s.fail(w, r, "attendance", err)
		return
	}
	if events == nil {
		events = []types.AttendanceEvent{}
	}
	s.respond(w, r, http.StatusOK, attendanceResponse{Events: events, Status: st})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	reports, err := s.ledger.Attendance.Anomalies(r.Context())
	if err != nil {
		s.fail(w, r, "anomalies", err)
		return
	}
	if reports == nil {
		reports = []types.AnomalyReport{}
	}
	s.respond(w, r, http.StatusOK, map[string]any{"anomalies": reports})
}

// ── Location ─────────────────────────────────────────────────────────────────

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req service.LocationRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.ledger.Location.Record(r.Context(), req)
	if err != nil {
		s.fail(w, r, "location", err)
		return
	}
	s.respond(w, r, http.StatusOK, res)
}

// ── Audit & integrity ────────────────────────────────────────────────────────

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.Audit.Entries(r.Context())
	if err != nil {
		s.fail(w, r, "audit", err)
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		if n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	if entries == nil {
		entries = []types.AuditEntry{}
	}
	s.respond(w, r, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Integrity.Run(r.Context())
	if err != nil {
		s.fail(w, r, "integrity", err)
		return
	}
	s.respond(w, r, http.StatusOK, report)
}

// ── Retention ────────────────────────────────────────────────────────────────

func (s *Server) handleRetentionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.Retention.Status(r.Context())
	if err != nil {
		s.fail(w, r, "retention", err)
		return
	}
	s.respond(w, r, http.StatusOK, st)
}

func (s *Server) handleRetentionRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.Retention.Run(r.Context())
	if err != nil {
		s.fail(w, r, "retention_run", err)
		return
	}
	s.respond(w, r, http.StatusOK, res)
}

// ── Settings ─────────────────────────────────────────────────────────────────

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.Settings.Load(r.Context())
	if err != nil {
		s.fail(w, r, "settings", err)
		return
	}
	s.respond(w, r, http.StatusOK, st)
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch types.SettingsPatch
	if !s.decode(w, r, &patch) {
		return
	}

	st, err := s.ledger.Settings.Update(r.Context(), patch)
	if err != nil {
		s.fail(w, r, "settings_update", err)
		return
	}
	s.respond(w, r, http.StatusOK, st)
}

// ── Encoding ─────────────────────────────────────────────────────────────────

// decode reads a JSON or protobuf Struct body into out and validates it.  It
// writes the error response itself and reports whether decoding succeeded.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if isProtobuf(r) {
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return false
		}
		if err := fromStruct(&msg, out); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "protobuf body does not match the request shape")
			return false
		}
	} else {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(out); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return false
		}
	}

	if err := s.validate.Struct(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// respond writes v as protobuf when the client asks for it, JSON otherwise.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsProtobuf(r) {
		writeJSON(w, status, v)
		return
	}
	msg, err := toStruct(v)
	if err != nil {
		s.logger.Error("protobuf response", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeProto(w, status, msg)
}

// fail maps service errors to HTTP responses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrLocationRequired):
		writeError(w, http.StatusBadRequest, "location_required", err.Error())
	case errors.Is(err, service.ErrInvalidSample):
		writeError(w, http.StatusBadRequest, "invalid_sample", err.Error())
	case errors.Is(err, service.ErrInvalidSettings):
		writeError(w, http.StatusBadRequest, "invalid_settings", err.Error())
	case errors.Is(err, service.ErrCredentialRequired):
		writeError(w, http.StatusForbidden, "credential_required", err.Error())
	case errors.Is(err, secure.ErrSecretUnavailable):
		s.logger.Error("secure storage unavailable", "op", op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "secure_storage_unavailable", "secure storage is unavailable")
	case errors.Is(err, service.ErrCollectionUnreadable):
		s.logger.Error("stored collection unreadable", "op", op, "error", err)
		writeError(w, http.StatusConflict, "collection_unreadable", "stored data could not be read")
	default:
		s.logger.Error("request failed", "op", op, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}
