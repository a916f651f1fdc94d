// Package rpc exposes the lockup engine over JSON-RPC 2.0.
package rpc

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lockvault/merkle"
	"lockvault/native/lockup"
	"lockvault/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

const (
	codeLockupInvalidParams = -32030
	codeLockupNotFound      = -32031
	codeLockupForbidden     = -32032
	codeLockupConflict      = -32033
	codeLockupInvalidProof  = -32034
	codeLockupUnfunded      = -32035
)

// Server dispatches lockup JSON-RPC methods to the engine.
type Server struct {
	engine    *lockup.Engine
	log       *slog.Logger
	metrics   *metrics.LockupMetrics
	authToken string
}

// NewServer wires a JSON-RPC server around the engine. The optional
// LOCKVAULT_RPC_TOKEN environment variable enables bearer-token auth for
// mutating methods.
func NewServer(engine *lockup.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:    engine,
		log:       log,
		metrics:   metrics.Lockup(),
		authToken: strings.TrimSpace(os.Getenv("LOCKVAULT_RPC_TOKEN")),
	}
}

// Handler returns the HTTP handler serving the RPC endpoint and the
// Prometheus metrics endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves requests on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// RPCRequest is a JSON-RPC 2.0 request envelope. Lockup methods take exactly
// one object parameter.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// writeEngineError maps engine sentinels onto the module's error code space.
func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusBadRequest
	code := codeLockupInvalidParams
	switch {
	case errors.Is(err, lockup.ErrNotFound):
		status, code = http.StatusNotFound, codeLockupNotFound
	case errors.Is(err, lockup.ErrNotPermitted):
		status, code = http.StatusForbidden, codeLockupForbidden
	case errors.Is(err, lockup.ErrAlreadyExists), errors.Is(err, lockup.ErrAlreadyCancelled):
		status, code = http.StatusConflict, codeLockupConflict
	case errors.Is(err, lockup.ErrInvalidMerkleProof):
		status, code = http.StatusForbidden, codeLockupInvalidProof
		s.metrics.ObserveProofFailure()
	case errors.Is(err, lockup.ErrAmountIsZero):
		status, code = http.StatusBadRequest, codeLockupUnfunded
	case errors.Is(err, lockup.ErrFrequencyIsZero),
		errors.Is(err, lockup.ErrInvalidVestingStartTime),
		errors.Is(err, lockup.ErrInvalidUpdateRecipientMode),
		errors.Is(err, lockup.ErrInvalidCancelMode),
		errors.Is(err, lockup.ErrInvalidToken),
		errors.Is(err, lockup.ErrTimestampZero),
		errors.Is(err, lockup.ErrMathOverflow),
		errors.Is(err, lockup.ErrClaimingNotFinished):
		status, code = http.StatusBadRequest, codeLockupInvalidParams
	default:
		status, code = http.StatusInternalServerError, codeServerError
	}
	writeError(w, status, id, code, err.Error(), nil)
}

type rpcHandler func(http.ResponseWriter, *RPCRequest)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "unable to read request body", err.Error())
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, mutating, ok := s.route(req.Method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if mutating && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return
	}
	handler(w, req)
}

func (s *Server) route(method string) (rpcHandler, bool, bool) {
	switch method {
	case "lock_create":
		return s.handleCreateSchedule, true, true
	case "lock_claim":
		return s.handleClaim, true, true
	case "lock_cancel":
		return s.handleCancel, true, true
	case "lock_updateRecipient":
		return s.handleUpdateRecipient, true, true
	case "lock_close":
		return s.handleCloseSchedule, true, true
	case "lock_get":
		return s.handleGetSchedule, false, true
	case "lock_createRoot":
		return s.handleCreateRoot, true, true
	case "lock_fundRoot":
		return s.handleFundRoot, true, true
	case "lock_materialize":
		return s.handleMaterialize, true, true
	case "lock_claimFromRoot":
		return s.handleClaimFromRoot, true, true
	case "lock_getRoot":
		return s.handleGetRoot, false, true
	case "lock_getClaimStatus":
		return s.handleGetClaimStatus, false, true
	case "lock_registerTokenBadge":
		return s.handleRegisterTokenBadge, true, true
	case "lock_removeTokenBadge":
		return s.handleRemoveTokenBadge, true, true
	}
	return nil, false, false
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) == 1
}

// decodeParams unmarshals the single object parameter every lockup method
// expects.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object, got %d", len(req.Params))
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", value, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("invalid address %q: expected 20 bytes, got %d", value, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseHash(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid hash %q: %w", value, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("invalid hash %q: expected 32 bytes, got %d", value, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseProof(values []string) ([]merkle.Hash, error) {
	proof := make([]merkle.Hash, len(values))
	for i, value := range values {
		hash, err := parseHash(value)
		if err != nil {
			return nil, fmt.Errorf("proof entry %d: %w", i, err)
		}
		proof[i] = hash
	}
	return proof, nil
}
