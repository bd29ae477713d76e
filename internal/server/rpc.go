package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/planner"
	"github.com/copyleftdev/unitroute/internal/registry"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type rpcError struct {
	code    int
	message string
	data    interface{}
}

func (e *rpcError) Error() string {
	return e.message
}

func invalidParams(format string, args ...interface{}) *rpcError {
	return &rpcError{code: codeInvalidParams, message: fmt.Sprintf(format, args...)}
}

// handleJSONRPC handles JSON-RPC 2.0 requests. Params are either an object or
// an array whose first element is the object.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil, nil)
		return
	}

	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	var (
		result interface{}
		err    error
	)
	ctx := r.Context()
	switch request.Method {
	case "route.solve":
		result, err = s.rpcSolve(ctx, request.Params)
	case "map.get":
		result, err = s.rpcGetMap(ctx, request.Params)
	case "map.route":
		result, err = s.rpcRoute(ctx, request.Params)
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID, nil)
		return
	}

	if err != nil {
		rerr := toRPCError(err)
		if rerr.code == codeServerError {
			s.logger.Error("JSON-RPC method failed", map[string]interface{}{
				"method": request.Method,
				"error":  err.Error(),
			})
		}
		s.respondWithError(w, rerr.code, rerr.message, request.ID, rerr.data)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func toRPCError(err error) *rpcError {
	var rerr *rpcError
	if errors.As(err, &rerr) {
		return rerr
	}
	if errors.Is(err, registry.ErrMapNotFound) {
		return &rpcError{code: codeInvalidParams, message: "Map not found"}
	}
	if oerr, ok := optimization.IsOptimizationError(err); ok &&
		(oerr.Kind == optimization.KindInvalidInput || oerr.Kind == optimization.KindConfiguration) {
		var data interface{}
		if len(oerr.Missing) > 0 {
			data = map[string]interface{}{"missing": oerr.Missing}
		}
		return &rpcError{code: codeInvalidParams, message: oerr.Message, data: data}
	}
	return &rpcError{code: codeServerError, message: "Server error"}
}

// decodeParams unmarshals params into v, unwrapping a one-element array.
func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return invalidParams("missing required parameters")
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return invalidParams("missing required parameters")
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidParams("invalid parameter format: %v", err)
	}
	return nil
}

func (s *Server) rpcSolve(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req solveRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	return s.solve(ctx, &req)
}

func (s *Server) rpcGetMap(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		MapID string `json:"mapId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.MapID == "" {
		return nil, invalidParams("mapId is required")
	}
	return s.store.GetMap(ctx, p.MapID)
}

func (s *Server) rpcRoute(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		MapID string `json:"mapId"`
		planner.Request
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.MapID == "" {
		return nil, invalidParams("mapId is required")
	}
	return s.planner.Plan(ctx, p.MapID, p.Request)
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data interface{}) {
	s.logger.Debug("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	rpcErr := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		rpcErr["data"] = data
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   rpcErr,
		"id":      id,
	})
}
