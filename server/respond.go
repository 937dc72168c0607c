package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/walrus-x402/x402/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err onto a status via its X402Error code. Anything else
// is an internal error and its text is not exposed.
func writeError(w http.ResponseWriter, err error) {
	var xe *types.X402Error
	switch {
	case errors.As(err, &xe):
	case errors.Is(err, context.DeadlineExceeded):
		xe = &types.X402Error{Code: types.ErrChainUnavailable, Message: "chain lookup timed out"}
	default:
		xe = &types.X402Error{Code: "INTERNAL", Message: "internal error"}
	}
	writeJSON(w, xe.HTTPStatus(), errorResponse{Error: xe.Message, Code: xe.Code})
}
