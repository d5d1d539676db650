// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jeremyhahn/go-passkey/internal/actions"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, ErrorResponse{Error: code, Message: message}, statusCode)
}

// actionStatus maps an action error kind to an HTTP status code. The action
// result body is always the tagged envelope itself; the status code only
// mirrors the kind for clients that route on it.
func actionStatus(result actions.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Error.Kind {
	case actions.KindAuthenticationRequired:
		return http.StatusUnauthorized
	case actions.KindAuthorizationDenied:
		return http.StatusForbidden
	case actions.KindValidation:
		return http.StatusBadRequest
	case actions.KindConflict:
		return http.StatusConflict
	case actions.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeActionResult serializes an action result envelope verbatim.
func writeActionResult(w http.ResponseWriter, result actions.Result) {
	writeJSON(w, result, actionStatus(result))
}
