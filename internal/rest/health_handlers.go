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
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/health"
)

// HealthHandler handles GET /healthz. It reports liveness and, when a
// checker is configured, runs the registered readiness checks.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, HealthResponse{Status: string(health.StatusHealthy), Version: s.version}, http.StatusOK)
		return
	}

	if !s.checker.Started() {
		writeJSON(w, HealthResponse{
			Status:  string(health.StatusUnhealthy),
			Version: s.version,
		}, http.StatusServiceUnavailable)
		return
	}

	results := s.checker.Ready(r.Context())
	status := health.AggregateStatus(results)

	statusCode := http.StatusOK
	if status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, HealthResponse{
		Status:  string(status),
		Version: s.version,
		Uptime:  s.checker.Uptime().String(),
	}, statusCode)
}
