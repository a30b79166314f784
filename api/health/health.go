// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health reports whether a VM is serving.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const checkTimeout = 5 * time.Second

// Checker reports its health. A nil error is healthy; details are reported
// either way.
type Checker interface {
	HealthCheck(context.Context) (interface{}, error)
}

// Result is the body of a health response.
type Result struct {
	Healthy bool        `json:"healthy"`
	Details interface{} `json:"details,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type handler struct {
	checker Checker
	failing prometheus.Gauge
}

// NewHandler serves checker results, with 503 when unhealthy.
func NewHandler(checker Checker, registerer prometheus.Registerer) (http.Handler, error) {
	failing := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "health_check_failing",
		Help: "1 if the last health check failed",
	})
	if err := registerer.Register(failing); err != nil {
		return nil, err
	}
	return &handler{
		checker: checker,
		failing: failing,
	}, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	details, err := h.checker.HealthCheck(ctx)
	result := Result{
		Healthy: err == nil,
		Details: details,
	}
	status := http.StatusOK
	h.failing.Set(0)
	if err != nil {
		result.Error = err.Error()
		status = http.StatusServiceUnavailable
		h.failing.Set(1)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
