// Package handlers provides HTTP API handlers for sambee.
package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sambee/sambee/internal/preview"
	"github.com/sambee/sambee/internal/storage"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	converter *preview.Converter
	store     *storage.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, converter *preview.Converter, store *storage.Store) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		converter: converter,
		store:     store,
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string               `json:"status"`
	Timestamp     string               `json:"timestamp"`
	Version       string               `json:"version"`
	Uptime        string               `json:"uptime"`
	UptimeSeconds float64              `json:"uptime_seconds"`
	VipsVersion   string               `json:"vips_version"`
	Preprocessors []preview.ToolStatus `json:"preprocessors"`
	Shares        []string             `json:"shares"`
}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service status, the linked libvips version, and external tool availability",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	return &HealthOutput{
		Body: HealthResponse{
			Status:        "healthy",
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			VipsVersion:   preview.VipsVersion(),
			Preprocessors: h.converter.PreprocessorStatus(ctx),
			Shares:        h.store.Names(),
		},
	}, nil
}
