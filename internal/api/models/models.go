// Package models holds the request and response types of the status API.
package models

import (
	"github.com/smazurov/reframer/internal/encoders"
	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/metrics"
	"github.com/smazurov/reframer/internal/pipeline"
	"github.com/smazurov/reframer/internal/resources"
	"github.com/smazurov/reframer/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Batch models
type SummaryData struct {
	Total     int     `json:"total" example:"12" doc:"Units known to the runner"`
	Pending   int     `json:"pending" doc:"Units not started yet"`
	Running   int     `json:"running" doc:"Units encoding now"`
	Processed int     `json:"processed" doc:"Units with a finished output"`
	Skipped   int     `json:"skipped" doc:"Units whose source already had the target ratio"`
	Failed    int     `json:"failed" doc:"Units that failed"`
	Cancelled int     `json:"cancelled" doc:"Units interrupted by shutdown"`
	Anomalous int     `json:"anomalous" doc:"Processed units with suspiciously small output"`
	Fallbacks int     `json:"fallbacks" doc:"Units that needed the software encoder"`
	OutputDir string  `json:"output_dir" example:"output" doc:"Output root"`
	Percent   float64 `json:"percent" example:"41.5" doc:"Batch completion percentage"`
}

type SummaryResponse struct {
	Body SummaryData
}

type UnitListData struct {
	Units []pipeline.UnitStatus `json:"units" doc:"Units in registration order"`
	Count int                   `json:"count" doc:"Number of units"`
}

type UnitListResponse struct {
	Body UnitListData
}

type UnitRequest struct {
	ID string `query:"id" required:"true" example:"clip.mp4#9x16" doc:"Unit identifier"`
}

type UnitResponse struct {
	Body pipeline.UnitStatus
}

// Process models
type ProcessData struct {
	ID        string `json:"id" example:"clip.mp4#9x16" doc:"Job identifier"`
	State     string `json:"state" example:"running" doc:"Process state"`
	PID       int    `json:"pid" example:"4242" doc:"Operating system process ID"`
	StartedAt string `json:"started_at" doc:"Start time (RFC3339)"`
	Uptime    string `json:"uptime" example:"12s" doc:"Time since start"`
	LastError string `json:"last_error,omitempty" doc:"Last recorded error"`
}

type ProcessListData struct {
	Processes []ProcessData `json:"processes" doc:"Live ffmpeg processes"`
	Count     int           `json:"count" doc:"Number of live processes"`
}

type ProcessListResponse struct {
	Body ProcessListData
}

// Encoder models
type EncoderData struct {
	Selected   string                      `json:"selected" example:"h264_nvenc" doc:"Hardware encoder used for final encodes, empty for software only"`
	Software   string                      `json:"software" example:"libx264" doc:"Fallback encoder"`
	Validation *encoders.ValidationResults `json:"validation,omitempty" doc:"Last hardware validation run"`
}

type EncoderResponse struct {
	Body EncoderData
}

// Log models
type LogsRequest struct {
	Tail int    `query:"tail" default:"100" minimum:"1" maximum:"1000" doc:"Number of most recent entries"`
	Unit string `query:"unit" doc:"Only entries logged for this unit ID"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Log entries, oldest first"`
	Count   int                `json:"count" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// Resource and metric models
type ResourcesResponse struct {
	Body resources.Snapshot
}

type UnitMetricsData struct {
	Units map[string]*metrics.UnitMetrics `json:"units" doc:"Live encode metrics keyed by unit ID"`
}

type UnitMetricsResponse struct {
	Body UnitMetricsData
}
