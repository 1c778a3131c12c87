package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/reframer/internal/api/models"
	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/metrics"
	"github.com/smazurov/reframer/internal/resources"
)

func (s *Server) registerSystemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "Encoders",
		Description: "Selected hardware encoder, software fallback and the last validation run",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EncoderResponse, error) {
		data := models.EncoderData{Software: s.options.Software.Encoder}
		if s.options.Hardware != nil {
			data.Selected = s.options.Hardware.Encoder
		}
		if s.options.Encoders != nil {
			data.Validation = s.options.Encoders.Current()
		}
		return &models.EncoderResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Most recent entries of the in-memory log buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		data := models.LogsData{Entries: []logging.LogEntry{}}
		if buffer := logging.GetBuffer(); buffer != nil {
			if input.Unit != "" {
				data.Entries = append(data.Entries, buffer.UnitTail(input.Unit, input.Tail)...)
			} else {
				data.Entries = append(data.Entries, buffer.Tail(input.Tail)...)
			}
		}
		data.Count = len(data.Entries)
		return &models.LogsResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-resources",
		Method:      http.MethodGet,
		Path:        "/api/resources",
		Summary:     "Host Resources",
		Description: "CPU count, memory use, load average and free output space",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.ResourcesResponse, error) {
		path := s.options.OutputDir
		if path == "" {
			path = "."
		}
		return &models.ResourcesResponse{Body: resources.Sample(ctx, path)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-unit-metrics",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Encode Metrics",
		Description: "Frame, fps and speed of every running encode",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.UnitMetricsResponse, error) {
		return &models.UnitMetricsResponse{Body: models.UnitMetricsData{Units: metrics.GetAllUnitMetrics()}}, nil
	})
}
