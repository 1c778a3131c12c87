package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/reframer/internal/api/models"
	"github.com/smazurov/reframer/internal/pipeline"
)

func (s *Server) registerBatchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-summary",
		Method:      http.MethodGet,
		Path:        "/api/summary",
		Summary:     "Batch Summary",
		Description: "Counts of units by state and overall completion",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SummaryResponse, error) {
		return &models.SummaryResponse{Body: summarize(s.statuses(), s.options.OutputDir)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-units",
		Method:      http.MethodGet,
		Path:        "/api/units",
		Summary:     "List Units",
		Description: "Every (source, preset) unit with its current state",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.UnitListResponse, error) {
		units := s.statuses()
		return &models.UnitListResponse{Body: models.UnitListData{Units: units, Count: len(units)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-unit",
		Method:      http.MethodGet,
		Path:        "/api/unit",
		Summary:     "Get Unit",
		Description: "State of one unit by ID",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.UnitRequest) (*models.UnitResponse, error) {
		if s.options.Status == nil {
			return nil, huma.Error404NotFound("unit not found")
		}
		st, ok := s.options.Status.Status(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("unit not found: " + input.ID)
		}
		return &models.UnitResponse{Body: st}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/api/processes",
		Summary:     "List Processes",
		Description: "Live ffmpeg processes started by the encode supervisor",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ProcessListResponse, error) {
		data := models.ProcessListData{Processes: []models.ProcessData{}}
		if s.options.Registry != nil {
			now := time.Now()
			for _, info := range s.options.Registry.Snapshot() {
				p := models.ProcessData{
					ID:        info.ID,
					State:     string(info.State),
					PID:       info.PID,
					StartedAt: info.StartedAt.Format(time.RFC3339),
					Uptime:    now.Sub(info.StartedAt).Round(time.Second).String(),
				}
				if info.LastError != nil {
					p.LastError = info.LastError.Error()
				}
				data.Processes = append(data.Processes, p)
			}
		}
		data.Count = len(data.Processes)
		return &models.ProcessListResponse{Body: data}, nil
	})
}

func (s *Server) statuses() []pipeline.UnitStatus {
	if s.options.Status == nil {
		return []pipeline.UnitStatus{}
	}
	return s.options.Status.Statuses()
}

// summarize counts live unit states. Running units contribute their frame
// fraction to the completion percentage.
func summarize(units []pipeline.UnitStatus, outputDir string) models.SummaryData {
	data := models.SummaryData{Total: len(units), OutputDir: outputDir}
	var progress float64
	for _, u := range units {
		switch u.Status {
		case pipeline.StatusPending:
			data.Pending++
		case pipeline.StatusRunning:
			data.Running++
			if u.TotalFrames > 0 {
				progress += min(1, float64(u.Frame)/float64(u.TotalFrames))
			}
		case pipeline.StatusProcessed:
			data.Processed++
			if u.Anomalous {
				data.Anomalous++
			}
		case pipeline.StatusSkipped:
			data.Skipped++
		case pipeline.StatusFailed:
			data.Failed++
		case pipeline.StatusCancelled:
			data.Cancelled++
		}
		if u.Done() {
			progress++
		}
		if u.UsedFallback {
			data.Fallbacks++
		}
	}
	if data.Total > 0 {
		data.Percent = progress * 100 / float64(data.Total)
	}
	return data
}
