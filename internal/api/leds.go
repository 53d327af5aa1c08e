package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/statuslight/internal/api/models"
)

// registerLEDRoutes registers LED diagnostics endpoints
func (s *Server) registerLEDRoutes() {
	if s.options.LEDs == nil {
		s.logger.Debug("LED surface not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-leds",
		Method:      http.MethodGet,
		Path:        "/api/leds",
		Summary:     "Get LEDs",
		Description: "Get the active LED driver and the pixel buffer as last rendered",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LEDResponse, error) {
		pixels := s.options.LEDs.Pixels()
		hex := make([]string, len(pixels))
		for i, p := range pixels {
			hex[i] = p.Hex()
		}
		return &models.LEDResponse{
			Body: models.LEDData{
				Driver: s.options.LEDs.Info(),
				Pixels: hex,
			},
		}, nil
	})
}
