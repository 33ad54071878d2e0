package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"summaryrelay/internal/domain/entity"
)

// SummaryGenerator is the application entry point the handler depends on.
type SummaryGenerator interface {
	GenerateSummary(ctx context.Context, req *entity.SummaryRequest) (*entity.Summary, error)
}

type summaryResponse struct {
	Module   string `json:"module"`
	Time     string `json:"time"`
	Response string `json:"response"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const (
	errInvalidInput     = "Invalid input"
	errGenerationFailed = "Generation failed"
	msgGenerationFailed = "model generation failed"
)

type SummaryHandler struct {
	service SummaryGenerator
	log     *slog.Logger
}

func NewSummaryHandler(service SummaryGenerator, log *slog.Logger) *SummaryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SummaryHandler{service: service, log: log}
}

// GenerateSummary handles POST /generate-summary.
func (h *SummaryHandler) GenerateSummary(c echo.Context) error {
	var req entity.SummaryRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		// BodyLimit reports oversized streamed bodies through the read.
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		h.log.InfoContext(c.Request().Context(), "Undecodable request body",
			"error", err,
			"requestID", requestID(c))
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   errInvalidInput,
			Message: "request body must be a JSON object with module and content",
		})
	}

	summary, err := h.service.GenerateSummary(c.Request().Context(), &req)
	if err != nil {
		var invalid *entity.InvalidInputError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error:   errInvalidInput,
				Message: invalid.Message,
			})
		}

		if !entity.IsGenerationFailure(err) {
			h.log.ErrorContext(c.Request().Context(), "Unexpected summary failure",
				"error", err,
				"requestID", requestID(c))
		}

		// Details stay in the logs; backend and transport failures look the same to callers.
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   errGenerationFailed,
			Message: msgGenerationFailed,
		})
	}

	return c.JSON(http.StatusOK, summaryResponse{
		Module:   summary.Module,
		Time:     summary.ElapsedText(),
		Response: summary.Response,
	})
}

func (h *SummaryHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
