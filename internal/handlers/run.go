package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jitsejan/noths-pipeline/internal/db"
	"github.com/jitsejan/noths-pipeline/internal/models"
	"github.com/jitsejan/noths-pipeline/internal/pipeline"
	"github.com/jitsejan/noths-pipeline/internal/quality"
)

// RunHandler exposes pipeline runs and their outputs over HTTP.
type RunHandler struct {
	runner          *pipeline.Runner
	repo            *db.Repository
	defaultMerchant string
	defaultMaxPages int
	log             *zap.SugaredLogger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runner *pipeline.Runner, repo *db.Repository, defaultMerchant string, defaultMaxPages int, log *zap.SugaredLogger) *RunHandler {
	return &RunHandler{
		runner:          runner,
		repo:            repo,
		defaultMerchant: defaultMerchant,
		defaultMaxPages: defaultMaxPages,
		log:             log,
	}
}

// RunResponse is the JSON response for the run endpoint.
type RunResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Report     *models.RunReport   `json:"report,omitempty"`
	Violations []quality.Violation `json:"violations,omitempty"`
}

// Run handles POST /admin/run.
// Query params:
// - merchant_id: merchant to run for (default: configured merchant)
// - max_pages: review page cap (default: configured cap)
// - mode: raw write mode, merge/replace/append (default: merge)
// - include_ratings: fetch catalog ratings for reviewed SKUs (default: true)
// - period_days: trailing window for catalog ratings (default: all time)
// - since / until: review date filters (optional)
func (h *RunHandler) Run(c echo.Context) error {
	ctx := c.Request().Context()

	params := pipeline.Params{
		MerchantID:     h.defaultMerchant,
		MaxPages:       h.defaultMaxPages,
		Mode:           db.WriteMerge,
		IncludeRatings: true,
		Since:          c.QueryParam("since"),
		Until:          c.QueryParam("until"),
	}
	if v := c.QueryParam("merchant_id"); v != "" {
		params.MerchantID = v
	}
	if v := c.QueryParam("max_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, fmt.Sprintf("invalid max_pages: %s", v))
		}
		params.MaxPages = n
	}
	if v := c.QueryParam("mode"); v != "" {
		mode, err := db.ParseWriteMode(v)
		if err != nil {
			return badRequest(c, err.Error())
		}
		params.Mode = mode
	}
	if v := c.QueryParam("include_ratings"); v != "" {
		params.IncludeRatings = v != "false"
	}
	if v := c.QueryParam("period_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, fmt.Sprintf("invalid period_days: %s", v))
		}
		params.PeriodDays = n
	}

	report, err := h.runner.Run(ctx, params)
	if err != nil {
		var assertErr *quality.AssertionError
		if errors.As(err, &assertErr) {
			return c.JSON(http.StatusUnprocessableEntity, RunResponse{
				Success:    false,
				Message:    assertErr.Error(),
				Report:     &report,
				Violations: assertErr.Violations,
			})
		}
		h.log.Errorw("run failed", "merchant_id", params.MerchantID, "error", err)
		return c.JSON(http.StatusInternalServerError, RunResponse{
			Success: false,
			Message: fmt.Sprintf("Run failed: %v", err),
		})
	}

	return c.JSON(http.StatusOK, RunResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully summarised %d products from %d reviews", report.Summaries, report.ReviewsFetched),
		Report:  &report,
	})
}

// Status handles GET /admin/status.
func (h *RunHandler) Status(c echo.Context) error {
	status, err := h.repo.GetStatus(c.Request().Context(), h.merchant(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, RunResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read status: %v", err),
		})
	}
	return c.JSON(http.StatusOK, status)
}

// Summaries handles GET /products/summary.
func (h *RunHandler) Summaries(c echo.Context) error {
	summaries, err := h.repo.GetProductSummaries(c.Request().Context(), h.merchant(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, RunResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read summaries: %v", err),
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

// TopByVolume handles GET /products/top.
func (h *RunHandler) TopByVolume(c echo.Context) error {
	top, err := h.repo.GetTopByVolume(c.Request().Context(), h.merchant(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, RunResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read top products: %v", err),
		})
	}
	return c.JSON(http.StatusOK, top)
}

// RankedByRating handles GET /products/by-rating.
func (h *RunHandler) RankedByRating(c echo.Context) error {
	ranked, err := h.repo.GetRankedByRating(c.Request().Context(), h.merchant(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, RunResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read ranked products: %v", err),
		})
	}
	return c.JSON(http.StatusOK, ranked)
}

func (h *RunHandler) merchant(c echo.Context) string {
	if v := c.QueryParam("merchant_id"); v != "" {
		return v
	}
	return h.defaultMerchant
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, RunResponse{
		Success: false,
		Message: msg,
	})
}
