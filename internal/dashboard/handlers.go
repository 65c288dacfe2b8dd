package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/control"
	"github.com/pablasso/wiggum/internal/status"
)

// Control actions accepted by POST /api/control.
const (
	ActionPause         = "pause"
	ActionResume        = "resume"
	ActionAddIterations = "add-iterations"
	ActionHint          = "hint"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type blobResponse struct {
	Blob string `json:"blob"`
}

type controlRequest struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

type controlResponse struct {
	Status string `json:"status"`
	NewMax *int   `json:"new_max,omitempty"`
}

func detail(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorResponse{Detail: msg})
}

// collectError maps a snapshot failure to a response.
func collectError(c echo.Context, logger *log.Logger, err error) error {
	if errors.Is(err, board.ErrNotFound) {
		return detail(c, http.StatusNotFound, "Kanban file not found")
	}
	logger.WithError(err).Error("failed to collect status")
	return detail(c, http.StatusInternalServerError, err.Error())
}

func getStatus(collector *status.Collector, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, err := collector.Collect(c.Request().Context())
		if err != nil {
			return collectError(c, logger, err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

func getClaudeBlob(collector *status.Collector, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		blob, err := collector.Blob(c.Request().Context())
		if err != nil {
			return collectError(c, logger, err)
		}
		return c.JSON(http.StatusOK, blobResponse{Blob: blob})
	}
}

func postControl(controls *control.Controls, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req controlRequest
		if err := c.Bind(&req); err != nil {
			return detail(c, http.StatusBadRequest, "invalid request body")
		}
		ctx := c.Request().Context()
		value := strings.TrimSpace(req.Value)

		var (
			resp controlResponse
			err  error
		)
		switch req.Action {
		case ActionPause:
			err = controls.Pause(ctx)
			resp.Status = "paused"
		case ActionResume:
			err = controls.Resume(ctx)
			resp.Status = "resumed"
		case ActionAddIterations:
			if value == "" {
				return detail(c, http.StatusBadRequest, "value required for add-iterations")
			}
			n, convErr := strconv.Atoi(value)
			if convErr != nil {
				return detail(c, http.StatusBadRequest, "value must be an integer")
			}
			var newMax int
			newMax, err = controls.AddIterations(ctx, n)
			resp = controlResponse{Status: "updated", NewMax: &newMax}
		case ActionHint:
			if value == "" {
				return detail(c, http.StatusBadRequest, "value required for hint")
			}
			err = controls.SetHint(ctx, req.Value)
			resp.Status = "hint_set"
		default:
			return detail(c, http.StatusBadRequest, "Unknown action: "+req.Action)
		}

		if err != nil {
			logger.WithError(err).WithField("action", req.Action).Error("control action failed")
			return detail(c, http.StatusInternalServerError, err.Error())
		}
		logger.WithField("action", req.Action).Info("control action applied")
		return c.JSON(http.StatusOK, resp)
	}
}
