package api

import (
	"context"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	xhttp "SignalPilot/pkg/http"
	applogger "SignalPilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalProcessor accepts one inbound signal.
type SignalProcessor interface {
	Process(ctx context.Context, req models.SignalRequest) (*models.PipelineResult, error)
}

// DecisionReader lists persisted decisions.
type DecisionReader interface {
	RecentDecisions(ctx context.Context, limit int) ([]models.Decision, error)
}

// SignalsHandler serves signal intake and the decision log.
type SignalsHandler struct {
	logger    *applogger.Logger
	intake    SignalProcessor
	decisions DecisionReader
}

// NewSignalsHandler builds the handler. decisions may be nil when no audit
// backend is configured.
func NewSignalsHandler(logger *applogger.Logger, intake SignalProcessor, decisions DecisionReader) *SignalsHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &SignalsHandler{logger: logger, intake: intake, decisions: decisions}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/signals", h.Submit)
	g.GET("/decisions", h.Decisions)
}

// Submit runs a signal through the pipeline. A rejected signal is a 200 with
// decision.should_execute false.
func (h *SignalsHandler) Submit(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.intake.Process(c.Request().Context(), *req)
	if err != nil {
		if !errs.Is(err, errs.KindValidation) && !errs.Is(err, errs.KindResourceConflict) {
			h.logger.Error("signal processing error",
				applogger.String("ticker", req.Ticker),
				applogger.Error(err),
			)
		}
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsHandler) Decisions(c echo.Context) error {
	limit := xhttp.QueryLimit(c, 20, 200)
	if h.decisions == nil {
		return xhttp.ListResponse(c, []models.Decision{}, 0)
	}
	rows, err := h.decisions.RecentDecisions(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("decision log query error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("decision log unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
