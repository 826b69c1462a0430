package api

import (
	"context"

	"SignalPilot/internal/domain/models"
	xhttp "SignalPilot/pkg/http"

	"github.com/labstack/echo/v4"
)

// MarketReader exposes the monitor's cached state.
type MarketReader interface {
	Current(ctx context.Context) models.MarketDirectionSnapshot
	History(limit int) []models.MarketDirectionSnapshot
	LastEvent() (models.DirectionChangeEvent, bool)
}

type MarketHandler struct {
	monitor MarketReader
}

func NewMarketHandler(monitor MarketReader) *MarketHandler {
	return &MarketHandler{monitor: monitor}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/market")
	g.GET("/direction", h.Direction)
	g.GET("/history", h.History)
	g.GET("/event", h.Event)
}

func (h *MarketHandler) Direction(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.monitor.Current(c.Request().Context()))
}

func (h *MarketHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// monitor history is oldest first; the API lists newest first
	hist := h.monitor.History(req.Limit)
	rows := make([]models.MarketDirectionSnapshot, len(hist))
	for i, snap := range hist {
		rows[len(hist)-1-i] = snap
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *MarketHandler) Event(c echo.Context) error {
	ev, ok := h.monitor.LastEvent()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no direction change observed yet"))
	}
	return xhttp.SuccessResponse(c, ev)
}
