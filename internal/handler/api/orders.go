package api

import (
	"context"
	"net/http"

	"SignalPilot/internal/domain/models"
	xhttp "SignalPilot/pkg/http"
	applogger "SignalPilot/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// OrderManager applies fill and close instructions.
type OrderManager interface {
	Fill(ctx context.Context, id string, entryPrice decimal.Decimal) (*models.Order, error)
	Close(ctx context.Context, id string, closePrice decimal.Decimal, reason models.CloseReason) (*models.Order, error)
}

type OrdersHandler struct {
	logger *applogger.Logger
	orders OrderManager
}

func NewOrdersHandler(logger *applogger.Logger, orders OrderManager) *OrdersHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &OrdersHandler{logger: logger, orders: orders}
}

func (h *OrdersHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/orders")
	g.POST("/:id/fill", h.Fill)
	g.POST("/:id/close", h.Close)
}

func (h *OrdersHandler) Fill(c echo.Context) error {
	req := &models.FillOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	price, err := decimal.NewFromString(req.EntryPrice)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("entry_price_invalid", "entry_price", err.Error(), http.StatusBadRequest))
	}
	o, err := h.orders.Fill(c.Request().Context(), req.ID, price)
	if err != nil {
		h.logger.Warn("order fill rejected", applogger.String("order_id", req.ID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, o)
}

func (h *OrdersHandler) Close(c echo.Context) error {
	req := &models.CloseOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	price, err := decimal.NewFromString(req.ClosePrice)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("close_price_invalid", "close_price", err.Error(), http.StatusBadRequest))
	}
	o, err := h.orders.Close(c.Request().Context(), req.ID, price, models.CloseReason(req.Reason))
	if err != nil {
		h.logger.Warn("order close rejected", applogger.String("order_id", req.ID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, o)
}
