package api

import (
	"errors"
	"net/http"
	"time"

	"SignalPilot/internal/domain/errs"
	xhttp "SignalPilot/pkg/http"
)

// statusByCode overrides the kind-based status for a few codes.
var statusByCode = map[string]int{
	"order_not_found":  http.StatusNotFound,
	"signal_throttled": http.StatusTooManyRequests,
}

// toAppError maps a domain error onto the HTTP error envelope.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var de *errs.Error
	if !errors.As(err, &de) {
		return xhttp.InternalError("internal error").WithError(err)
	}
	status, ok := statusByCode[de.Code]
	if !ok {
		switch de.Kind {
		case errs.KindValidation:
			status = http.StatusBadRequest
		case errs.KindResourceConflict:
			status = http.StatusConflict
		case errs.KindTransientExternal:
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusInternalServerError
		}
	}
	out := xhttp.NewAppError(de.Code, "", de.Detail, status).WithError(err)
	switch status {
	case http.StatusTooManyRequests:
		out.WithRetryAfter(2 * time.Second)
	case http.StatusServiceUnavailable:
		out.WithRetryAfter(5 * time.Second)
	}
	return out
}
