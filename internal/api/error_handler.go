package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/dashboard"
	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

// NoDataMessage is shown when the selected range holds no readings.
const NoDataMessage = "no data in the selected date range; adjust the range"

type ErrorResponse struct {
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error to its HTTP status and client-facing message.
// The bool reports whether the error is a server fault worth logging.
func statusFor(err error) (int, string, bool) {
	var (
		he  *echo.HTTPError
		ves validator.ValidationErrors
	)
	switch {
	case errors.Is(err, occupancy.ErrNoDataInRange):
		return http.StatusNotFound, NoDataMessage, false
	case errors.As(err, &ves):
		return http.StatusBadRequest, ves.Error(), false
	case errors.Is(err, dashboard.ErrInvalidRange),
		errors.Is(err, dashboard.ErrInvalidQuery),
		errors.Is(err, occupancy.ErrInvalidGranularity):
		return http.StatusBadRequest, err.Error(), false
	case errors.Is(err, dashboard.ErrLotNotFound):
		return http.StatusNotFound, err.Error(), false
	case errors.Is(err, store.ErrCircuitOpen), errors.Is(err, dashboard.ErrFetchFailed):
		return http.StatusServiceUnavailable, "data source unavailable, try again later", true
	case errors.Is(err, occupancy.ErrConfiguration):
		return http.StatusInternalServerError, "lot configuration error", true
	case errors.Is(err, occupancy.ErrPrecondition):
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), true
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, msg, he.Code >= http.StatusInternalServerError
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), true
	}
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg, serverFault := statusFor(err)
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if serverFault {
		s.logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{
		Message:   msg,
		Code:      code,
		RequestID: requestID,
	})
}
