package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sanspareilsmyn/parkinglens/internal/dashboard"
	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
)

const defaultLookbackDays = 7

type dashboardRequest struct {
	LotID       string `param:"id" validate:"required,max=32"`
	Start       string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End         string `query:"end" validate:"omitempty,datetime=2006-01-02"`
	Granularity string `query:"granularity" validate:"omitempty,max=16"`
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listLots(c echo.Context) error {
	lots, err := s.dashboard.ListLots(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lots)
}

func (s *Server) getDashboard(c echo.Context) error {
	var req dashboardRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	return s.respondDashboard(c, req)
}

// getDefaultDashboard serves the configured default lot.
func (s *Server) getDefaultDashboard(c echo.Context) error {
	var req dashboardRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	req.LotID = s.analytics.DefaultLotID
	return s.respondDashboard(c, req)
}

func (s *Server) respondDashboard(c echo.Context, req dashboardRequest) error {
	if err := c.Validate(&req); err != nil {
		return err
	}

	q, err := s.toQuery(req)
	if err != nil {
		return err
	}

	report, err := s.dashboard.Build(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// toQuery fills defaults: the last seven days through today in the lot
// timezone, at the configured granularity.
func (s *Server) toQuery(req dashboardRequest) (dashboard.Query, error) {
	today := s.now().In(s.loc)
	q := dashboard.Query{
		LotID:     strings.TrimSpace(req.LotID),
		StartDate: today.AddDate(0, 0, -defaultLookbackDays),
		EndDate:   today,
	}

	var err error
	if req.Start != "" {
		if q.StartDate, err = dashboard.ParseDate(req.Start, s.loc); err != nil {
			return q, err
		}
	}
	if req.End != "" {
		if q.EndDate, err = dashboard.ParseDate(req.End, s.loc); err != nil {
			return q, err
		}
	}

	granularity := req.Granularity
	if granularity == "" {
		granularity = s.analytics.DefaultGranularity
	}
	if q.Granularity, err = occupancy.ParseGranularity(granularity); err != nil {
		return q, err
	}
	return q, nil
}
