package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/covid-data-explorer/internal/chart"
	"github.com/i474232898/covid-data-explorer/internal/common"
	"github.com/i474232898/covid-data-explorer/internal/dashboard"
	"github.com/i474232898/covid-data-explorer/internal/epidata"
)

var validate = validator.New()

// ReadinessChecker reports whether the service can answer data requests.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *dashboard.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/countries", func(c *fiber.Ctx) error {
		countries, err := service.Countries(c.UserContext())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{
			"countries": countries,
			"defaults":  service.Defaults().Countries,
		})
	})

	v1.Get("/bounds", func(c *fiber.Ctx) error {
		countries := countriesParam(c, service.Defaults().Countries)
		bounds, err := service.Bounds(c.UserContext(), countries)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{
			"countries": countries,
			"bounds":    bounds,
		})
	})

	v1.Get("/dashboard", func(c *fiber.Ctx) error {
		view, err := runExplore(c, service, true)
		if err != nil {
			return err
		}
		return c.JSON(view)
	})

	v1.Get("/series", func(c *fiber.Ctx) error {
		view, err := runExplore(c, service, false)
		if err != nil {
			return err
		}
		return c.JSON(view.Frame)
	})

	v1.Get("/summary", func(c *fiber.Ctx) error {
		view, err := runExplore(c, service, false)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"metric":  view.Controls.Metric,
			"summary": view.Summary,
		})
	})

	v1.Get("/chart", func(c *fiber.Ctx) error {
		view, err := runExplore(c, service, false)
		if err != nil {
			return err
		}
		return c.JSON(view.Chart)
	})

	v1.Get("/chart.html", func(c *fiber.Ctx) error {
		view, err := runExplore(c, service, false)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := chart.RenderHTML(&buf, view.Chart); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render chart")
		}
		c.Type("html")
		return c.Send(buf.Bytes())
	})

	v1.Get("/export.csv", func(c *fiber.Ctx) error {
		view, err := runExplore(c, service, false)
		if err != nil {
			return err
		}
		c.Attachment(view.ExportName)
		return c.Send(view.Export)
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		var req forecastQuery
		if err := req.bind(c, service.Defaults()); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		fv, err := service.Forecast(c.UserContext(), req.Country, req.Explore.controls())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fv)
	})
}

// RegisterOps wires health, readiness and metrics endpoints.
func RegisterOps(app *fiber.App, readiness ReadinessChecker, metrics http.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "covid-data-explorer",
		})
	})

	app.Get("/ready", func(c *fiber.Ctx) error {
		if err := readiness.CheckReadiness(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(metrics))
}

func runExplore(c *fiber.Ctx, service *dashboard.Service, withForecast bool) (dashboard.View, error) {
	var req exploreQuery
	if err := req.bind(c, service.Defaults()); err != nil {
		return dashboard.View{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return dashboard.View{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctrl := req.controls()
	if !withForecast {
		ctrl.Forecast = false
	}

	view, err := service.Run(c.UserContext(), ctrl)
	if err != nil {
		return dashboard.View{}, toHTTPError(err)
	}
	return view, nil
}

// toHTTPError maps domain errors to status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, epidata.ErrInvalidParams):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, epidata.ErrLoad), errors.Is(err, epidata.ErrSchema):
		return fiber.NewError(fiber.StatusServiceUnavailable, "dataset unavailable: "+err.Error())
	case errors.Is(err, epidata.ErrForecast):
		return fiber.NewError(fiber.StatusInternalServerError, "failed to produce forecast")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to process request")
	}
}

// exploreQuery holds the dashboard controls taken from the query string.
type exploreQuery struct {
	Countries []string
	Metric    string    `validate:"required,oneof=new_cases new_deaths new_vaccinations"`
	Start     time.Time `validate:"-"`
	End       time.Time `validate:"omitempty,gtefield=Start"`
	Smooth    bool
	Forecast  bool
}

func (q *exploreQuery) bind(c *fiber.Ctx, defaults dashboard.Controls) error {
	q.Countries = countriesParam(c, defaults.Countries)
	q.Metric = c.Query("metric", string(defaults.Metric))

	var err error
	if q.Start, err = dateParam(c, "start"); err != nil {
		return err
	}
	if q.End, err = dateParam(c, "end"); err != nil {
		return err
	}
	if q.Smooth, err = boolParam(c, "smooth"); err != nil {
		return err
	}
	if q.Forecast, err = boolParam(c, "forecast"); err != nil {
		return err
	}
	return nil
}

func (q exploreQuery) controls() dashboard.Controls {
	return dashboard.Controls{
		Countries: q.Countries,
		Metric:    epidata.Metric(q.Metric),
		Start:     q.Start,
		End:       q.End,
		Smooth:    q.Smooth,
		Forecast:  q.Forecast,
	}
}

// forecastQuery holds the query parameters for the forecast endpoint.
type forecastQuery struct {
	Country string `validate:"required"`
	Explore exploreQuery
}

func (f *forecastQuery) bind(c *fiber.Ctx, defaults dashboard.Controls) error {
	f.Country = c.Query("country")
	if err := f.Explore.bind(c, defaults); err != nil {
		return err
	}
	f.Explore.Countries = []string{f.Country}
	return nil
}

// countriesParam returns the selected countries. A missing parameter means the
// defaults and a present but empty one selects nothing. A single value is comma
// separated; repeated values are taken verbatim, so names containing commas stay
// selectable.
func countriesParam(c *fiber.Ctx, defaults []string) []string {
	args := c.Context().QueryArgs()
	if !args.Has("countries") {
		return append([]string{}, defaults...)
	}

	values := args.PeekMulti("countries")
	if len(values) == 1 {
		return common.Dedupe(common.SplitList(string(values[0])))
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		if name := strings.TrimSpace(string(v)); name != "" {
			names = append(names, name)
		}
	}
	return common.Dedupe(names)
}

// dateParam parses either a calendar date or RFC3339, normalized to UTC midnight.
func dateParam(c *fiber.Ctx, key string) (time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse(epidata.DateLayout, s); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		ts = ts.UTC()
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, errors.New("invalid " + key + " date; use YYYY-MM-DD or RFC3339")
}

func boolParam(c *fiber.Ctx, key string) (bool, error) {
	s := c.Query(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("invalid " + key + " flag; use true or false")
	}
	return b, nil
}
