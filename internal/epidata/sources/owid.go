package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/i474232898/covid-data-explorer/internal/epidata"
	"github.com/sony/gobreaker"
)

// DefaultOWIDURL is the public Our World in Data COVID-19 export.
const DefaultOWIDURL = "https://covid.ourworldindata.org/data/owid-covid-data.csv"

// Columns the loader depends on; a missing one is an input-contract violation.
const (
	colISOCode         = "iso_code"
	colLocation        = "location"
	colDate            = "date"
	colNewCases        = "new_cases"
	colNewDeaths       = "new_deaths"
	colNewVaccinations = "new_vaccinations"
)

var requiredColumns = []string{colISOCode, colLocation, colDate, colNewCases, colNewDeaths, colNewVaccinations}

// OWIDSource implements the epidata.Source interface for the OWID CSV export.
type OWIDSource struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewOWIDSource creates a source reading url with client. maxRetries of zero
// disables retrying.
func NewOWIDSource(client *http.Client, url string, maxRetries int, logger *slog.Logger) *OWIDSource {
	if url == "" {
		url = DefaultOWIDURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OWIDSource{
		name: "owid",
		url:  url,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      maxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("owid"),
		logger:  logger,
	}
}

func (s *OWIDSource) Name() string {
	return s.name
}

// Fetch downloads and decodes the dataset.
func (s *OWIDSource) Fetch(ctx context.Context) ([]epidata.Observation, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/csv")
		return req, nil
	}

	start := time.Now()
	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", epidata.ErrLoad, s.url, err)
	}
	defer resp.Body.Close()

	obs, err := DecodeCSV(resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Info("dataset fetched",
		"source", s.name,
		"observations", len(obs),
		"duration", time.Since(start),
	)
	return obs, nil
}

// DecodeCSV parses the upstream table, keeping only rows whose iso_code is
// exactly three characters (country rows, not OWID_* aggregates).
func DecodeCSV(r io.Reader) ([]epidata.Observation, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", epidata.ErrLoad, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", epidata.ErrSchema, col)
		}
	}

	var obs []epidata.Observation
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: %v", epidata.ErrLoad, err)
		}

		iso := record[index[colISOCode]]
		if utf8.RuneCountInString(iso) != 3 {
			continue
		}

		o, err := parseRow(record, index)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", epidata.ErrLoad, line, err)
		}
		obs = append(obs, o)
	}

	return obs, nil
}

func parseRow(record []string, index map[string]int) (epidata.Observation, error) {
	date, err := time.Parse(epidata.DateLayout, strings.TrimSpace(record[index[colDate]]))
	if err != nil {
		return epidata.Observation{}, fmt.Errorf("parse date: %w", err)
	}

	o := epidata.Observation{
		// Cloned so the observation does not pin the whole CSV line in memory.
		Location: strings.Clone(record[index[colLocation]]),
		ISOCode:  strings.Clone(record[index[colISOCode]]),
		Date:     date,
	}

	if o.NewCases, err = parseNullable(record[index[colNewCases]]); err != nil {
		return o, fmt.Errorf("parse %s: %w", colNewCases, err)
	}
	if o.NewDeaths, err = parseNullable(record[index[colNewDeaths]]); err != nil {
		return o, fmt.Errorf("parse %s: %w", colNewDeaths, err)
	}
	if o.NewVaccinations, err = parseNullable(record[index[colNewVaccinations]]); err != nil {
		return o, fmt.Errorf("parse %s: %w", colNewVaccinations, err)
	}
	return o, nil
}

// parseNullable returns nil for empty cells.
func parseNullable(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
