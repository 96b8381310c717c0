package sources

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/covid-data-explorer/internal/epidata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `iso_code,continent,location,date,total_cases,new_cases,new_deaths,new_vaccinations
IND,Asia,India,2021-03-01,100,10,1,
IND,Asia,India,2021-03-02,112,12,,5000
OWID_WRL,,World,2021-03-01,1000,100,10,
FRA,Europe,France,2021-03-01,50,5.5,0,20
,,International,2021-03-01,1,1,0,
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeCSV_FiltersAndParses(t *testing.T) {
	obs, err := DecodeCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Len(t, obs, 3)
	for _, o := range obs {
		assert.Len(t, o.ISOCode, 3)
	}

	first := obs[0]
	assert.Equal(t, "India", first.Location)
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
	require.NotNil(t, first.NewCases)
	assert.Equal(t, 10.0, *first.NewCases)
	assert.Nil(t, first.NewVaccinations)

	assert.Nil(t, obs[1].NewDeaths)
	assert.Equal(t, 5000.0, *obs[1].NewVaccinations)
	assert.Equal(t, 5.5, *obs[2].NewCases)
}

func TestDecodeCSV_MissingColumn(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader("iso_code,location,date,new_cases\nIND,India,2021-03-01,1\n"))
	require.ErrorIs(t, err, epidata.ErrSchema)
	assert.Contains(t, err.Error(), "new_deaths")
}

func TestDecodeCSV_BadDate(t *testing.T) {
	input := "iso_code,location,date,new_cases,new_deaths,new_vaccinations\nIND,India,03/01/2021,1,1,1\n"
	_, err := DecodeCSV(strings.NewReader(input))
	require.ErrorIs(t, err, epidata.ErrLoad)
	assert.Contains(t, err.Error(), "line 2")
}

func TestDecodeCSV_BadNumber(t *testing.T) {
	input := "iso_code,location,date,new_cases,new_deaths,new_vaccinations\nIND,India,2021-03-01,many,1,1\n"
	_, err := DecodeCSV(strings.NewReader(input))
	require.ErrorIs(t, err, epidata.ErrLoad)
}

func TestDecodeCSV_Empty(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader(""))
	require.ErrorIs(t, err, epidata.ErrLoad)
}

func TestOWIDSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewOWIDSource(srv.Client(), srv.URL, 0, discardLogger())
	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, obs, 3)
	assert.Equal(t, "owid", src.Name())
}

func TestOWIDSource_ServerErrorNoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewOWIDSource(srv.Client(), srv.URL, 0, discardLogger())
	_, err := src.Fetch(context.Background())

	require.ErrorIs(t, err, epidata.ErrLoad)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOWIDSource_RetriesWhenConfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewOWIDSource(srv.Client(), srv.URL, 2, discardLogger())
	src.httpCfg.Backoff.InitialInterval = time.Millisecond

	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOWIDSource_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewOWIDSource(srv.Client(), srv.URL, 0, discardLogger())
	for i := 0; i < 3; i++ {
		_, err := src.Fetch(context.Background())
		require.Error(t, err)
	}

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(3), calls.Load())
}

func TestOWIDSource_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewOWIDSource(srv.Client(), srv.URL, 0, discardLogger())
	_, err := src.Fetch(ctx)
	require.ErrorIs(t, err, epidata.ErrLoad)
}
