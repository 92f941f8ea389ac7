package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarworks/cellar-intel/internal/cachefabric"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

type fakeSeriesClient struct {
	series *DailySeries
	err    error
	calls  int
}

func (c *fakeSeriesClient) Resolve(ctx context.Context, region string) (float64, float64, error) {
	return 44.9, 4.8, nil
}

func (c *fakeSeriesClient) FetchDaily(ctx context.Context, lat, lon float64, year int) (*DailySeries, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.series, nil
}

func testFabric() *cachefabric.Fabric {
	return cachefabric.New("weather-fetcher-test", "weather", cachefabric.DefaultConfig())
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryAttempts = 2
	cfg.InitialDelayMS = 1
	cfg.Jitter = 0
	return cfg
}

func TestAnalyzeReturnsCachedAnalysisWithoutFetching(t *testing.T) {
	fabric := testFabric()
	client := &fakeSeriesClient{}
	f := New(fastConfig(), client, fabric, persistence.NewWeatherCacheRepo(persistence.NewStore(nil)))

	existing := &domain.WeatherAnalysis{Region: "burgundy", Year: 2021}
	require.NoError(t, fabric.Set(cachefabric.WeatherKey("burgundy", 2021), existing, time.Hour))

	analysis, reasons, err := f.Analyze(context.Background(), "burgundy", "", 2021)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, "burgundy", analysis.Region)
	assert.Empty(t, reasons)
	assert.Equal(t, 0, client.calls)
}

func TestAnalyzeShortCircuitsWhenExternalCallsDisabled(t *testing.T) {
	cfg := fastConfig()
	cfg.DisableExternalCalls = true
	f := New(cfg, nil, testFabric(), persistence.NewWeatherCacheRepo(persistence.NewStore(nil)))

	analysis, reasons, err := f.Analyze(context.Background(), "bordeaux", "", 2020)
	require.NoError(t, err)
	assert.Nil(t, analysis)
	assert.Contains(t, reasons, "external_disabled")
}

func TestAnalyzeFetchesProcessesAndPersistsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(".*INSERT INTO weather_cache.*").WillReturnResult(sqlmock.NewResult(0, 1))

	series := buildYearSeries(365, 24, 12, 2, 8)
	client := &fakeSeriesClient{series: series}
	fabric := testFabric()
	repo := persistence.NewWeatherCacheRepo(persistence.NewStore(db))
	f := New(fastConfig(), client, fabric, repo)

	analysis, reasons, err := f.Analyze(context.Background(), "napa", "", 2022)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, "napa valley", analysis.Region)
	assert.Empty(t, reasons)
	assert.Equal(t, 1, client.calls)
	require.NoError(t, mock.ExpectationsWereMet())

	hit, _ := fabric.Get(cachefabric.WeatherKey("napa valley", 2022), &domain.WeatherAnalysis{})
	assert.True(t, hit)
}

func TestAnalyzeFallsBackToRegionalCacheOnFetchFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(".*FROM weather_cache.*").WillReturnRows(sqlmock.NewRows([]string{"payload"}).
		AddRow(`{"region":"rhone","year":2022,"ripeness":3.5}`))

	client := &fakeSeriesClient{err: errors.New("provider unavailable")}
	repo := persistence.NewWeatherCacheRepo(persistence.NewStore(db))
	f := New(fastConfig(), client, testFabric(), repo)

	analysis, reasons, err := f.Analyze(context.Background(), "rhone", "", 2022)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, "rhone", analysis.Region)
	assert.Contains(t, reasons, "regional_cache_fallback")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzeReturnsAPIErrorReasonWithoutFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(".*FROM weather_cache.*").WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	client := &fakeSeriesClient{err: errors.New("provider unavailable")}
	repo := persistence.NewWeatherCacheRepo(persistence.NewStore(db))
	f := New(fastConfig(), client, testFabric(), repo)

	analysis, reasons, err := f.Analyze(context.Background(), "champagne", "", 2022)
	require.NoError(t, err)
	assert.Nil(t, analysis)
	assert.Contains(t, reasons, "api_error")
	require.NoError(t, mock.ExpectationsWereMet())
}
