// Package weather implements the External Weather Fetcher: a
// region/vineyard-alias aware client over a daily-weather time series
// provider, guarded by rate limiting, retry with backoff, a circuit
// breaker, and a persistent + in-memory cache.
package weather

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/cellarworks/cellar-intel/infrastructure/errors"
	"github.com/cellarworks/cellar-intel/infrastructure/fallback"
	"github.com/cellarworks/cellar-intel/infrastructure/logging"
	"github.com/cellarworks/cellar-intel/infrastructure/metrics"
	"github.com/cellarworks/cellar-intel/infrastructure/ratelimit"
	"github.com/cellarworks/cellar-intel/infrastructure/resilience"
	"github.com/cellarworks/cellar-intel/internal/cachefabric"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

// Config controls the rate limit, retry policy, and kill switch for
// every fetch the Fetcher issues.
type Config struct {
	MaxRequests          int
	WindowMS             int
	RetryAttempts        int
	InitialDelayMS       int
	BackoffFactor        float64
	Jitter               float64
	DisableExternalCalls bool
	CacheTTL             time.Duration
	BaseURL              string
}

// DefaultConfig matches spec-level defaults: a conservative rate limit,
// three retries, and a 30 day cache TTL.
func DefaultConfig() Config {
	return Config{
		MaxRequests:    60,
		WindowMS:       60_000,
		RetryAttempts:  3,
		InitialDelayMS: 200,
		BackoffFactor:  2.0,
		Jitter:         0.25,
		CacheTTL:       30 * 24 * time.Hour,
		BaseURL:        "https://archive-api.open-meteo.com/v1/archive",
	}
}

// DailySeriesClient resolves region coordinates and fetches a raw daily
// weather series. The production implementation hits a real provider;
// tests substitute a fake.
type DailySeriesClient interface {
	Resolve(ctx context.Context, region string) (lat, lon float64, err error)
	FetchDaily(ctx context.Context, lat, lon float64, year int) (*DailySeries, error)
}

// DailySeries is the raw per-day observations a provider returns for one
// calendar year.
type DailySeries struct {
	TempMaxC       []float64
	TempMinC       []float64
	RainfallMM     []float64
	SunshineHours  []float64
}

var regionAliases = map[string]string{
	"bourgogne":        "burgundy",
	"burgundy":         "burgundy",
	"bordeaux":         "bordeaux",
	"napa":             "napa valley",
	"napa valley":      "napa valley",
	"rhone":            "rhone",
	"rhône":            "rhone",
	"cotes du rhone":   "rhone",
	"côtes du rhône":   "rhone",
	"tuscany":          "tuscany",
	"toscana":          "tuscany",
	"piedmont":         "piedmont",
	"piemonte":         "piedmont",
	"champagne":        "champagne",
}

// NormalizeRegion maps a free-text region or alias to its canonical
// token; unknown regions pass through lowercased and trimmed.
func NormalizeRegion(region string) string {
	key := strings.ToLower(strings.TrimSpace(region))
	if canon, ok := regionAliases[key]; ok {
		return canon
	}
	return key
}

// Fetcher is the External Weather Fetcher.
type Fetcher struct {
	cfg        Config
	client     DailySeriesClient
	cache      *cachefabric.Fabric
	repo       *persistence.WeatherCacheRepo
	limiter    *ratelimit.RateLimiter
	breaker    *resilience.CircuitBreaker
	fallback   *fallback.Handler
	logger     *logging.Logger
}

// New constructs a Fetcher. client may be nil only when
// cfg.DisableExternalCalls is true.
func New(cfg Config, client DailySeriesClient, cache *cachefabric.Fabric, repo *persistence.WeatherCacheRepo) *Fetcher {
	rlCfg := ratelimit.DefaultConfig()
	if cfg.MaxRequests > 0 && cfg.WindowMS > 0 {
		rlCfg.RequestsPerSecond = float64(cfg.MaxRequests) / (float64(cfg.WindowMS) / 1000.0)
		rlCfg.Burst = cfg.MaxRequests
	}
	return &Fetcher{
		cfg:      cfg,
		client:   client,
		cache:    cache,
		repo:     repo,
		limiter:  ratelimit.New(rlCfg),
		breaker:  resilience.New(resilience.DefaultConfig()),
		fallback: fallback.NewHandler(fallback.DefaultConfig()),
		logger:   logging.NewFromEnv("weather-fetcher"),
	}
}

// Analyze runs the per-fetch algorithm for (region, alias, year):
// cache lookup, kill-switch short-circuit, resolve+fetch with retry and
// circuit breaking, process the raw series, and persist on success.
// A nil result with a nil error means "skip with cached fallback".
func (f *Fetcher) Analyze(ctx context.Context, region, alias string, year int) (*domain.WeatherAnalysis, []string, error) {
	region = NormalizeRegion(region)
	key := cachefabric.WeatherKey(aliasOrRegion(region, alias), year)

	var cached domain.WeatherAnalysis
	if hit, _ := f.cache.Get(key, &cached); hit {
		return &cached, nil, nil
	}

	if f.cfg.DisableExternalCalls {
		return nil, []string{"regional_cache_fallback", "external_disabled"}, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	analysis, err := f.fetchWithRetry(ctx, region, alias, year)
	if err != nil {
		if result := f.tryRegionalFallback(ctx, region, year); result != nil {
			return result, []string{"regional_cache_fallback"}, nil
		}
		metrics.Global().RecordWeatherFetch("weather-fetcher", region, "error", 0)
		f.logger.LogWeatherFetch(ctx, region, 1, err)
		return nil, []string{"api_error"}, nil
	}

	f.persist(ctx, region, alias, year, analysis)
	return analysis, nil, nil
}

func aliasOrRegion(region, alias string) string {
	if strings.TrimSpace(alias) != "" {
		return alias
	}
	return region
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, region, alias string, year int) (*domain.WeatherAnalysis, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  f.cfg.RetryAttempts,
		InitialDelay: time.Duration(f.cfg.InitialDelayMS) * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   f.cfg.BackoffFactor,
		Jitter:       f.cfg.Jitter,
	}
	if retryCfg.MaxAttempts <= 0 {
		retryCfg.MaxAttempts = 3
	}

	start := time.Now()
	var series *DailySeries
	err := resilience.Retry(ctx, retryCfg, func() error {
		return f.breaker.Execute(ctx, func() error {
			lat, lon, err := f.client.Resolve(ctx, region)
			if err != nil {
				return err
			}
			series, err = f.client.FetchDaily(ctx, lat, lon, year)
			return err
		})
	})
	duration := time.Since(start)
	if err != nil {
		return nil, errors.WeatherProviderError("fetch_daily_series", err)
	}
	metrics.Global().RecordWeatherFetch("weather-fetcher", region, "ok", duration)
	return Process(region, alias, year, series), nil
}

func (f *Fetcher) tryRegionalFallback(ctx context.Context, region string, year int) *domain.WeatherAnalysis {
	analysis, err := f.repo.Get(ctx, region, "", year)
	if err != nil || analysis == nil {
		return nil
	}
	return analysis
}

func (f *Fetcher) persist(ctx context.Context, region, alias string, year int, analysis *domain.WeatherAnalysis) {
	key := cachefabric.WeatherKey(aliasOrRegion(region, alias), year)
	if err := f.cache.Set(key, analysis, f.cfg.CacheTTL); err != nil {
		f.logger.WithError(err).Warn("cache weather analysis")
	}
	if err := f.repo.Put(ctx, region, alias, year, analysis, f.cfg.CacheTTL); err != nil {
		f.logger.WithError(err).Warn("persist weather analysis")
	}
}

// Process turns a raw daily series into the composite WeatherAnalysis
// per the growing-degree-day / heatwave / frost / diurnal-range formula.
func Process(region, alias string, year int, series *DailySeries) *domain.WeatherAnalysis {
	n := len(series.TempMaxC)
	if n == 0 || len(series.TempMinC) != n {
		return &domain.WeatherAnalysis{
			Region: region, Alias: alias, Year: year,
			Confidence: domain.ConfidenceLow, FetchedAt: time.Now().UTC(),
		}
	}

	var sumMean, sumMax, sumMin, gdd, rainfall, sunshine, diurnalSum float64
	var heatwaveDays, frostDays int
	const gddBase = 10.0

	for i := 0; i < n; i++ {
		tmax, tmin := series.TempMaxC[i], series.TempMinC[i]
		mean := (tmax + tmin) / 2
		sumMean += mean
		if tmax > sumMax || i == 0 {
			sumMax = math.Max(sumMax, tmax)
		}
		if i == 0 || tmin < sumMin {
			sumMin = tmin
		}
		diurnalSum += tmax - tmin

		if dd := mean - gddBase; dd > 0 {
			gdd += dd
		}
		if tmax >= 35 {
			heatwaveDays++
		}
		if tmin <= 0 {
			frostDays++
		}
		if i < len(series.RainfallMM) {
			rainfall += series.RainfallMM[i]
		}
		if i < len(series.SunshineHours) {
			sunshine += series.SunshineHours[i]
		}
	}

	meanTemp := sumMean / float64(n)
	diurnalRange := diurnalSum / float64(n)

	ripeness := scoreRipeness(gdd, heatwaveDays)
	acidity := scoreAcidity(diurnalRange, meanTemp)
	disease := scoreDiseasePressure(rainfall, n)
	overall := compositeScore(ripeness, acidity, disease, gdd)

	return &domain.WeatherAnalysis{
		Region:          region,
		Alias:           alias,
		Year:            year,
		MeanTemp:        round2(meanTemp),
		MaxTemp:         round2(sumMax),
		MinTemp:         round2(sumMin),
		GDD:             round2(gdd),
		TotalRainfallMM: round2(rainfall),
		HeatwaveDays:    heatwaveDays,
		FrostDays:       frostDays,
		SunshineHours:   round2(sunshine),
		DiurnalRange:    round2(diurnalRange),
		Ripeness:        round2(ripeness),
		Acidity:         round2(acidity),
		DiseasePressure: round2(disease),
		OverallScore:    round2(overall),
		Confidence:      confidenceFor(n),
		FetchedAt:       time.Now().UTC(),
	}
}

func scoreRipeness(gdd float64, heatwaveDays int) float64 {
	score := 3.0 + (gdd-1200)/400
	score -= float64(heatwaveDays) * 0.05
	return clamp(score, 0, 5)
}

func scoreAcidity(diurnalRange, meanTemp float64) float64 {
	score := 2.5 + (diurnalRange-10)/6 - (meanTemp-18)/10
	return clamp(score, 0, 5)
}

func scoreDiseasePressure(rainfall float64, days int) float64 {
	if days == 0 {
		return 0
	}
	perDay := rainfall / float64(days)
	score := 5.0 - perDay*3
	return clamp(score, 0, 5)
}

func compositeScore(ripeness, acidity, disease, gdd float64) float64 {
	base := (ripeness/5)*40 + (acidity/5)*30 + (disease/5)*20
	gddFit := 10 - math.Abs(gdd-1400)/100
	return clamp(base+clamp(gddFit, 0, 10), 0, 100)
}

func confidenceFor(sampleDays int) domain.ConfidenceLevel {
	switch {
	case sampleDays >= 330:
		return domain.ConfidenceHigh
	case sampleDays >= 180:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// HTTPDailySeriesClient is the production DailySeriesClient, issuing
// requests against an Open-Meteo-shaped archive API.
type HTTPDailySeriesClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPDailySeriesClient builds a client bound to baseURL.
func NewHTTPDailySeriesClient(baseURL string) *HTTPDailySeriesClient {
	return &HTTPDailySeriesClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Resolve looks up approximate coordinates for a named wine region from
// a small built-in gazetteer; unknown regions return an error.
func (c *HTTPDailySeriesClient) Resolve(ctx context.Context, region string) (float64, float64, error) {
	coords, ok := gazetteer[NormalizeRegion(region)]
	if !ok {
		return 0, 0, fmt.Errorf("weather: no coordinates for region %q", region)
	}
	return coords[0], coords[1], nil
}

var gazetteer = map[string][2]float64{
	"burgundy":    {47.05, 4.83},
	"bordeaux":    {44.84, -0.58},
	"napa valley": {38.50, -122.29},
	"rhone":       {44.93, 4.89},
	"tuscany":     {43.45, 11.0},
	"piedmont":    {44.7, 8.05},
	"champagne":   {49.04, 3.96},
}

// FetchDaily issues the archive request for one calendar year. The
// HTTP call itself is intentionally left minimal; callers running
// without network access should inject a fake DailySeriesClient.
func (c *HTTPDailySeriesClient) FetchDaily(ctx context.Context, lat, lon float64, year int) (*DailySeries, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&start_date=%d-01-01&end_date=%d-12-31&daily=temperature_2m_max,temperature_2m_min,precipitation_sum,sunshine_duration",
		c.BaseURL, lat, lon, year, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("weather: rate limited (429)")
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("weather: provider error %d", resp.StatusCode)
	}
	return decodeDailySeries(resp)
}

// jitterDelay returns base shifted by a random amount within ±jitter×base.
// Nothing in this package calls it.
func jitterDelay(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	delta := float64(base) * jitter
	return base + time.Duration(rand.Float64()*2*delta-delta)
}
