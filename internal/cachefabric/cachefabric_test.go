package cachefabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFabric(t *testing.T, cfg Config) *Fabric {
	t.Helper()
	f := New("test-service", "test", cfg)
	t.Cleanup(f.Close)
	return f
}

func TestSetGetRoundTrip(t *testing.T) {
	f := newTestFabric(t, DefaultConfig())

	require.NoError(t, f.Set("key", map[string]int{"a": 1}, time.Minute))

	var out map[string]int
	ok, err := f.Get("key", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, out["a"])
}

func TestGetMissOnUnknownKey(t *testing.T) {
	f := newTestFabric(t, DefaultConfig())

	ok, err := f.Get("missing", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetExpiresAfterTTL(t *testing.T) {
	f := newTestFabric(t, DefaultConfig())
	require.NoError(t, f.Set("key", "value", 5*time.Millisecond))

	time.Sleep(15 * time.Millisecond)

	ok, err := f.Get("key", nil)
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired")
}

func TestEvictionRespectsMaxSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.Strategy = StrategyLRU
	f := newTestFabric(t, cfg)

	require.NoError(t, f.Set("a", "1", time.Minute))
	require.NoError(t, f.Set("b", "2", time.Minute))
	require.NoError(t, f.Set("c", "3", time.Minute))

	assert.LessOrEqual(t, f.GetStats().Entries, 2)
}

func TestLRUEvictsLeastRecentlyRead(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.Strategy = StrategyLRU
	f := newTestFabric(t, cfg)

	require.NoError(t, f.Set("a", "1", time.Minute))
	require.NoError(t, f.Set("b", "2", time.Minute))

	// Touch "a" so "b" becomes the least recently read.
	ok, _ := f.Get("a", nil)
	require.True(t, ok)

	require.NoError(t, f.Set("c", "3", time.Minute))

	okA, _ := f.Get("a", nil)
	okB, _ := f.Get("b", nil)
	okC, _ := f.Get("c", nil)
	assert.True(t, okA, "recently read entry should survive eviction")
	assert.False(t, okB, "least recently read entry should be evicted")
	assert.True(t, okC)
}

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.Strategy = StrategyLFU
	f := newTestFabric(t, cfg)

	require.NoError(t, f.Set("a", "1", time.Minute))
	require.NoError(t, f.Set("b", "2", time.Minute))

	for i := 0; i < 5; i++ {
		f.Get("a", nil)
	}

	require.NoError(t, f.Set("c", "3", time.Minute))

	okA, _ := f.Get("a", nil)
	okB, _ := f.Get("b", nil)
	assert.True(t, okA, "frequently read entry should survive eviction")
	assert.False(t, okB, "infrequently read entry should be evicted")
}

func TestDeleteRemovesEntry(t *testing.T) {
	f := newTestFabric(t, DefaultConfig())
	require.NoError(t, f.Set("key", "value", time.Minute))
	f.Delete("key")

	ok, _ := f.Get("key", nil)
	assert.False(t, ok)
}

func TestClearRemovesEverything(t *testing.T) {
	f := newTestFabric(t, DefaultConfig())
	require.NoError(t, f.Set("a", "1", time.Minute))
	require.NoError(t, f.Set("b", "2", time.Minute))
	f.Clear()

	assert.Equal(t, 0, f.GetStats().Entries)
}

func TestInvalidatePatternMatchesGlob(t *testing.T) {
	f := newTestFabric(t, DefaultConfig())
	require.NoError(t, f.Set("weather:alias:napa:2020", "x", time.Minute))
	require.NoError(t, f.Set("weather:alias:napa:2021", "x", time.Minute))
	require.NoError(t, f.Set("pairing:session:1", "x", time.Minute))

	removed := f.InvalidatePattern("weather:alias:napa:*")
	assert.Equal(t, 2, removed)

	ok, _ := f.Get("pairing:session:1", nil)
	assert.True(t, ok, "non-matching key should survive")
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newTestFabric(t, DefaultConfig())
	require.NoError(t, f.Set("a", "value-a", time.Minute))
	require.NoError(t, f.Set("b", "value-b", time.Minute))

	snapshot, err := f.Export()
	require.NoError(t, err)

	g := newTestFabric(t, DefaultConfig())
	require.NoError(t, g.Import(snapshot))

	var a, b string
	okA, _ := g.Get("a", &a)
	okB, _ := g.Get("b", &b)
	assert.True(t, okA)
	assert.True(t, okB)
	assert.Equal(t, "value-a", a)
	assert.Equal(t, "value-b", b)
}

func TestFingerprintIsOrderAndCaseInsensitive(t *testing.T) {
	a := Fingerprint("Napa Valley", "2020")
	b := Fingerprint("2020", "napa valley")
	assert.Equal(t, a, b, "fingerprint must be stable regardless of field order or case")
}

func TestFingerprintDiffersForDifferentInputs(t *testing.T) {
	a := Fingerprint("napa", "2020")
	b := Fingerprint("sonoma", "2020")
	assert.NotEqual(t, a, b)
}

func TestWeatherKeyLowercasesAlias(t *testing.T) {
	assert.Equal(t, "weather:alias:napa:2020", WeatherKey("Napa", 2020))
}
