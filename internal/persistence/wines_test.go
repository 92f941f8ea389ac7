package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

func wineColumns() []string {
	return []string{"id", "name", "producer", "region", "country", "wine_type",
		"grape_varieties", "style", "tasting_notes", "storage_hints", "created_at", "updated_at"}
}

func vintageColumnNames() []string {
	return []string{"id", "wine_id", "year", "quality_score", "weather_score", "critic_score",
		"peak_drinking_start", "peak_drinking_end", "weather_json", "procurement_json",
		"notes_text", "enriched_at", "created_at", "updated_at"}
}

func TestGetWineReturnsNotFoundWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(".*FROM wines.*").WillReturnRows(sqlmock.NewRows(wineColumns()))

	repo := NewWineRepo(NewStore(db))
	_, err = repo.GetWine(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrWineNotFound)
}

func TestGetWineScansGrapeVarieties(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(".*FROM wines.*").WillReturnRows(sqlmock.NewRows(wineColumns()).
		AddRow("w-1", "Opus One", "Opus One Winery", "Napa Valley", "United States",
			"Red", "{Cabernet Sauvignon,Merlot}", "full-bodied", "dark fruit", "cellar", now, now))

	repo := NewWineRepo(NewStore(db))
	wine, err := repo.GetWine(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, "Opus One", wine.Name)
	assert.Equal(t, []string{"Cabernet Sauvignon", "Merlot"}, wine.GrapeVarieties)
}

func TestCreateWineGeneratesIDWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(".*INSERT INTO wines.*").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewWineRepo(NewStore(db))
	wine, err := repo.CreateWine(context.Background(), &domain.Wine{Name: "Screaming Eagle", Producer: "Screaming Eagle Winery"})
	require.NoError(t, err)
	assert.NotEmpty(t, wine.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindWineByNameProducerReturnsNotFoundWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(".*FROM wines.*").WillReturnRows(sqlmock.NewRows(wineColumns()))

	repo := NewWineRepo(NewStore(db))
	_, err = repo.FindWineByNameProducer(context.Background(), "Unknown", "Nobody")
	assert.ErrorIs(t, err, domain.ErrWineNotFound)
}

func TestGetOrCreateVintageReturnsExistingRowWithoutInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(".*FROM vintages.*").WillReturnRows(sqlmock.NewRows(vintageColumnNames()).
		AddRow("v-1", "w-1", 2019, nil, nil, nil, nil, nil, "", "", "", nil, now, now))

	repo := NewWineRepo(NewStore(db))
	v, err := repo.GetOrCreateVintage(context.Background(), "w-1", 2019)
	require.NoError(t, err)
	assert.Equal(t, "v-1", v.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateVintageInsertsOnFirstReceipt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(".*FROM vintages.*").WillReturnRows(sqlmock.NewRows(vintageColumnNames()))
	mock.ExpectExec(".*INSERT INTO vintages.*").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(".*FROM vintages.*").WillReturnRows(sqlmock.NewRows(vintageColumnNames()).
		AddRow("v-new", "w-1", 2020, nil, nil, nil, nil, nil, "", "", "", nil, now, now))

	repo := NewWineRepo(NewStore(db))
	v, err := repo.GetOrCreateVintage(context.Background(), "w-1", 2020)
	require.NoError(t, err)
	assert.Equal(t, "v-new", v.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateVintageEnrichmentRunsUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(".*UPDATE vintages.*").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewWineRepo(NewStore(db))
	err = repo.UpdateVintageEnrichment(context.Background(), "v-1", 88.5, 91.0, `{"region":"napa"}`, `{"action":"Buy"}`)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
