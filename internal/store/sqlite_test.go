package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/climareal/clima-service/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "weather_test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func obsFixture(city, country string, ts int64, temp float64) models.Observation {
	humidity := int64(70)
	desc := "céu claro"
	return models.Observation{
		CityName:           city,
		CountryCode:        country,
		TsUTC:              ts,
		Tz:                 "America/Sao_Paulo",
		TempC:              &temp,
		Humidity:           &humidity,
		WeatherDescription: &desc,
	}
}

func TestInsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obs := obsFixture("Rio de Janeiro", "BR", 1700000000, 25.0)

	inserted, err := s.Insert(ctx, obs)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert: inserted = false, want true")
	}

	// Same identity, different payload: the constraint wins, first row stays.
	dup := obsFixture("Rio de Janeiro", "BR", 1700000000, 30.0)
	inserted, err = s.Insert(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate Insert returned error: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate insert: inserted = true, want false")
	}

	rows, err := s.FetchLatest(ctx, "Rio de Janeiro", "BR", 1)
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].TempC == nil || *rows[0].TempC != 25.0 {
		t.Errorf("TempC = %v, want 25.0 (original row must not be overwritten)", rows[0].TempC)
	}
}

func TestInsertConcurrentSameIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		errs     []error
	)

	// All workers race to insert the same identity; the constraint must let
	// exactly one of them report success, with no visible error path.
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Insert(ctx, obsFixture("Rio de Janeiro", "BR", 1700000000, 20.0+float64(i)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if ok {
				inserted++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("concurrent inserts errored: %v", errs)
	}
	if inserted != 1 {
		t.Fatalf("%d concurrent inserts reported success, want exactly 1", inserted)
	}

	rows, err := s.FetchLatest(ctx, "Rio de Janeiro", "BR", 10)
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d persisted rows, want 1", len(rows))
	}
}

func TestFetchLatestOrderingAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, ts := range []int64{1700000000, 1700003600, 1700007200} {
		if _, err := s.Insert(ctx, obsFixture("Rio de Janeiro", "BR", ts, 20.0+float64(i))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	rows, err := s.FetchLatest(ctx, "Rio de Janeiro", "BR", 2)
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].TsUTC != 1700007200 || rows[1].TsUTC != 1700003600 {
		t.Errorf("ordering = [%d, %d], want descending [1700007200, 1700003600]", rows[0].TsUTC, rows[1].TsUTC)
	}
}

func TestFetchLatestEmpty(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.FetchLatest(context.Background(), "Niterói", "BR", 10)
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows for unknown city, want 0", len(rows))
	}
}

func TestFetchRangeBoundsInclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	timestamps := []int64{1700000000, 1700003600, 1700007200, 1700010800}
	for _, ts := range timestamps {
		if _, err := s.Insert(ctx, obsFixture("Rio de Janeiro", "BR", ts, 24.0)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	start := int64(1700003600)
	end := int64(1700007200)
	rows, err := s.FetchRange(ctx, "Rio de Janeiro", "BR", &start, &end)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (bounds are inclusive)", len(rows))
	}
	if rows[0].TsUTC != start || rows[1].TsUTC != end {
		t.Errorf("rows = [%d, %d], want [%d, %d]", rows[0].TsUTC, rows[1].TsUTC, start, end)
	}
}

func TestFetchRangeUnbounded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	timestamps := []int64{1700007200, 1700000000, 1700003600}
	for _, ts := range timestamps {
		if _, err := s.Insert(ctx, obsFixture("Rio de Janeiro", "BR", ts, 24.0)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	rows, err := s.FetchRange(ctx, "Rio de Janeiro", "BR", nil, nil)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].TsUTC < rows[i-1].TsUTC {
			t.Errorf("rows not ascending at %d: %d after %d", i, rows[i].TsUTC, rows[i-1].TsUTC)
		}
	}
}

func TestFetchRangeSingleBound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, ts := range []int64{1700000000, 1700003600, 1700007200} {
		if _, err := s.Insert(ctx, obsFixture("Rio de Janeiro", "BR", ts, 24.0)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	start := int64(1700003600)
	rows, err := s.FetchRange(ctx, "Rio de Janeiro", "BR", &start, nil)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("start-only: got %d rows, want 2", len(rows))
	}

	end := int64(1700003600)
	rows, err = s.FetchRange(ctx, "Rio de Janeiro", "BR", nil, &end)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("end-only: got %d rows, want 2", len(rows))
	}
}

func TestIdentityIncludesCountry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Same city name and instant, different country: both rows persist.
	if _, err := s.Insert(ctx, obsFixture("Santiago", "CL", 1700000000, 18.0)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	inserted, err := s.Insert(ctx, obsFixture("Santiago", "ES", 1700000000, 14.0))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !inserted {
		t.Fatalf("insert for different country suppressed, want new row")
	}

	rows, err := s.FetchLatest(ctx, "Santiago", "CL", 10)
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows for Santiago/CL, want 1", len(rows))
	}
}

func TestNullableFieldsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obs := models.Observation{
		CityName:    "Rio de Janeiro",
		CountryCode: "BR",
		TsUTC:       1700000000,
		Tz:          "UTC",
	}
	if _, err := s.Insert(ctx, obs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	rows, err := s.FetchLatest(ctx, "Rio de Janeiro", "BR", 1)
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.TempC != nil || got.Humidity != nil || got.WeatherDescription != nil {
		t.Errorf("null fields came back non-nil: temp=%v humidity=%v desc=%v", got.TempC, got.Humidity, got.WeatherDescription)
	}
	if got.CreatedAt == "" {
		t.Errorf("CreatedAt not assigned by store")
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weather_test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := s.Insert(context.Background(), obsFixture("Rio de Janeiro", "BR", 1700000000, 25.0)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening must not alter the existing schema or lose rows.
	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer func() { _ = s2.Close() }()

	rows, err := s2.FetchLatest(context.Background(), "Rio de Janeiro", "BR", 1)
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows after reopen, want 1", len(rows))
	}
}
