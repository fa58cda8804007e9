package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/enotrack/enotrack/internal/storage"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeStore struct {
	products  []storage.Product
	histories map[string][]storage.PriceObservation
}

func (f *fakeStore) Products(context.Context) ([]storage.Product, error) {
	return f.products, nil
}

func (f *fakeStore) Product(_ context.Context, code string) (*storage.Product, error) {
	for i := range f.products {
		if f.products[i].Code == code {
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) History(_ context.Context, code string) ([]storage.PriceObservation, error) {
	return f.histories[code], nil
}

func price(v float64) *float64 { return &v }

func fixtureStore() *fakeStore {
	seen := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return &fakeStore{
		products: []storage.Product{
			{
				Code:          "barolo-docg-2019",
				Name:          "Barolo DOCG 2019",
				Link:          "https://catalog.test/barolo-docg-2019",
				Category:      "/vino-online/",
				CurrentPrice:  price(15),
				FirstSeenAt:   seen,
				LastCheckedAt: seen,
			},
		},
		histories: map[string][]storage.PriceObservation{
			"barolo-docg-2019": {
				{Code: "barolo-docg-2019", Price: 20, Timestamp: seen},
				{Code: "barolo-docg-2019", Price: 18, Timestamp: seen.AddDate(0, 0, 5)},
				{Code: "barolo-docg-2019", Price: 15, Timestamp: seen.AddDate(0, 0, 9)},
			},
		},
	}
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(0, fixtureStore(), testLogger)

	rec := get(t, srv.Handler(), "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListProductsDecoratesFromHistory(t *testing.T) {
	srv := NewServer(0, fixtureStore(), testLogger)

	rec := get(t, srv.Handler(), "/api/products")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var products []storage.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}

	p := products[0]
	if !p.IsLowestAllTime {
		t.Error("current price equals the historical minimum, flag not set")
	}
	if !p.IsPriceOK {
		t.Error("current price sits below the historical average, flag not set")
	}
	// (20 - 15) / 20 = 25%.
	if p.DiscountPercentage != 25 {
		t.Errorf("discount = %v, want 25", p.DiscountPercentage)
	}
}

func TestGetProductNotFound(t *testing.T) {
	srv := NewServer(0, fixtureStore(), testLogger)

	rec := get(t, srv.Handler(), "/api/products/no-such-wine")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetProductByCode(t *testing.T) {
	srv := NewServer(0, fixtureStore(), testLogger)

	rec := get(t, srv.Handler(), "/api/products/barolo-docg-2019")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var p storage.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if p.Code != "barolo-docg-2019" {
		t.Errorf("code = %q", p.Code)
	}
	if !p.IsLowestAllTime {
		t.Error("derived flags missing on single-product response")
	}
}

func TestGetHistoryByCode(t *testing.T) {
	srv := NewServer(0, fixtureStore(), testLogger)

	rec := get(t, srv.Handler(), "/api/products/barolo-docg-2019/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var history []storage.PriceObservation
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("history rows = %d, want 3", len(history))
	}
}

func TestGetHistoryUnknownProduct(t *testing.T) {
	srv := NewServer(0, fixtureStore(), testLogger)

	rec := get(t, srv.Handler(), "/api/products/no-such-wine/history")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
