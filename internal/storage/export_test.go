package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeReader struct {
	products  []Product
	histories map[string][]PriceObservation
}

func (f *fakeReader) Products(context.Context) ([]Product, error) {
	return f.products, nil
}

func (f *fakeReader) History(_ context.Context, code string) ([]PriceObservation, error) {
	return f.histories[code], nil
}

func price(v float64) *float64 { return &v }

func fixtureReader() *fakeReader {
	seen := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	return &fakeReader{
		products: []Product{
			{
				Code:             "barolo-docg-2019",
				Name:             "Barolo DOCG 2019",
				Link:             "https://catalog.test/barolo-docg-2019",
				Category:         "/vino-online/",
				CurrentPrice:     price(19.90),
				ConvenienceScore: price(7.5),
				FirstSeenAt:      seen,
				LastCheckedAt:    seen.AddDate(0, 1, 0),
			},
			{
				Code:          "chianti-classico",
				Name:          "Chianti Classico",
				Link:          "https://catalog.test/chianti-classico",
				Category:      "/vino-online/",
				FirstSeenAt:   seen,
				LastCheckedAt: seen,
			},
		},
		histories: map[string][]PriceObservation{
			"barolo-docg-2019": {
				{Code: "barolo-docg-2019", Price: 25.00, OrdinaryPrice: price(25.00), Timestamp: seen},
				{Code: "barolo-docg-2019", Price: 19.90, Tags: []string{"Best Seller", "Bio"}, Timestamp: seen.AddDate(0, 1, 0)},
			},
		},
	}
}

func TestExportProductsCSV(t *testing.T) {
	exporter, err := NewExporter(fixtureReader(), t.TempDir(), testLogger)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	path, err := exporter.ExportProductsCSV(context.Background())
	if err != nil {
		t.Fatalf("ExportProductsCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 products", len(rows))
	}
	if rows[0][0] != "code" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][4] != "19.90" {
		t.Errorf("current price cell = %q, want %q", rows[1][4], "19.90")
	}
	// Absent optional values export as empty cells, not zeros.
	if rows[2][4] != "" || rows[2][5] != "" {
		t.Errorf("unpriced product cells = %q, %q, want empty", rows[2][4], rows[2][5])
	}
}

func TestExportHistoryCSV(t *testing.T) {
	exporter, err := NewExporter(fixtureReader(), t.TempDir(), testLogger)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	path, err := exporter.ExportHistoryCSV(context.Background())
	if err != nil {
		t.Fatalf("ExportHistoryCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 observations", len(rows))
	}
	if rows[1][1] != "Barolo DOCG 2019" {
		t.Errorf("product name not joined onto observation row: %v", rows[1])
	}
	if rows[2][5] != "Best Seller,Bio" {
		t.Errorf("tags cell = %q", rows[2][5])
	}
}

func TestExportProductsJSON(t *testing.T) {
	exporter, err := NewExporter(fixtureReader(), t.TempDir(), testLogger)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	path, err := exporter.ExportProductsJSON(context.Background())
	if err != nil {
		t.Fatalf("ExportProductsJSON: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("products = %d, want 2", len(products))
	}
	if products[0].Code != "barolo-docg-2019" {
		t.Errorf("first product = %q", products[0].Code)
	}
	if products[1].CurrentPrice != nil {
		t.Errorf("unpriced product decoded with price %v", *products[1].CurrentPrice)
	}
}
