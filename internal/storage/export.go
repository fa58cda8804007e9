package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Reader is the read surface the exporters need.
type Reader interface {
	Products(ctx context.Context) ([]Product, error)
	History(ctx context.Context, code string) ([]PriceObservation, error)
}

// Exporter dumps the stored catalog to flat files for offline analysis.
type Exporter struct {
	store  Reader
	dir    string
	logger *slog.Logger
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(store Reader, dir string, logger *slog.Logger) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{
		store:  store,
		dir:    dir,
		logger: logger.With("component", "exporter"),
	}, nil
}

// ExportProductsCSV writes one row per product with its latest price and
// score. Returns the file path written.
func (e *Exporter) ExportProductsCSV(ctx context.Context) (string, error) {
	products, err := e.store.Products(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, "products.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"code", "name", "category", "link", "current_price", "convenience_score", "first_seen_at", "last_checked_at"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write CSV header: %w", err)
	}

	for _, p := range products {
		row := []string{
			p.Code,
			p.Name,
			p.Category,
			p.Link,
			formatOptFloat(p.CurrentPrice),
			formatOptFloat(p.ConvenienceScore),
			p.FirstSeenAt.Format(time.RFC3339),
			p.LastCheckedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	e.logger.Info("products exported", "path", path, "count", len(products))
	return path, nil
}

// ExportHistoryCSV writes every product's full observation history, one
// row per observation. Returns the file path written.
func (e *Exporter) ExportHistoryCSV(ctx context.Context) (string, error) {
	products, err := e.store.Products(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, "price_history.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"code", "name", "price", "ordinary_price", "comparative_price", "tags", "timestamp"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write CSV header: %w", err)
	}

	rows := 0
	for _, p := range products {
		history, err := e.store.History(ctx, p.Code)
		if err != nil {
			return "", err
		}
		for _, obs := range history {
			row := []string{
				obs.Code,
				p.Name,
				strconv.FormatFloat(obs.Price, 'f', 2, 64),
				formatOptFloat(obs.OrdinaryPrice),
				formatOptFloat(obs.ComparativePrice),
				strings.Join(obs.Tags, ","),
				obs.Timestamp.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("write CSV row: %w", err)
			}
			rows++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	e.logger.Info("history exported", "path", path, "rows", rows)
	return path, nil
}

// ExportProductsJSON writes the product list as an indented JSON array.
// Returns the file path written.
func (e *Exporter) ExportProductsJSON(ctx context.Context) (string, error) {
	products, err := e.store.Products(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, "products.json")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return "", fmt.Errorf("encode JSON: %w", err)
	}

	e.logger.Info("products exported", "path", path, "count", len(products))
	return path, nil
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
