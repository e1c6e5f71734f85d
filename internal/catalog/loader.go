package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/wencm/recetona-go/internal/errs"
)

// LoadResult reports the outcome of a dataset load. Invalid rows are
// skipped and counted, never fatal — a single malformed record must not
// abort the whole catalog.
type LoadResult struct {
	// Snapshot is the fully built catalog snapshot.
	Snapshot *Snapshot

	// Loaded is the number of valid records in the snapshot.
	Loaded int

	// Skipped is the number of rows rejected by validation.
	Skipped int
}

// Load reads the product dataset CSV at path and builds an immutable
// Snapshot. The expected header matches the scraper's output:
//
//	product_id,product_name,price_unit,unit_size,size_format,category,subcategory,subsubcategory,ingredientes
//
// Column order is resolved from the header, so extra columns are ignored
// and reordered files still load.
func Load(path string, log *slog.Logger) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	res, err := Read(f, log)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return res, nil
}

// Read parses the dataset CSV from r. Split out from Load so tests can
// feed in-memory data.
func Read(r io.Reader, log *slog.Logger) (*LoadResult, error) {
	if log == nil {
		log = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // rows are validated per-field below

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := columnIndex(header)
	if _, ok := cols["product_id"]; !ok {
		return nil, fmt.Errorf("dataset has no product_id column")
	}

	var records []ProductRecord
	seen := make(map[string]bool)
	skipped := 0

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A structurally broken row is a record-level failure, not a
			// load failure.
			log.Warn("catalog: unreadable row skipped", slog.Int("line", line), slog.Any("error", err))
			skipped++
			continue
		}

		rec, err := parseRow(row, cols)
		if err != nil {
			log.Warn("catalog: invalid record skipped", slog.Int("line", line), slog.Any("error", err))
			skipped++
			continue
		}
		if seen[rec.ID] {
			log.Warn("catalog: duplicate product id skipped", slog.Int("line", line), slog.String("id", rec.ID))
			skipped++
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}

	return &LoadResult{
		Snapshot: NewSnapshot(records),
		Loaded:   len(records),
		Skipped:  skipped,
	}, nil
}

// columnIndex maps header names to their positions.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.ToLower(h))] = i
	}
	return cols
}

// field returns the named column of row, or "" when absent.
func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRow validates and converts one CSV row into a ProductRecord.
// Schema violations (missing identifier, non-numeric price) are
// validation errors that exclude the record.
func parseRow(row []string, cols map[string]int) (ProductRecord, error) {
	id := field(row, cols, "product_id")
	if id == "" {
		return ProductRecord{}, errs.Validation("missing product_id")
	}

	priceRaw := field(row, cols, "price_unit")
	price := 0.0
	if priceRaw != "" {
		// The source dataset occasionally uses a decimal comma.
		p, err := strconv.ParseFloat(strings.ReplaceAll(priceRaw, ",", "."), 64)
		if err != nil {
			return ProductRecord{}, errs.Validation("product %s: non-numeric price %q", id, priceRaw)
		}
		if p < 0 {
			return ProductRecord{}, errs.Validation("product %s: negative price %v", id, p)
		}
		price = p
	}

	name := field(row, cols, "product_name")
	if name == "" {
		name = "Producto " + id
	}

	return ProductRecord{
		ID:             id,
		Name:           name,
		PriceUnit:      price,
		UnitSize:       field(row, cols, "unit_size"),
		SizeFormat:     field(row, cols, "size_format"),
		Category:       field(row, cols, "category"),
		Subcategory:    field(row, cols, "subcategory"),
		Subsubcategory: field(row, cols, "subsubcategory"),
		Ingredients:    field(row, cols, "ingredientes"),
	}, nil
}
