// Package catalog implements the product catalog store and its query
// surface. The catalog is an immutable snapshot of ProductRecords loaded
// from the scraped Mercadona dataset; refreshes build a complete new
// snapshot before publishing it atomically, so readers never observe a
// half-updated catalog.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// ProductRecord is a single catalog product. Records are immutable once
// loaded for a given snapshot and replaced wholesale on refresh.
type ProductRecord struct {
	// ID is the stable product identifier from the source dataset.
	ID string

	// Name is the product display name (e.g. "Leche entera Hacendado").
	Name string

	// PriceUnit is the unit price in euros.
	PriceUnit float64

	// UnitSize is the size of one unit (e.g. 1.5 for a 1.5 L bottle).
	UnitSize string

	// SizeFormat is the unit the size is expressed in (e.g. "L", "kg").
	SizeFormat string

	// Category is the top-level catalog category.
	Category string

	// Subcategory is the second-level catalog category.
	Subcategory string

	// Subsubcategory is the third-level catalog category.
	Subsubcategory string

	// Ingredients is the free-text ingredient list, possibly empty.
	Ingredients string
}

// CardText renders the record as the product card used for chunks and for
// fetch payloads. Field order is fixed so the output is deterministic.
func (r ProductRecord) CardText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Producto: %s\n", r.Name)
	fmt.Fprintf(&sb, "Categoria: %s", r.Category)
	if r.Subcategory != "" {
		fmt.Fprintf(&sb, " > %s", r.Subcategory)
	}
	if r.Subsubcategory != "" {
		fmt.Fprintf(&sb, " > %s", r.Subsubcategory)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Precio unidad: %.2f EUR", r.PriceUnit)
	if r.UnitSize != "" {
		fmt.Fprintf(&sb, " (%s %s)", r.UnitSize, r.SizeFormat)
	}
	sb.WriteString("\n")
	if r.Ingredients != "" {
		fmt.Fprintf(&sb, "Ingredientes: %s\n", r.Ingredients)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// URI returns the canonical recetona:// URI for this product, used by the
// search and fetch tool payloads.
func (r ProductRecord) URI() string {
	return "recetona://producto/" + r.ID
}

// searchText returns the normalized text that keyword search matches
// against: name plus the category path plus ingredients, lowercased with
// collapsed whitespace.
func (r ProductRecord) searchText() string {
	return Normalize(strings.Join([]string{
		r.Name, r.Category, r.Subcategory, r.Subsubcategory, r.Ingredients,
	}, " "))
}

// whitespaceRE collapses runs of whitespace during normalization.
var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize lowercases s, trims it, and collapses internal whitespace.
// Search queries and record search text go through the same normalization
// so matching is symmetric.
func Normalize(s string) string {
	return whitespaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// tokenRE extracts alphanumeric tokens (including accented letters common
// in the Spanish catalog) for fuzzy overlap scoring.
var tokenRE = regexp.MustCompile(`[a-z0-9áéíóúüñ]+`)

// Tokenize splits normalized text into search tokens, dropping single
// characters which match almost everything.
func Tokenize(s string) []string {
	raw := tokenRE.FindAllString(Normalize(s), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) > 1 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
