package catalog

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/wencm/recetona-go/internal/errs"
)

// testDataset is a minimal well-formed dataset in the scraper's CSV layout.
const testDataset = `product_id,product_name,price_unit,unit_size,size_format,category,subcategory,subsubcategory,ingredientes
1,Leche entera,1.05,1,L,Lacteos,Leche,,leche de vaca
2,Leche desnatada,0.95,1,L,Lacteos,Leche,,leche desnatada de vaca
3,Pan de molde,1.40,460,g,Panaderia,Pan,Pan de molde,"harina de trigo, agua, levadura"
4,Tomate frito,0.85,400,g,Conservas,Salsas,,"tomate, aceite de girasol, sal"
`

// loadTestSnapshot parses testDataset and fails the test on any error.
func loadTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	res, err := Read(strings.NewReader(testDataset), slog.Default())
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if res.Skipped != 0 {
		t.Fatalf("want 0 skipped rows, got %d", res.Skipped)
	}
	return res.Snapshot
}

func Test_Load_ValidDataset(t *testing.T) {
	t.Parallel()
	snap := loadTestSnapshot(t)

	if snap.Len() != 4 {
		t.Fatalf("want 4 records, got %d", snap.Len())
	}

	rec, err := snap.Fetch("3")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.Name != "Pan de molde" || rec.PriceUnit != 1.40 {
		t.Errorf("record 3: got %q / %v", rec.Name, rec.PriceUnit)
	}
	if !strings.Contains(rec.Ingredients, "levadura") {
		t.Errorf("quoted ingredient list not parsed: %q", rec.Ingredients)
	}
}

func Test_Load_InvalidRowsSkippedNotFatal(t *testing.T) {
	t.Parallel()

	const dirty = `product_id,product_name,price_unit,category
1,Leche entera,1.05,Lacteos
,Sin identificador,2.00,Lacteos
2,Precio roto,abc,Lacteos
3,Precio coma,"1,20",Lacteos
`
	res, err := Read(strings.NewReader(dirty), slog.Default())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Loaded != 2 {
		t.Errorf("want 2 loaded, got %d", res.Loaded)
	}
	if res.Skipped != 2 {
		t.Errorf("want 2 skipped, got %d", res.Skipped)
	}

	// Decimal comma prices must parse, not be rejected.
	rec, err := res.Snapshot.Fetch("3")
	if err != nil {
		t.Fatalf("fetch 3: %v", err)
	}
	if rec.PriceUnit != 1.20 {
		t.Errorf("decimal comma price: want 1.20, got %v", rec.PriceUnit)
	}
}

func Test_Load_MissingIDColumnIsFatal(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader("name,price\nLeche,1.05\n"), slog.Default())
	if err == nil {
		t.Fatal("want error for dataset without product_id column")
	}
}

func Test_Fetch_UnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()
	snap := loadTestSnapshot(t)

	_, err := snap.Fetch("nonexistent-id")
	if err == nil {
		t.Fatal("want not-found error")
	}
	if !errs.IsNotFound(err) {
		t.Errorf("want errs.ErrNotFound, got %v", err)
	}
}

func Test_Search_LecheRanksAboveOthers(t *testing.T) {
	t.Parallel()
	snap := loadTestSnapshot(t)

	matches := snap.Search("leche", 2)
	if len(matches) != 2 {
		t.Fatalf("want 2 matches, got %d", len(matches))
	}
	for _, m := range matches {
		if !strings.Contains(strings.ToLower(m.Record.Name), "leche") {
			t.Errorf("non-leche record ranked in top 2: %q", m.Record.Name)
		}
	}
	// Equal-tier matches break ties by ascending id.
	if matches[0].Record.ID != "1" || matches[1].Record.ID != "2" {
		t.Errorf("tie-break order: got %s, %s", matches[0].Record.ID, matches[1].Record.ID)
	}
}

func Test_Search_TiersOrdered(t *testing.T) {
	t.Parallel()
	snap := loadTestSnapshot(t)

	// Exact name match outranks a prefix match.
	matches := snap.Search("leche entera", 10)
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	if matches[0].Record.ID != "1" {
		t.Errorf("exact match should rank first, got id %s", matches[0].Record.ID)
	}

	// Fuzzy overlap still finds records when no substring matches.
	matches = snap.Search("tomate sal girasol", 10)
	if len(matches) == 0 {
		t.Fatal("fuzzy search found nothing")
	}
	if matches[0].Record.ID != "4" {
		t.Errorf("want tomate frito first, got id %s", matches[0].Record.ID)
	}
}

func Test_Search_EmptyQueryReturnsNothing(t *testing.T) {
	t.Parallel()
	snap := loadTestSnapshot(t)

	if got := snap.Search("   ", 10); len(got) != 0 {
		t.Errorf("want no matches for blank query, got %d", len(got))
	}
}

func Test_Store_SwapIsAtomic(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if store.Snapshot().Len() != 0 {
		t.Fatalf("new store should start empty")
	}

	snap := loadTestSnapshot(t)
	old := store.Swap(snap)
	if old.Len() != 0 {
		t.Errorf("swap should return the previous snapshot")
	}
	if store.Snapshot().Len() != 4 {
		t.Errorf("published snapshot not visible")
	}
}

func Test_CardText_Deterministic(t *testing.T) {
	t.Parallel()
	snap := loadTestSnapshot(t)

	rec, _ := snap.Fetch("1")
	a, b := rec.CardText(), rec.CardText()
	if a != b {
		t.Fatal("CardText is not deterministic")
	}
	for _, want := range []string{"Leche entera", "Lacteos", "1.05 EUR", "leche de vaca"} {
		if !strings.Contains(a, want) {
			t.Errorf("card text missing %q:\n%s", want, a)
		}
	}
}
