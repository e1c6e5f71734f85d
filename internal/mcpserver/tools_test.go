package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/wencm/recetona-go/internal/catalog"
)

type fakeEngine struct {
	answer string
	err    error
	calls  int
}

func (f *fakeEngine) Answer(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store := catalog.NewStore()
	store.Swap(catalog.NewSnapshot([]catalog.ProductRecord{
		{ID: "1001", Name: "Leche entera Hacendado", PriceUnit: 0.89, UnitSize: "1", SizeFormat: "L",
			Category: "Lácteos", Subcategory: "Leche"},
		{ID: "1002", Name: "Huevos frescos L", PriceUnit: 2.10, Category: "Huevos"},
		{ID: "1003", Name: "Patatas", PriceUnit: 1.50, Category: "Verduras",
			Ingredients: "patata"},
	}))
	return store
}

func newTestMCPServer(t *testing.T, engine answerer) *Server {
	t.Helper()
	s, err := New(testCatalog(t), engine, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestHandleSearch_ReturnsMatches(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, nil)

	res, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "leche"})
	if err != nil {
		t.Fatalf("handleSearch: %v", err)
	}
	if res != nil && res.IsError {
		t.Fatalf("unexpected tool error")
	}
	if out.Count == 0 {
		t.Fatal("expected at least one match for leche")
	}
	top := out.Results[0]
	if top.ID != "1001" {
		t.Errorf("expected product 1001 first, got %s", top.ID)
	}
	if top.URL != "recetona://producto/1001" {
		t.Errorf("unexpected url %q", top.URL)
	}
}

func TestHandleSearch_EmptyQuery(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, nil)

	res, _, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "   "})
	if err != nil {
		t.Fatalf("handleSearch: %v", err)
	}
	if res == nil || !res.IsError {
		t.Error("expected in-band tool error for empty query")
	}
}

func TestHandleSearch_LimitClamped(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, nil)

	for _, limit := range []int{-1, 0, 100} {
		_, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "a", Limit: limit})
		if err != nil {
			t.Fatalf("handleSearch limit %d: %v", limit, err)
		}
		if out.Count > maxSearchLimit {
			t.Errorf("limit %d: got %d results, want at most %d", limit, out.Count, maxSearchLimit)
		}
	}
}

func TestHandleFetch_Found(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, nil)

	res, out, err := s.handleFetch(context.Background(), nil, FetchInput{ID: "1001"})
	if err != nil {
		t.Fatalf("handleFetch: %v", err)
	}
	if res != nil && res.IsError {
		t.Fatal("unexpected tool error")
	}
	if out.Name != "Leche entera Hacendado" {
		t.Errorf("unexpected name %q", out.Name)
	}
	if out.Category != "Lácteos > Leche" {
		t.Errorf("unexpected category %q", out.Category)
	}
	if !strings.Contains(out.Card, "Precio unidad: 0.89 EUR") {
		t.Errorf("card missing price: %q", out.Card)
	}
	if out.URL != "recetona://producto/1001" {
		t.Errorf("unexpected url %q", out.URL)
	}
}

func TestHandleFetch_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, nil)

	res, _, err := s.handleFetch(context.Background(), nil, FetchInput{ID: "9999"})
	if err != nil {
		t.Fatalf("handleFetch: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatal("expected in-band not-found error")
	}
}

func TestHandleQueryRecipe_Success(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{answer: "Receta: tortilla"}
	s := newTestMCPServer(t, engine)

	res, out, err := s.handleQueryRecipe(context.Background(), nil, QueryRecipeInput{Question: "cena barata"})
	if err != nil {
		t.Fatalf("handleQueryRecipe: %v", err)
	}
	if res != nil && res.IsError {
		t.Fatal("unexpected tool error")
	}
	if out.Answer != engine.answer {
		t.Errorf("expected answer %q, got %q", engine.answer, out.Answer)
	}
}

func TestHandleQueryRecipe_ProviderFailure(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{err: fmt.Errorf("provider unavailable")}
	s := newTestMCPServer(t, engine)

	res, out, err := s.handleQueryRecipe(context.Background(), nil, QueryRecipeInput{Question: "cena"})
	if err != nil {
		t.Fatalf("handleQueryRecipe: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatal("expected in-band tool error on provider failure")
	}
	if out.Answer != "" {
		t.Errorf("failed call must not return a partial answer, got %q", out.Answer)
	}
}

func TestHandleQueryRecipe_NoEngine(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, nil)

	res, _, err := s.handleQueryRecipe(context.Background(), nil, QueryRecipeInput{Question: "cena"})
	if err != nil {
		t.Fatalf("handleQueryRecipe: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatal("expected in-band tool error when no engine is configured")
	}
}
