package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wencm/recetona-go/internal/errs"
)

const (
	defaultSearchLimit = 8
	maxSearchLimit     = 25
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"keyword query matched against product names, categories and ingredients"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, 1 to 25 (default 8)"`
}

// SearchResult is one hit in the search tool output.
type SearchResult struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	URL   string  `json:"url"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// FetchInput is the input schema for the fetch tool.
type FetchInput struct {
	ID string `json:"id" jsonschema:"product id as returned by the search tool"`
}

// FetchOutput is the output schema for the fetch tool.
type FetchOutput struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PriceUnit   float64 `json:"price_unit"`
	UnitSize    string  `json:"unit_size,omitempty"`
	SizeFormat  string  `json:"size_format,omitempty"`
	Category    string  `json:"category"`
	Ingredients string  `json:"ingredients,omitempty"`
	URL         string  `json:"url"`
	Card        string  `json:"card"`
}

// QueryRecipeInput is the input schema for the query_recipe tool.
type QueryRecipeInput struct {
	Question string `json:"question" jsonschema:"recipe or meal-planning question in Spanish"`
}

// QueryRecipeOutput is the output schema for the query_recipe tool.
type QueryRecipeOutput struct {
	Answer string `json:"answer"`
}

func (s *Server) registerTools() {
	readOnly := &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the Mercadona product catalog by keyword",
		Annotations: readOnly,
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fetch",
		Description: "Fetch the full record of a catalog product by id",
		Annotations: readOnly,
	}, s.handleFetch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_recipe",
		Description: "Answer a recipe question grounded on the product catalog, with a shopping list and cost estimate",
		Annotations: readOnly,
	}, s.handleQueryRecipe)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query must not be empty"), SearchOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	matches := s.catalog.Snapshot().Search(input.Query, limit)
	out := SearchOutput{
		Results: make([]SearchResult, len(matches)),
		Count:   len(matches),
	}
	for i, m := range matches {
		out.Results[i] = SearchResult{
			ID:    m.Record.ID,
			Name:  m.Record.Name,
			Score: m.Score,
			URL:   m.Record.URI(),
		}
	}
	return nil, out, nil
}

func (s *Server) handleFetch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FetchInput,
) (*mcp.CallToolResult, FetchOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return toolError("id must not be empty"), FetchOutput{}, nil
	}

	rec, err := s.catalog.Snapshot().Fetch(input.ID)
	if err != nil {
		if errs.IsNotFound(err) {
			return toolError(fmt.Sprintf("product %q not found", input.ID)), FetchOutput{}, nil
		}
		return nil, FetchOutput{}, err
	}

	category := rec.Category
	if rec.Subcategory != "" {
		category += " > " + rec.Subcategory
	}
	if rec.Subsubcategory != "" {
		category += " > " + rec.Subsubcategory
	}

	return nil, FetchOutput{
		ID:          rec.ID,
		Name:        rec.Name,
		PriceUnit:   rec.PriceUnit,
		UnitSize:    rec.UnitSize,
		SizeFormat:  rec.SizeFormat,
		Category:    category,
		Ingredients: rec.Ingredients,
		URL:         rec.URI(),
		Card:        rec.CardText(),
	}, nil
}

func (s *Server) handleQueryRecipe(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryRecipeInput,
) (*mcp.CallToolResult, QueryRecipeOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return toolError("question must not be empty"), QueryRecipeOutput{}, nil
	}
	if s.engine == nil {
		return toolError("no model provider configured, recipe answers are unavailable"), QueryRecipeOutput{}, nil
	}

	answer, err := s.engine.Answer(ctx, input.Question)
	if err != nil {
		s.log.Error("query_recipe failed", "error", err)
		// A partial or fabricated answer is worse than a clear failure.
		return toolError(fmt.Sprintf("failed to answer question: %v", err)), QueryRecipeOutput{}, nil
	}
	return nil, QueryRecipeOutput{Answer: answer}, nil
}

// toolError reports an in-band tool failure so hosts can surface the
// message instead of treating the call as a protocol error.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
