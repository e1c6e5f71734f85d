package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wencm/recetona-go/internal/cache"
	"github.com/wencm/recetona-go/internal/rag"
)

// CachePinger probes the embedding cache database.
type CachePinger struct {
	Store *cache.Store
}

func (p *CachePinger) Ping(ctx context.Context) error { return p.Store.Ping(ctx) }
func (p *CachePinger) Name() string                   { return "cache" }

// IndexPinger reports ready once the vector index holds entries. An
// empty index means ingestion has not run and every answer would be the
// no-data fallback.
type IndexPinger struct {
	Index rag.Index
}

func (p *IndexPinger) Ping(ctx context.Context) error {
	if pinger, ok := p.Index.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}
	if p.Index.Len() == 0 {
		return fmt.Errorf("index is empty, run refresh first")
	}
	return nil
}
func (p *IndexPinger) Name() string { return "index" }

// LLMPinger sends a minimal generation request to verify the chat model
// is reachable.
type LLMPinger struct {
	Model model.ToolCallingChatModel
}

func (p *LLMPinger) Ping(ctx context.Context) error {
	_, err := p.Model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("llm ping: %w", err)
	}
	return nil
}
func (p *LLMPinger) Name() string { return "llm" }

// EmbedderPinger embeds a short probe string to verify the embedding
// backend is reachable.
type EmbedderPinger struct {
	Embedder rag.Embedder
}

func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.Embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embedder ping: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embedder ping: empty vector")
	}
	return nil
}
func (p *EmbedderPinger) Name() string { return "embedder" }
