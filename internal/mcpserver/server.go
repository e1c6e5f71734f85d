// Package mcpserver exposes the catalog and the answer engine as MCP
// tools over stdio or streamable HTTP, so agent hosts can search
// products, fetch them and ask recipe questions.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wencm/recetona-go/internal/catalog"
	"github.com/wencm/recetona-go/internal/version"
)

// answerer is the slice of the answer engine the query_recipe tool
// needs. Tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Server is the MCP server for the recetona catalog.
type Server struct {
	catalog *catalog.Store
	engine  answerer
	log     *slog.Logger
	server  *mcp.Server
}

// New builds the MCP server and registers its tools. engine may be nil,
// in which case query_recipe reports that no model is configured.
func New(cat *catalog.Store, engine answerer, log *slog.Logger) (*Server, error) {
	if cat == nil {
		return nil, fmt.Errorf("mcpserver: catalog must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		catalog: cat,
		engine:  engine,
		log:     log,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "recetona",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on addr until ctx is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.Info("mcp server listening on http", "addr", addr)
	err := httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
