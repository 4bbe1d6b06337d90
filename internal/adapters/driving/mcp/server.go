package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// instructions tells connecting assistants what the server is for and
// how the tools chain together.
const instructions = `longdoc turns long documents into structured reports.
Call process_document to chunk, embed, and synthesize a report from a
source (file path, URL, GitHub blob, or Google Drive file). Rerunning
the same source reuses its indexed vectors. query_document answers
ad-hoc questions against an indexed collection; collection_status and
the longdoc://collections/{collection} resource inspect stored state.`

// httpShutdownTimeout bounds graceful shutdown after ctx cancellation.
const httpShutdownTimeout = 5 * time.Second

// Server wires the pipeline ports into an MCP server.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// implementation describes this server during the MCP handshake.
// An empty version means a dev build.
func implementation(version string) *mcp.Implementation {
	if version == "" {
		version = "dev"
	}
	return &mcp.Implementation{
		Name:    "longdoc",
		Title:   "longdoc document reports",
		Version: version,
	}
}

// NewServer builds the server. version is the longdoc build version
// reported during the MCP handshake.
func NewServer(ports *Ports, version string) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(implementation(version), &mcp.ServerOptions{Instructions: instructions}),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves streamable HTTP MCP on addr until the context is
// cancelled, then drains in-flight sessions before returning.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
