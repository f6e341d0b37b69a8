// Package mcpadapter exposes the gap interpreter and aggregate reads as
// MCP tools so narrative-generation collaborators can query them over
// stdio.
package mcpadapter

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

const Version = "1.0.0"

// New builds the MCP server with every tool registered.
func New(aggregates ports.AggregateReader) *server.MCPServer {
	s := server.NewMCPServer(
		"kpi-engine",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	classify := &ClassifyKindTool{}
	s.AddTool(classify.Definition(), classify.Handle)

	interpret := &InterpretGapTool{}
	s.AddTool(interpret.Definition(), interpret.Handle)

	validate := &ValidateRemedyTool{}
	s.AddTool(validate.Definition(), validate.Handle)

	aggregate := NewGetAggregateTool(aggregates)
	s.AddTool(aggregate.Definition(), aggregate.Handle)

	return s
}
