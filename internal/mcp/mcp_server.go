// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the tnrpipe MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, store contract.RunStore, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tnrpipe Reduction Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		store:   store,
	}

	s.AddTool(mcp.NewTool("extract_intervals",
		mcp.WithDescription("Parse EIS timing logs and build the time intervals used to slice neutron events."),
		mcp.WithString("data_dir", mcp.Description("Directory containing the EIS timing logs."), mcp.Required()),
		mcp.WithString("pattern", mcp.Description("Glob pattern for timing logs. Defaults to '*.mpt'.")),
		mcp.WithString("exclude", mcp.Description("Skip files whose name contains this substring (e.g. 'fail').")),
		mcp.WithString("resolution", mcp.Description("Interval resolution."), mcp.Enum("per-file", "per-frequency")),
		mcp.WithNumber("gap_tolerance", mcp.Description("Largest gap in seconds between measurements that does not produce a hold interval.")),
		mcp.WithString("split_file", mcp.Description("When set, the split document is also written to this path.")),
	), h.handleExtractIntervals)

	s.AddTool(mcp.NewTool("describe_split",
		mcp.WithDescription("Summarize an existing split document: counts, time span and intervals."),
		mcp.WithString("split_file", mcp.Description("Path to the split JSON document."), mcp.Required()),
	), h.handleDescribeSplit)

	s.AddTool(mcp.NewTool("validate_package",
		mcp.WithDescription("Check that reduction results can be packaged, without writing anything."),
		mcp.WithString("split_file", mcp.Description("Path to the split JSON document."), mcp.Required()),
		mcp.WithString("reduced_dir", mcp.Description("Directory containing reduction result files."), mcp.Required()),
		mcp.WithString("template_file", mcp.Description("Reduction template XML."), mcp.Required()),
	), h.handleValidatePackage)

	s.AddTool(mcp.NewTool("package_dataset",
		mcp.WithDescription("Package reduction results into the main and metadata Parquet tables."),
		mcp.WithString("split_file", mcp.Description("Path to the split JSON document."), mcp.Required()),
		mcp.WithString("reduced_dir", mcp.Description("Directory containing reduction result files."), mcp.Required()),
		mcp.WithString("template_file", mcp.Description("Reduction template XML."), mcp.Required()),
		mcp.WithString("package_file", mcp.Description("Main table path. Defaults to <reduced_dir>/tnr_data.parquet.")),
	), h.handlePackageDataset)

	s.AddTool(mcp.NewTool("ledger_status",
		mcp.WithDescription("Report the state of the run ledger."),
	), h.handleLedgerStatus)

	return s
}

// StartMCPServer starts the tnrpipe MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, store contract.RunStore, version string) error {
	s := NewMCPServer(baseCfg, store, version)
	return server.ServeStdio(s)
}
