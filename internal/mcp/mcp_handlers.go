package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/tnrpipe/core"
	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/splitdoc"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	store   contract.RunStore
}

// extractResponse is the payload of extract_intervals.
type extractResponse struct {
	Split  splitdoc.Document `json:"split"`
	Report *schema.RunReport `json:"report"`
}

// splitDescription is the payload of describe_split.
type splitDescription struct {
	Path          string              `json:"path"`
	Resolution    string              `json:"resolution"`
	NIntervals    int                 `json:"n_intervals"`
	NMeasurements int                 `json:"n_measurements"`
	NHolds        int                 `json:"n_holds"`
	Start         string              `json:"start"`
	End           string              `json:"end"`
	TotalSeconds  float64             `json:"total_seconds"`
	Intervals     []splitdoc.Interval `json:"intervals"`
}

// packageResponse is the payload of validate_package and package_dataset.
type packageResponse struct {
	MainFile     string            `json:"main_file,omitempty"`
	MetadataFile string            `json:"metadata_file,omitempty"`
	Rows         int               `json:"rows"`
	RunNumber    int64             `json:"run_number"`
	NIntervals   int64             `json:"n_intervals"`
	Report       *schema.RunReport `json:"report"`
}

func textResult(v any) (*mcp.CallToolResult, error) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleExtractIntervals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	cfg.DataDir = request.GetString("data_dir", cfg.DataDir)
	cfg.SplitFile = request.GetString("split_file", "")
	if p := request.GetString("pattern", ""); p != "" {
		cfg.Pattern = p
	}
	if e := request.GetString("exclude", ""); e != "" {
		cfg.Exclude = e
	}
	if r := request.GetString("resolution", ""); r != "" {
		res := schema.Resolution(r)
		if _, ok := schema.ValidResolutions[res]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid resolution %q. must be per-file or per-frequency", r)), nil
		}
		cfg.Resolution = res
	}
	if _, ok := request.GetArguments()["gap_tolerance"]; ok {
		tolerance, err := contract.SecondsDuration(request.GetFloat("gap_tolerance", 0))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid gap_tolerance: %v", err)), nil
		}
		cfg.GapTolerance = tolerance
	}

	set, report, err := core.GetExtractResults(core.WithSuppressReport(ctx), cfg, h.store)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", err)), nil
	}
	return textResult(extractResponse{Split: splitdoc.FromSet(set), Report: report})
}

func (h *toolHandler) handleDescribeSplit(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("split_file", h.baseCfg.SplitFile)
	if path == "" {
		return mcp.NewToolResultError("split_file is required"), nil
	}
	set, err := splitdoc.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read split document: %v", err)), nil
	}

	doc := splitdoc.FromSet(set)
	first, last := set.Span()
	return textResult(splitDescription{
		Path:          path,
		Resolution:    doc.Resolution,
		NIntervals:    len(set.Intervals),
		NMeasurements: len(set.Measurements()),
		NHolds:        len(set.Holds()),
		Start:         first.Format(splitdoc.TimeLayout),
		End:           last.Format(splitdoc.TimeLayout),
		TotalSeconds:  last.Sub(first).Seconds(),
		Intervals:     doc.Intervals,
	})
}

func (h *toolHandler) handleValidatePackage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.runPackage(ctx, request, true)
}

func (h *toolHandler) handlePackageDataset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.runPackage(ctx, request, false)
}

func (h *toolHandler) runPackage(ctx context.Context, request mcp.CallToolRequest, validateOnly bool) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	cfg.SplitFile = request.GetString("split_file", cfg.SplitFile)
	cfg.ReducedDir = request.GetString("reduced_dir", cfg.ReducedDir)
	cfg.TemplateFile = request.GetString("template_file", cfg.TemplateFile)
	cfg.PackageFile = request.GetString("package_file", cfg.PackageFile)
	cfg.ValidateOnly = validateOnly

	out, err := core.GetPackageResults(core.WithSuppressReport(ctx), cfg, h.store)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("packaging failed: %v", err)), nil
	}
	resp := packageResponse{
		Rows:       len(out.Rows),
		RunNumber:  out.Metadata.RunNumber,
		NIntervals: out.Metadata.NIntervals,
		Report:     out.Report,
	}
	if !validateOnly {
		resp.MainFile = out.MainFile
		resp.MetadataFile = out.MetadataFile
	}
	return textResult(resp)
}

func (h *toolHandler) handleLedgerStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.store == nil {
		return mcp.NewToolResultError("run ledger is disabled"), nil
	}
	status, err := h.store.GetStatus()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get ledger status: %v", err)), nil
	}
	return textResult(status)
}
