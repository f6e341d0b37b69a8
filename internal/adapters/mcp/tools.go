package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/gap"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers decode as float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// ClassifyKindTool handles the classify_kind MCP tool.
type ClassifyKindTool struct{}

func (t *ClassifyKindTool) Definition() mcp.Tool {
	return mcp.NewTool("classify_kind",
		mcp.WithDescription(
			"Classify an indicator's measurement kind into its gap interpretation category "+
				"(VOLUME, EFFICIENCY, MILESTONE, PERFORMANCE, TEXT or UNKNOWN). "+
				"The category governs which remedial narrative is permissible.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Measurement kind: count, percentage, snapshot, milestone, financial or text_condition"),
		),
	)
}

func (t *ClassifyKindTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("kind", "")
	if raw == "" {
		return mcp.NewToolResultError("'kind' is required"), nil
	}

	kind := domain.ParseMeasurementKind(raw)
	category := gap.Classify(kind)
	return mcp.NewToolResultText(fmt.Sprintf("kind %q classifies as %s", kind, category)), nil
}

// InterpretGapTool handles the interpret_gap MCP tool.
type InterpretGapTool struct{}

func (t *InterpretGapTool) Definition() mcp.Tool {
	return mcp.NewTool("interpret_gap",
		mcp.WithDescription(
			"Get the diagnostic framing for a gap category: gap type, root cause focus areas, "+
				"the permitted action archetype and the anti-pattern to avoid.",
		),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Gap category: VOLUME, EFFICIENCY, MILESTONE, PERFORMANCE, TEXT or UNKNOWN"),
		),
	)
}

func (t *InterpretGapTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("category", "")
	if raw == "" {
		return mcp.NewToolResultError("'category' is required"), nil
	}

	interp := gap.Interpret(gap.Category(strings.ToUpper(strings.TrimSpace(raw))))
	payload, err := json.MarshalIndent(interp, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode interpretation: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// ValidateRemedyTool handles the validate_remedy MCP tool.
type ValidateRemedyTool struct{}

func (t *ValidateRemedyTool) Definition() mcp.Tool {
	return mcp.NewTool("validate_remedy",
		mcp.WithDescription(
			"Check a generated remedial narrative against the indicator kind's gap category. "+
				"Flags advice that belongs to a different category, e.g. 'collect more data' "+
				"for a rate metric. Run this before showing generated remedies to a user.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The remedial narrative to validate"),
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("The indicator's measurement kind"),
		),
	)
}

func (t *ValidateRemedyTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	kindRaw := req.GetString("kind", "")
	if kindRaw == "" {
		return mcp.NewToolResultError("'kind' is required"), nil
	}

	result := gap.Validate(text, domain.ParseMeasurementKind(kindRaw))
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode validation: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// GetAggregateTool handles the get_aggregate MCP tool.
type GetAggregateTool struct {
	aggregates ports.AggregateReader
}

func NewGetAggregateTool(aggregates ports.AggregateReader) *GetAggregateTool {
	return &GetAggregateTool{aggregates: aggregates}
}

func (t *GetAggregateTool) Definition() mcp.Tool {
	return mcp.NewTool("get_aggregate",
		mcp.WithDescription(
			"Read the achievement rollup for one indicator-period. Returns total reported, "+
				"target, achievement percent, status and participating units. With no quarter "+
				"the full-year rollup is computed from the contribution ledger.",
		),
		mcp.WithString("kra",
			mcp.Required(),
			mcp.Description("KRA identifier, e.g. 'KRA 3' (normalization is applied)"),
		),
		mcp.WithString("indicator",
			mcp.Required(),
			mcp.Description("Indicator identifier, e.g. 'KPI 3.2'"),
		),
		mcp.WithNumber("year",
			mcp.Required(),
			mcp.Description("Reporting year"),
		),
		mcp.WithNumber("quarter",
			mcp.Description("Reporting quarter 1..4; omit for the year rollup"),
		),
	)
}

func (t *GetAggregateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kra := req.GetString("kra", "")
	indicator := req.GetString("indicator", "")
	year := intArg(req, "year", 0)
	if kra == "" || indicator == "" || year == 0 {
		return mcp.NewToolResultError("'kra', 'indicator' and 'year' are required"), nil
	}

	var quarter *int
	if q := intArg(req, "quarter", 0); q != 0 {
		if q < 1 || q > 4 {
			return mcp.NewToolResultError("'quarter' must be 1..4"), nil
		}
		quarter = &q
	}

	aggregate, err := t.aggregates.Aggregate(ctx, kra, indicator, year, quarter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read aggregate: %v", err)), nil
	}

	payload, err := json.MarshalIndent(aggregate, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode aggregate: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
