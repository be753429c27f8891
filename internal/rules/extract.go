package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rulesmith/rulesmith/internal/jsonrepair"
	"github.com/rulesmith/rulesmith/internal/llm"
)

// ErrEmptyTable is returned when the table has no data rows.
var ErrEmptyTable = errors.New("table has no data rows")

// conversionPrompt asks the model to normalize one tabular rule record
// into the structured rule shape. The record is injected as JSON.
const conversionPrompt = `Convert this CSV business rule into a structured JSON format:

CSV Rule Data:
%s

Please convert to this JSON structure:
{
  "rule_id": "rule ID from CSV",
  "name": "rule name from CSV",
  "category": "category from CSV",
  "description": "description from CSV",
  "summary": "brief natural language summary of the rule",
  "conditions": [
    {
      "field": "field name",
      "operator": "comparison operator",
      "value": "comparison value"
    }
  ],
  "actions": [
    {
      "type": "action type",
      "details": "action details"
    }
  ],
  "priority": "priority from CSV",
  "active": "active status from CSV"
}

Return a single JSON object only (not a list).`

// TableExtractor converts tabular rule exports (a header row plus data
// rows) into structured rules. Each record goes through the model for
// normalization; records the model cannot convert fall back to a
// direct column mapping instead of being dropped.
type TableExtractor struct {
	client *llm.Client
	logger *slog.Logger
}

// NewTableExtractor creates a TableExtractor.
func NewTableExtractor(client *llm.Client, logger *slog.Logger) *TableExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableExtractor{client: client, logger: logger}
}

// ExtractFromTable converts each row into a Rule, preserving row
// order. The header names the columns; short rows pad with empty
// values. Rows without a rule_name value are skipped. Returns an error
// only for an empty table or a canceled context; per-row conversion
// failures degrade to the fallback mapping.
func (e *TableExtractor) ExtractFromTable(ctx context.Context, header []string, rows [][]string) ([]Rule, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	extracted := make([]Rule, 0, len(rows))
	for i, row := range rows {
		record := recordFromRow(header, row)
		if record["rule_name"] == "" {
			e.logger.Warn("skipping table row without a rule name", slog.Int("row", i+1))
			continue
		}

		rule, err := e.convertRecord(ctx, record)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("model conversion failed, using direct column mapping",
				slog.Int("row", i+1),
				slog.String("error", err.Error()))
			rule = fallbackRule(record)
		}
		extracted = append(extracted, rule)
	}
	return extracted, nil
}

// convertRecord runs one record through the model and decodes the
// reply as a Rule.
func (e *TableExtractor) convertRecord(ctx context.Context, record map[string]string) (Rule, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return Rule{}, fmt.Errorf("encoding record: %w", err)
	}

	raw, err := e.client.Generate(ctx, fmt.Sprintf(conversionPrompt, data), llm.WithJSONResponse())
	if err != nil {
		return Rule{}, err
	}

	var rule Rule
	if err := jsonrepair.Parse(raw, &rule); err != nil {
		return Rule{}, fmt.Errorf("decoding model conversion: %w", err)
	}
	return rule, nil
}

// recordFromRow zips the header with one row. Short rows pad with
// empty values; cells beyond the header are ignored.
func recordFromRow(header []string, row []string) map[string]string {
	record := make(map[string]string, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		var val string
		if i < len(row) {
			val = strings.TrimSpace(row[i])
		}
		record[col] = val
	}
	return record
}

// fallbackRule maps record columns straight into a Rule when the model
// conversion is unavailable. An empty rule_id stays empty so the store
// assigns one on Add.
func fallbackRule(record map[string]string) Rule {
	return Rule{
		RuleID:      record["rule_id"],
		Name:        orDefault(record["rule_name"], "Unnamed Rule"),
		Category:    orDefault(record["category"], "general"),
		Description: orDefault(record["description"], "No description available"),
		Summary:     "Basic rule conversion from CSV: " + orDefault(record["rule_name"], "Unknown"),
		Conditions: []Condition{{
			Field:    "condition",
			Operator: "raw",
			Value:    record["condition"],
		}},
		Actions: []Action{{
			Type:    "action",
			Details: record["action"],
		}},
		Priority: orDefault(record["priority"], PriorityMedium),
		Active:   activeValue(record["active"]),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// activeValue reads the active column leniently; absent or
// unrecognizable values mean the rule is in force.
func activeValue(v string) bool {
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return true
	}
	return b
}
