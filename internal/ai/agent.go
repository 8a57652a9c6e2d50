package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

type ReportParser interface {
	ParseDailyReport(ctx context.Context, report string, today time.Time) (*core.ReportParseResponse, error)
}

type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

// ParseDailyReport turns a free-text farm report ("5 birds died, used 4 bags,
// avg weight 850g") into a structured daily entry draft. When the report does
// not contain enough to fill the draft, the model asks for clarification
// instead of guessing.
func (a *Agent) ParseDailyReport(ctx context.Context, report string, today time.Time) (*core.ReportParseResponse, error) {
	prompt := fmt.Sprintf(`You are an assistant for a broiler poultry farm.
Your goal is to read a daily farm report written in natural language and extract the day's figures.
Today's date is %s.
Rules:
1. entry_date must be in YYYY-MM-DD format. If the report names a day ("yesterday", "March 3rd"), resolve it relative to today's date; otherwise use today's date.
2. mortality, feed_bags_consumed and feed_bags_added are whole numbers of birds and bags. Use 0 for anything the report does not mention.
3. sampled_weight_grams is the average weight of a sampled bird in grams. Convert from kg if needed. Use 0 if not mentioned.
4. Provide a confidence score (0.0-1.0).
5. Explain your reasoning.
6. If the report is too ambiguous to extract figures from, set is_clarification_request to true and ask the operator for the missing details.

Report: %s`, today.Format("2006-01-02"), report)

	// Dynamically generate the JSON schema from the Go struct
	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "daily_report_parse",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A structured daily entry draft extracted from a farm report, or a clarification request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var parsed core.ReportParseResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	if parsed.Draft != nil {
		parsed.Draft.Normalize(today)
	}
	if err := parsed.Validate(); err != nil {
		return nil, fmt.Errorf("report parse validation failed: %w", err)
	}

	return &parsed, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.ReportParseResponse
	return reflector.Reflect(v)
}
