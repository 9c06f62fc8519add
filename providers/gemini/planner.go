package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"casecite-backend/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
)

const DefaultPlannerModel = "gemini-1.5-flash"

var ErrPlannerOutput = errors.New("planner returned no usable plan")

const plannerInstruction = "You are an Indian legal research assistant. You break a legal fact scenario into the " +
	"proposition a precedent must establish. Respond with JSON only. Never invent statutes that the query does not imply."

type generateFunc func(ctx context.Context, prompt string) (string, error)

// Planner asks a Gemini model for a structured proposition plan
type Planner struct {
	generate generateFunc
	logger   *zap.Logger
}

// PlannerOption is a functional option for Planner
type PlannerOption func(*Planner)

// PlanWithLogger sets the logger
func PlanWithLogger(l *zap.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = l
	}
}

// NewPlanner creates a planner on a Gemini generative model in JSON mode
func NewPlanner(client *genai.Client, modelName string, opts ...PlannerOption) *Planner {
	if modelName == "" {
		modelName = DefaultPlannerModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(plannerInstruction)}}

	gen := func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		var out strings.Builder
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					out.WriteString(string(text))
				}
			}
		}
		return out.String(), nil
	}
	return newPlanner(gen, opts...)
}

func newPlanner(gen generateFunc, opts ...PlannerOption) *Planner {
	p := &Planner{generate: gen, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the raw planner output for a query. The caller sanitizes it.
func (p *Planner) Plan(ctx context.Context, query string, profile models.IntentProfile) (*models.RawPlan, error) {
	text, err := p.generate(ctx, buildPlanPrompt(query, profile))
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}
	plan, err := ParsePlan(text)
	if err != nil {
		p.logger.Warn("planner output rejected", zap.Error(err), zap.Int("chars", len(text)))
		return nil, err
	}
	return plan, nil
}

// ParsePlan extracts the JSON plan object from model output, tolerating
// markdown code fences and surrounding prose
func ParsePlan(text string) (*models.RawPlan, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		var lines []string
		inBlock := false
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inBlock = !inBlock
				continue
			}
			if inBlock {
				lines = append(lines, line)
			}
		}
		text = strings.Join(lines, "\n")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("%w: could not find JSON object", ErrPlannerOutput)
	}

	var plan models.RawPlan
	if err := json.Unmarshal([]byte(text[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlannerOutput, err)
	}
	return &plan, nil
}

func buildPlanPrompt(query string, profile models.IntentProfile) string {
	return fmt.Sprintf(`QUERY:
%s

DETECTED SIGNALS:
- statutes: %s
- issues: %s
- procedures: %s
- actors: %s
- court: %s

TASK:
Return one JSON object with these keys:
- "elements": [{"label": string, "terms": [string], "core": bool}] - facts a matching judgment must discuss
- "hook_groups": [{"group_id": string, "terms": [string], "min_match": int, "required": bool}] - interchangeable statutory references
- "relations": [{"type": "co_occurs" | "supports", "left": group_id, "right": group_id, "required": bool}]
- "outcome": {"polarity": "favourable" | "unfavourable" | "neutral", "terms": [string], "contradiction_terms": [string], "required": bool}
- "strict_phrases": [string] - short exact search phrases
- "broad_phrases": [string] - looser search phrases

OUTPUT REQUIREMENTS:
- At most 12 elements, 10 hook groups, 8 relations, 8 phrases per list
- Terms are short lowercase legal phrases
- Use "neutral" polarity unless the query asks for a specific result`,
		query,
		joinOrNone(profile.Statutes),
		joinOrNone(profile.Issues),
		joinOrNone(profile.Procedures),
		joinOrNone(profile.Actors),
		profile.CourtHint,
	)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, "; ")
}
