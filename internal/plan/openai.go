package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
)

const plannerSystemPrompt = `You are an expert software engineer organizing code changes into clean, logical commits.

You will receive a set of diff hunks, each with a stable ID of the form path:start-end. Group them into commits that each represent one coherent change. Respect these rules:
- Every commit needs a conventional-commit style message (feat:, fix:, refactor:, chore:, docs:, test:).
- Hunks that depend on each other belong in the same commit or the dependency's commit must come first.
- Do not invent hunk IDs; use only the IDs provided.

Respond with JSON only, in this exact shape:
{"commits": [{"message": "...", "hunk_ids": ["file.go:1-5"], "rationale": "..."}]}`

// PlannerConfig carries the AI provider settings for plan generation.
type PlannerConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Planner produces a commit plan from a hunk set with a single structured
// chat completion.
type Planner struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

// NewPlanner creates a Planner from provider settings.
func NewPlanner(cfg PlannerConfig, logger logging.Logger) (*Planner, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if logger == nil {
		logger = logging.NewNilLogger()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Planner{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

// GeneratePlan asks the model to group the hunks into commits. The reply
// is parsed and structurally checked; semantic validation (ordering,
// cycles) stays with the validator.
func (p *Planner) GeneratePlan(ctx context.Context, hunks map[string]*hunk.Hunk) (*Plan, error) {
	if len(hunks) == 0 {
		return nil, errors.New("no hunks to plan")
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: plannerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: renderHunks(hunks)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("plan generation returned no choices")
	}

	content := resp.Choices[0].Message.Content
	p.logger.Log("Planner response: %d bytes", len(content))

	var plan Plan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("could not parse planner response: %w", err)
	}
	if len(plan.Commits) == 0 {
		return nil, errors.New("planner response contains no commits")
	}
	return &plan, nil
}

// renderHunks formats the hunk set for the model: ID, change type,
// dependency edges and the diff text.
func renderHunks(hunks map[string]*hunk.Hunk) string {
	var b strings.Builder
	b.WriteString("Hunks to organize into commits:\n\n")
	for _, h := range sortedByID(hunks) {
		fmt.Fprintf(&b, "Hunk %s (%s)", h.ID, h.Type)
		if len(h.Dependencies) > 0 {
			deps := make([]string, 0, len(h.Dependencies))
			for dep := range h.Dependencies {
				deps = append(deps, dep)
			}
			sort.Strings(deps)
			fmt.Fprintf(&b, " depends on %s", strings.Join(deps, ", "))
		}
		b.WriteString("\n")
		if h.IsBinary {
			b.WriteString("(binary file)\n\n")
			continue
		}
		b.WriteString(h.Content)
		if !strings.HasSuffix(h.Content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
