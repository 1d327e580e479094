package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Anthropic-backed client.
type AnthropicConfig struct {
	APIKey            string
	Model             string
	MaxTokens         int64
	MaxToolIterations int
}

// Anthropic implements Client against the Anthropic messages API.
type Anthropic struct {
	sdk               anthropic.Client
	model             anthropic.Model
	maxTokens         int64
	maxToolIterations int
}

func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key not set")
	}

	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	maxIter := cfg.MaxToolIterations
	if maxIter == 0 {
		maxIter = 25
	}

	return &Anthropic{
		sdk:               anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:             model,
		maxTokens:         maxTokens,
		maxToolIterations: maxIter,
	}, nil
}

func (a *Anthropic) Complete(ctx context.Context, system, query string) (*Response, error) {
	resp, err := a.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("messages api: %w", err)
	}

	return &Response{Kind: DirectText, Text: collectText(resp)}, nil
}

func (a *Anthropic) CompleteStructured(ctx context.Context, system, query string, out any) error {
	system = system + "\n\nRespond with a single JSON object only, no prose and no code fences."

	resp, err := a.Complete(ctx, system, query)
	if err != nil {
		return err
	}

	raw := extractJSON(resp.Text)
	if raw == "" {
		return fmt.Errorf("no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode structured reply: %w", err)
	}
	return nil
}

func (a *Anthropic) RunTools(ctx context.Context, system, query string, tools []Tool) (*Response, error) {
	byName := make(map[string]Tool, len(tools))
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
		params = append(params, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Schema,
					Required:   t.Required,
				},
			},
		})
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
	}

	var calls []ToolCall
	for i := 0; i < a.maxToolIterations; i++ {
		resp, err := a.sdk.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     a.model,
			MaxTokens: a.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: messages,
			Tools:    params,
		})
		if err != nil {
			return nil, fmt.Errorf("messages api: %w", err)
		}

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				call := ToolCall{Name: variant.Name, Input: variant.Input}
				tool, ok := byName[variant.Name]
				if !ok {
					call.Error = "unknown tool"
					toolResultBlocks = append(toolResultBlocks,
						anthropic.NewToolResultBlock(variant.ID, "unknown tool: "+variant.Name, true))
				} else if output, err := tool.Handler(ctx, variant.Input); err != nil {
					call.Error = err.Error()
					toolResultBlocks = append(toolResultBlocks,
						anthropic.NewToolResultBlock(variant.ID, err.Error(), true))
				} else {
					call.Output = output
					toolResultBlocks = append(toolResultBlocks,
						anthropic.NewToolResultBlock(variant.ID, output, false))
				}
				calls = append(calls, call)
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn {
			return &Response{Kind: DirectText, Text: collectText(resp), ToolCalls: calls}, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		if len(toolResultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	return &Response{
		Kind:      ToolError,
		ErrMsg:    fmt.Sprintf("tool loop did not finish within %d iterations", a.maxToolIterations),
		ToolCalls: calls,
	}, nil
}

func collectText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}
	return sb.String()
}

// extractJSON returns the first balanced top-level JSON object in s. Models
// occasionally wrap output in fences or preamble despite instructions.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
