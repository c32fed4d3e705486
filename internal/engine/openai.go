package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researcher/internal/tools"
)

// OpenAIConfig configures the chat-completions engine.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxSteps    int
	Timeout     time.Duration
}

// OpenAI drives a tool-calling conversation against the chat-completions API.
type OpenAI struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewOpenAI(cfg OpenAIConfig, log *zap.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAI{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}, log: log}
}

// Factory returns a Factory producing one session per query.
func (o *OpenAI) Factory() Factory {
	return func(instructions string, set tools.Set) Engine {
		return &session{client: o, instructions: instructions, tools: set}
	}
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type session struct {
	client       *OpenAI
	instructions string
	tools        tools.Set
	started      bool
}

func text(s string) *string { return &s }

func (s *session) Run(ctx context.Context, query string) iter.Seq2[Turn, error] {
	return func(yield func(Turn, error) bool) {
		if s.started {
			yield(Turn{}, errors.New("engine session already used"))
			return
		}
		s.started = true

		msgs := []chatMessage{
			{Role: "system", Content: text(s.instructions)},
			{Role: "user", Content: text(query)},
		}
		if !yield(Turn{Role: RoleUser, Content: query}, nil) {
			return
		}

		for step := 0; ; step++ {
			// once the step budget is spent the model must answer without tools
			final := step >= s.client.cfg.MaxSteps
			msg, err := s.client.complete(ctx, msgs, s.tools, final)
			if err != nil {
				yield(Turn{}, err)
				return
			}
			msgs = append(msgs, msg)

			turn := Turn{Role: RoleAssistant}
			if msg.Content != nil {
				turn.Content = *msg.Content
			}
			for _, c := range msg.ToolCalls {
				turn.ToolCalls = append(turn.ToolCalls, ToolCall{Name: c.Function.Name, Arguments: c.Function.Arguments})
			}
			if !yield(turn, nil) {
				return
			}
			if len(msg.ToolCalls) == 0 {
				return
			}

			for _, c := range msg.ToolCalls {
				out := s.invoke(ctx, c.Function.Name, c.Function.Arguments)
				msgs = append(msgs, chatMessage{Role: "tool", Content: text(out), ToolCallID: c.ID})
				if !yield(Turn{Role: RoleTool, Content: out, Name: c.Function.Name}, nil) {
					return
				}
			}
		}
	}
}

// invoke runs a tool and renders its result as JSON. Tool failures are
// reported to the model rather than ending the run.
func (s *session) invoke(ctx context.Context, name, args string) string {
	tool, ok := s.tools.Lookup(name)
	if !ok {
		return toolError(fmt.Sprintf("unknown tool %q", name))
	}
	result, err := tool.Call(ctx, json.RawMessage(args))
	if err != nil {
		s.client.log.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		return toolError(err.Error())
	}
	b, err := json.Marshal(result)
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err))
	}
	return string(b)
}

func toolError(msg string) string {
	b, _ := json.Marshal(map[string]string{"status": "error", "message": msg})
	return string(b)
}

func (o *OpenAI) complete(ctx context.Context, msgs []chatMessage, set tools.Set, final bool) (chatMessage, error) {
	req := chatRequest{
		Model:       o.cfg.Model,
		Messages:    msgs,
		Temperature: o.cfg.Temperature,
	}
	for _, t := range set {
		req.Tools = append(req.Tools, wireTool{
			Type:     "function",
			Function: wireFunction{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()},
		})
	}
	if len(req.Tools) > 0 && final {
		req.ToolChoice = "none"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return chatMessage{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(o.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return chatMessage{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return chatMessage{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return chatMessage{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chatMessage{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return chatMessage{}, errors.New("no choices in response")
	}
	return out.Choices[0].Message, nil
}
