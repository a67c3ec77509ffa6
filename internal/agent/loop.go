// Package agent implements the core orchestration loop: it turns a user
// message into a final reply by iterating generate → parse → dispatch
// against the tool registry, with hard bounds on rounds and per-tool
// repetition so a looping model can never hang a request.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/events"
	"github.com/quillhq/quill/internal/llm"
	"github.com/quillhq/quill/internal/memory"
	"github.com/quillhq/quill/internal/prompts"
	"github.com/quillhq/quill/internal/tools"
)

// Response is the loop's user-facing result.
type Response struct {
	Response string `json:"response"`
}

// Loop drives one conversation turn end to end.
type Loop struct {
	logger   *slog.Logger
	store    *memory.Store
	llm      llm.Client
	registry *tools.Registry
	bus      *events.Bus
	cfg      config.AgentConfig
}

// NewLoop wires the orchestration loop. bus may be nil.
func NewLoop(logger *slog.Logger, store *memory.Store, client llm.Client, registry *tools.Registry, bus *events.Bus, cfg config.AgentConfig) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}
	if cfg.MaxToolRepeats <= 0 {
		cfg.MaxToolRepeats = 10
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}
	if cfg.SummaryInterval <= 0 {
		cfg.SummaryInterval = 20
	}
	return &Loop{
		logger:   logger,
		store:    store,
		llm:      client,
		registry: registry,
		bus:      bus,
		cfg:      cfg,
	}
}

// Run executes one request against a session and always returns a
// response: either the model's chat decision, raw model text when no
// decision is recoverable, or the last round's text when the step
// budget runs out.
func (l *Loop) Run(ctx context.Context, sessionID, prompt string) (*Response, error) {
	if sessionID == "" {
		sessionID = "default"
	}
	started := time.Now()

	l.bus.Publish(events.Event{
		Timestamp: started,
		Source:    events.SourceAgent,
		Kind:      events.KindRequestStart,
		Data:      map[string]any{"session_id": sessionID, "prompt_len": len(prompt)},
	})

	// History must be fetched before the incoming message is persisted,
	// otherwise the prompt would contain a duplicate of it.
	history, err := l.store.GetHistory(sessionID, l.cfg.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	summary, err := l.store.GetSummary(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}

	if err := l.store.AddMessage(sessionID, "user", prompt); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	l.maybeSummarize(ctx, sessionID)

	system := prompts.SystemPrompt(time.Now(), summary, historyJSON(history), l.toolsJSON())
	current := system + "\nUser: " + prompt

	toolCallCount := make(map[string]int)
	steps := 0
	var response string

	for step := 0; step < l.cfg.MaxSteps; step++ {
		steps = step + 1

		l.bus.Publish(events.Event{
			Timestamp: time.Now(),
			Source:    events.SourceAgent,
			Kind:      events.KindLLMCall,
			Data:      map[string]any{"session_id": sessionID, "step": steps},
		})

		response, err = l.llm.Generate(ctx, current, true)
		if err != nil {
			// Backend failures are not retried; degrade to diagnostic
			// text so the caller always gets a response.
			l.logger.Error("llm call failed", "session_id", sessionID, "step", steps, "error", err)
			response = fmt.Sprintf("Something went wrong reaching the model: %v", err)
			break
		}

		decision := ExtractDecision(response)
		if decision == nil {
			// No recoverable decision: the raw text is the reply.
			return l.finish(sessionID, response, steps, started)
		}

		if decision.Action == ActionChat {
			final := decision.Response
			if final == "" {
				final = response
			}
			return l.finish(sessionID, final, steps, started)
		}

		// Tool dispatch.
		if decision.ToolName == "" {
			break
		}
		if toolCallCount[decision.ToolName] >= l.cfg.MaxToolRepeats {
			l.logger.Warn("tool repetition limit reached",
				"session_id", sessionID, "tool", decision.ToolName, "limit", l.cfg.MaxToolRepeats)
			break
		}
		toolCallCount[decision.ToolName]++

		current += l.dispatch(ctx, sessionID, decision)
	}

	// Budget exhausted or dispatch rejected: return the last generated
	// text verbatim rather than blocking.
	return l.finish(sessionID, response, steps, started)
}

// dispatch executes one tool decision and returns the transcript
// fragment to fold back into the prompt.
func (l *Loop) dispatch(ctx context.Context, sessionID string, d *Decision) string {
	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindToolCall,
		Data:      map[string]any{"session_id": sessionID, "tool": d.ToolName},
	})

	start := time.Now()
	result := l.registry.Execute(ctx, d.ToolName, d.Params)

	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindToolDone,
		Data: map[string]any{
			"session_id":  sessionID,
			"tool":        d.ToolName,
			"ok":          result.Success,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})

	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		resultJSON = []byte(fmt.Sprintf(`{"success":false,"error":"unencodable result: %v"}`, err))
	}

	l.logger.Debug("tool dispatched",
		"session_id", sessionID,
		"tool", d.ToolName,
		"ok", result.Success,
		"duration", time.Since(start),
	)

	return prompts.ToolResult(d.ToolName, string(resultJSON))
}

// finish persists the assistant reply and publishes request completion.
func (l *Loop) finish(sessionID, reply string, steps int, started time.Time) (*Response, error) {
	if err := l.store.AddMessage(sessionID, "assistant", reply); err != nil {
		l.logger.Error("persist reply failed", "session_id", sessionID, "error", err)
	}

	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindRequestComplete,
		Data: map[string]any{
			"session_id": sessionID,
			"steps":      steps,
			"elapsed_ms": time.Since(started).Milliseconds(),
		},
	})

	return &Response{Response: reply}, nil
}

// maybeSummarize refreshes the session's rolling summary when the
// message count hits a multiple of the configured interval. Failures
// are logged, never fatal: summaries are an optimization.
func (l *Loop) maybeSummarize(ctx context.Context, sessionID string) {
	count, err := l.store.CountMessages(sessionID)
	if err != nil || count == 0 || count%l.cfg.SummaryInterval != 0 {
		return
	}

	// The refresh covers every retained message, not just the prompt
	// window, so count doubles as the fetch limit.
	full, err := l.store.GetHistory(sessionID, count)
	if err != nil {
		l.logger.Warn("summary history load failed", "session_id", sessionID, "error", err)
		return
	}

	text, err := l.llm.Generate(ctx, prompts.ConversationSummary(historyJSON(full)), false)
	if err != nil {
		l.logger.Warn("summary generation failed", "session_id", sessionID, "error", err)
		return
	}

	if err := l.store.SaveSummary(sessionID, strings.TrimSpace(text)); err != nil {
		l.logger.Warn("summary save failed", "session_id", sessionID, "error", err)
		return
	}
	l.logger.Info("session summary refreshed", "session_id", sessionID, "messages", count)
}

// historyJSON renders history as the role/content JSON embedded in
// prompts.
func historyJSON(msgs []memory.Message) string {
	type entry struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	entries := make([]entry, len(msgs))
	for i, m := range msgs {
		entries[i] = entry{Role: m.Role, Content: m.Content}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

// toolsJSON renders the registry catalog for the system prompt.
func (l *Loop) toolsJSON() string {
	b, err := json.MarshalIndent(l.registry.List(), "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

// MemoryStats exposes store statistics for the API health surface.
func (l *Loop) MemoryStats() map[string]any {
	return l.store.Stats()
}
