// Package agent implements the core tool-calling loop that turns one user
// message into a final reply, calling the backend, executing tools, and
// persisting the exchange to the session transcript.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nanogate/nanogate/internal/backend"
	"github.com/nanogate/nanogate/internal/memory"
	"github.com/nanogate/nanogate/internal/message"
	"github.com/nanogate/nanogate/internal/session"
	"github.com/nanogate/nanogate/internal/soul"
	"github.com/nanogate/nanogate/internal/tools"
	"github.com/nanogate/nanogate/internal/utils"
)

// TurnMemoryImportance is the fixed importance recorded for every memory the
// loop derives from a completed turn.
const TurnMemoryImportance = 0.5

// MaxToolIterations bounds how many tool-call round trips a single Run may
// take before giving up.
const MaxToolIterations = 32

// MaxRetrievedMemories caps how many memories are folded into a turn.
const MaxRetrievedMemories = 3

// Loop is the core processing engine: one Backend, one session Store, one
// memory Store, and a tool Registry shared across every session it serves.
type Loop struct {
	Backend  backend.Client
	Sessions *session.Store
	Memory   *memory.Store
	Tools    *tools.Registry

	Model       string
	MaxTokens   int
	Temperature float64
}

// New creates a Loop wired to its collaborators.
func New(client backend.Client, sessions *session.Store, mem *memory.Store, registry *tools.Registry) *Loop {
	return &Loop{
		Backend:   client,
		Sessions:  sessions,
		Memory:    mem,
		Tools:     registry,
		Model:     client.DefaultModel(),
		MaxTokens: 4096,
	}
}

// Run executes the fixed-point tool-call loop for one user message against
// sessionKey's transcript, returning the model's final text reply.
//
// Tool results are persisted as they're produced; the full turn (user text
// plus final assistant blocks) is only persisted on success. A failure or
// an iteration-bound overrun discards the in-progress turn — the session's
// prior history is untouched, and the caller may retry.
func (l *Loop) Run(ctx context.Context, sessionKey, userText string, s soul.Soul) (string, error) {
	if !l.Sessions.Exists(sessionKey) {
		if _, err := l.Sessions.Create(sessionKey); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
	}
	_, history, err := l.Sessions.Load(sessionKey)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	augmented := l.augmentWithMemories(userText)
	working := append(append([]message.Message{}, history...), message.NewTextMessage(message.RoleUser, augmented))
	system := soul.SystemPrompt(s)

	for iter := 0; iter < MaxToolIterations; iter++ {
		resp, err := l.Backend.Chat(ctx, backend.Request{
			System:      system,
			History:     working,
			Tools:       toolDescriptors(l.Tools),
			Model:       l.Model,
			MaxTokens:   l.MaxTokens,
			Temperature: l.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("backend chat: %w", err)
		}

		if !resp.HasToolCalls() {
			if err := l.Sessions.SaveTurn(sessionKey, userText, resp.Blocks); err != nil {
				return "", fmt.Errorf("save turn: %w", err)
			}
			finalText := resp.Text()
			if l.Memory != nil {
				content := fmt.Sprintf("User: %s\nAssistant: %s", userText, finalText)
				if _, err := l.Memory.Add(content, sessionKey, nil, TurnMemoryImportance, utils.Timestamp()); err != nil {
					return "", fmt.Errorf("record memory: %w", err)
				}
			}
			return finalText, nil
		}

		working = append(working, message.NewBlockMessage(message.RoleAssistant, resp.Blocks))

		var resultBlocks []message.Block
		for _, tc := range resp.ToolCalls {
			output := l.Tools.Execute(ctx, tc.Name, tc.Arguments)
			if err := l.Sessions.SaveToolResult(sessionKey, tc.ID, output); err != nil {
				return "", fmt.Errorf("save tool result: %w", err)
			}
			resultBlocks = append(resultBlocks, message.ToolResultBlock(tc.ID, output))
		}
		working = append(working, message.NewBlockMessage(message.RoleUser, resultBlocks))
	}

	return "", fmt.Errorf("agent loop exceeded %d tool-call iterations", MaxToolIterations)
}

// augmentWithMemories appends a "Relevant memories:" block listing up to
// MaxRetrievedMemories positively-scored memories for userText.
func (l *Loop) augmentWithMemories(userText string) string {
	if l.Memory == nil {
		return userText
	}
	memories := l.Memory.Search(userText, MaxRetrievedMemories)
	if len(memories) == 0 {
		return userText
	}

	var b strings.Builder
	b.WriteString(userText)
	b.WriteString("\n\nRelevant memories:\n")
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// toolDescriptors adapts the tool registry into the backend's wire-format
// tool descriptors.
func toolDescriptors(reg *tools.Registry) []backend.ToolDescriptor {
	all := reg.All()
	out := make([]backend.ToolDescriptor, len(all))
	for i, t := range all {
		out[i] = backend.ToolDescriptor{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	}
	return out
}
