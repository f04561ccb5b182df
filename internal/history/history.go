// Package history converts the client's message log into model-ready
// turns, bounded by both a message-count ceiling and a token budget.
// It is pure: no I/O, deterministic for a given log and model id.
package history

import (
	"fmt"
	"strings"

	"docchat/internal/domain"
)

const (
	// charsPerToken is the fixed estimation heuristic: one token per four
	// characters of normalized text, rounded up.
	charsPerToken = 4

	defaultMaxMessages  = 50
	defaultContextRatio = 0.6
	defaultTokenLimit   = 8000
)

// modelTokenLimits is the per-model context capability table. Unknown
// models fall back to the manager's conservative default.
var modelTokenLimits = map[string]int{
	"gpt-4":             8192,
	"gpt-4-turbo":       128000,
	"gpt-4o":            128000,
	"gpt-4o-mini":       128000,
	"gpt-3.5-turbo":     16385,
	"claude-3-haiku":    200000,
	"claude-3-sonnet":   200000,
	"claude-3-opus":     200000,
	"claude-3-5-sonnet": 200000,
	"gemini-1.5-pro":    1048576,
	"gemini-1.5-flash":  1048576,
	"llama3":            8192,
	"llama3.1":          131072,
	"qwen2.5":           32768,
	"mistral":           32768,
}

// Manager applies the history bounds. The zero value is not usable; use
// NewManager, which fills unset fields with the defaults.
type Manager struct {
	MaxMessages       int
	ContextRatio      float64
	DefaultTokenLimit int
}

// NewManager creates a manager, substituting defaults for unset fields.
func NewManager(maxMessages int, contextRatio float64, fallbackTokenLimit int) *Manager {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	if contextRatio <= 0 || contextRatio > 1 {
		contextRatio = defaultContextRatio
	}
	if fallbackTokenLimit <= 0 {
		fallbackTokenLimit = defaultTokenLimit
	}
	return &Manager{
		MaxMessages:       maxMessages,
		ContextRatio:      contextRatio,
		DefaultTokenLimit: fallbackTokenLimit,
	}
}

// TokenLimit returns the context window size for a model id, falling back
// to the conservative default for unknown models.
func (m *Manager) TokenLimit(modelID string) int {
	if limit, ok := modelTokenLimits[modelID]; ok {
		return limit
	}
	return m.DefaultTokenLimit
}

// Budget is the token allowance for retained history: a fixed share of the
// model's window, the rest reserved for system instructions and the answer.
func (m *Manager) Budget(modelID string) int {
	return int(float64(m.TokenLimit(modelID)) * m.ContextRatio)
}

// EstimateTokens estimates the token cost of a text.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Normalize resolves a message's mixed-shape content into canonical text.
// The closed set of shapes: a plain string, an array whose elements are
// joined, or an object carrying a "text" field. Anything else is
// stringified.
func Normalize(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, "\n")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Normalize(item))
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}

// Prepare produces the bounded, chronological turn sequence for a model.
//
// The count ceiling is applied first, independent of token accounting.
// Then messages are walked newest to oldest, accumulating estimated token
// cost, and inclusion stops once the next (older) message would exceed the
// budget. The most recent message is always retained, even when it alone
// exceeds the budget. Order is never changed.
func (m *Manager) Prepare(messages []domain.HistoryMessage, modelID string) []domain.ConversationTurn {
	if len(messages) == 0 {
		return nil
	}

	if len(messages) > m.MaxMessages {
		messages = messages[len(messages)-m.MaxMessages:]
	}

	type normalized struct {
		role string
		text string
		cost int
	}
	norm := make([]normalized, len(messages))
	for i, msg := range messages {
		text := Normalize(msg.Content)
		norm[i] = normalized{role: canonicalRole(msg.Role), text: text, cost: EstimateTokens(text)}
	}

	budget := m.Budget(modelID)
	total := 0
	start := len(norm)
	for i := len(norm) - 1; i >= 0; i-- {
		if i < len(norm)-1 && total+norm[i].cost > budget {
			break
		}
		total += norm[i].cost
		start = i
	}

	turns := make([]domain.ConversationTurn, 0, len(norm)-start)
	for _, n := range norm[start:] {
		turns = append(turns, domain.ConversationTurn{
			Role:     n.role,
			Segments: []string{n.text},
		})
	}
	return turns
}

func canonicalRole(role string) string {
	switch role {
	case domain.RoleUser:
		return domain.RoleUser
	default:
		// assistant, model, system prompts echoed back by the UI
		return domain.RoleModel
	}
}
