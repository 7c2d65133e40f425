package reasoning

import "github.com/agentcore/runtime/internal/jobctx"

// TokenEstimator estimates the token footprint of a conversation, used to
// decide whether compaction should run before assembling a completion
// request. The caller supplies one; DefaultTokenEstimator is a cheap
// chars/4 heuristic used when none is configured.
type TokenEstimator func(messages []jobctx.ChatMessage) int

// DefaultTokenEstimator approximates token count as one token per four
// characters of message content, the conventional rough-order estimate
// for English text absent a model-specific tokenizer.
func DefaultTokenEstimator(messages []jobctx.ChatMessage) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / 4
}

// CompactionConfig tunes when and how the conversation is compacted.
type CompactionConfig struct {
	// WatermarkTokens is the estimated token count above which compaction
	// runs before the next completion request is assembled.
	WatermarkTokens int
	// PreserveRecentTurns is the number of most recent messages kept
	// verbatim; everything older (after the leading system message, if
	// any) is folded into a single summary note.
	PreserveRecentTurns int
	// Estimator computes the token estimate driving the watermark check.
	// Defaults to DefaultTokenEstimator.
	Estimator TokenEstimator
}

// DefaultCompactionConfig returns reasonable defaults: a 100k-token
// watermark and the last 20 turns preserved verbatim.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		WatermarkTokens:     100_000,
		PreserveRecentTurns: 20,
		Estimator:           DefaultTokenEstimator,
	}
}

func (c CompactionConfig) estimator() TokenEstimator {
	if c.Estimator != nil {
		return c.Estimator
	}
	return DefaultTokenEstimator
}

// ShouldCompact reports whether messages' estimated token count exceeds
// the configured watermark.
func (c CompactionConfig) ShouldCompact(messages []jobctx.ChatMessage) bool {
	if c.WatermarkTokens <= 0 {
		return false
	}
	return c.estimator()(messages) > c.WatermarkTokens
}

// Compact folds the oldest turns of messages into a single system note,
// preserving the leading system message (if any) and the most recent
// PreserveRecentTurns messages verbatim. Compact is pure: it never mutates
// messages, never reorders the messages it preserves, and never drops a
// role marker from a preserved message — only the folded middle section
// loses its per-message structure, by design, into one summary note.
func Compact(messages []jobctx.ChatMessage, cfg CompactionConfig) []jobctx.ChatMessage {
	if len(messages) == 0 {
		return messages
	}

	leadingSystem := 0
	if messages[0].Role == jobctx.RoleSystem {
		leadingSystem = 1
	}

	keepRecent := cfg.PreserveRecentTurns
	if keepRecent < 0 {
		keepRecent = 0
	}

	recentStart := len(messages) - keepRecent
	if recentStart < leadingSystem {
		// Nothing worth folding; already within the preserved window.
		return messages
	}

	folded := messages[leadingSystem:recentStart]
	if len(folded) == 0 {
		return messages
	}

	summary := summarizeTurns(folded)

	out := make([]jobctx.ChatMessage, 0, leadingSystem+1+keepRecent)
	out = append(out, messages[:leadingSystem]...)
	out = append(out, jobctx.SystemMessage(summary))
	out = append(out, messages[recentStart:]...)
	return out
}

func summarizeTurns(messages []jobctx.ChatMessage) string {
	summary := "Earlier conversation summary (compacted):\n"
	for _, m := range messages {
		content := m.Content
		if len(content) > 200 {
			content = content[:200] + "…"
		}
		summary += "- " + string(m.Role) + ": " + content + "\n"
	}
	return summary
}
