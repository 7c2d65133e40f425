package reasoning

import (
	"testing"

	"github.com/agentcore/runtime/internal/jobctx"
)

func TestShouldCompactRespectsWatermark(t *testing.T) {
	messages := []jobctx.ChatMessage{jobctx.UserMessage("short")}

	cfg := CompactionConfig{WatermarkTokens: 1_000_000}
	if cfg.ShouldCompact(messages) {
		t.Fatalf("did not expect compaction below the watermark")
	}

	cfg = CompactionConfig{WatermarkTokens: 1}
	if !cfg.ShouldCompact(messages) {
		t.Fatalf("expected compaction once the watermark is exceeded")
	}
}

func TestShouldCompactDisabledAtZeroWatermark(t *testing.T) {
	messages := []jobctx.ChatMessage{jobctx.UserMessage("anything")}
	cfg := CompactionConfig{WatermarkTokens: 0}
	if cfg.ShouldCompact(messages) {
		t.Fatalf("a zero watermark should disable compaction entirely")
	}
}

func TestCompactionPreservesSystemAndRecentMessages(t *testing.T) {
	messages := []jobctx.ChatMessage{
		jobctx.SystemMessage("you are a helpful assistant"),
	}
	for i := 0; i < 30; i++ {
		messages = append(messages, jobctx.UserMessage("turn"))
	}

	cfg := CompactionConfig{WatermarkTokens: 1, PreserveRecentTurns: 5}
	compacted := Compact(messages, cfg)

	if compacted[0].Role != jobctx.RoleSystem || compacted[0].Content != messages[0].Content {
		t.Fatalf("expected leading system message preserved, got %+v", compacted[0])
	}
	if len(compacted) != 1+1+5 {
		t.Fatalf("expected system + summary + 5 recent messages, got %d", len(compacted))
	}
	for _, m := range compacted[len(compacted)-5:] {
		if m.Role != jobctx.RoleUser {
			t.Fatalf("expected preserved recent messages to keep their role, got %+v", m)
		}
	}
}

func TestCompactionWithoutLeadingSystemMessage(t *testing.T) {
	var messages []jobctx.ChatMessage
	for i := 0; i < 10; i++ {
		messages = append(messages, jobctx.UserMessage("turn"))
	}

	cfg := CompactionConfig{WatermarkTokens: 1, PreserveRecentTurns: 3}
	compacted := Compact(messages, cfg)

	if compacted[0].Role != jobctx.RoleSystem {
		t.Fatalf("expected a synthesized system summary message first, got %+v", compacted[0])
	}
	if len(compacted) != 1+3 {
		t.Fatalf("expected summary + 3 recent messages, got %d", len(compacted))
	}
}

func TestCompactionNoOpWhenWithinPreservedWindow(t *testing.T) {
	messages := []jobctx.ChatMessage{
		jobctx.SystemMessage("preamble"),
		jobctx.UserMessage("one"),
		jobctx.UserMessage("two"),
	}

	cfg := CompactionConfig{WatermarkTokens: 1, PreserveRecentTurns: 20}
	compacted := Compact(messages, cfg)

	if len(compacted) != len(messages) {
		t.Fatalf("expected no folding when everything fits in the preserved window, got %d messages", len(compacted))
	}
}

func TestDefaultTokenEstimator(t *testing.T) {
	messages := []jobctx.ChatMessage{jobctx.UserMessage("12345678")}
	if got := DefaultTokenEstimator(messages); got != 2 {
		t.Fatalf("expected 8 chars / 4 = 2 tokens, got %d", got)
	}
}
