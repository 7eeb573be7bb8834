package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mathtutor/internal/ai"
	"mathtutor/internal/model"
)

// scriptedLLM returns a fixed reply and records the last prompt.
type scriptedLLM struct {
	reply string
	err   error
	last  []ai.ChatMessage
	calls int
}

func (l *scriptedLLM) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	l.calls++
	l.last = messages
	return l.reply, l.err
}

func TestEvaluateParsesJSONReply(t *testing.T) {
	llm := &scriptedLLM{reply: `{"level": "Gioi", "reason": "Câu hỏi thể hiện tư duy tốt."}`}
	s := NewEvalService(llm, ai.ChatConfig{})

	level, reason := s.Evaluate(context.Background(), []string{"Chứng minh định lý Pythagore?"})
	if level != model.LevelGioi {
		t.Fatalf("level = %q, want %q", level, model.LevelGioi)
	}
	if reason != "Câu hỏi thể hiện tư duy tốt." {
		t.Fatalf("reason = %q", reason)
	}
}

func TestEvaluateStripsCodeFence(t *testing.T) {
	llm := &scriptedLLM{reply: "```json\n{\"level\": \"Kha\", \"reason\": \"Ổn định.\"}\n```"}
	s := NewEvalService(llm, ai.ChatConfig{})

	level, reason := s.Evaluate(context.Background(), nil)
	if level != model.LevelKha || reason != "Ổn định." {
		t.Fatalf("got (%q, %q)", level, reason)
	}
}

func TestEvaluateFallsBackToLineFormat(t *testing.T) {
	llm := &scriptedLLM{reply: "Level: Yeu\nReason: Các câu hỏi đều ở mức nhận biết."}
	s := NewEvalService(llm, ai.ChatConfig{})

	level, reason := s.Evaluate(context.Background(), nil)
	if level != model.LevelYeu {
		t.Fatalf("level = %q, want %q", level, model.LevelYeu)
	}
	if reason != "Các câu hỏi đều ở mức nhận biết." {
		t.Fatalf("reason = %q", reason)
	}
}

func TestEvaluateUnrecognizedReplyDefaults(t *testing.T) {
	llm := &scriptedLLM{reply: "Em học sinh này rất chăm chỉ."}
	s := NewEvalService(llm, ai.ChatConfig{})

	level, reason := s.Evaluate(context.Background(), nil)
	if level != model.DefaultLevel {
		t.Fatalf("level = %q, want default %q", level, model.DefaultLevel)
	}
	if reason != "Không có lý do cụ thể." {
		t.Fatalf("reason = %q", reason)
	}
}

func TestEvaluateInvalidJSONLabelUsesFallbackParse(t *testing.T) {
	llm := &scriptedLLM{reply: `{"level": "Xuat sac", "reason": "ngoài thang điểm"}`}
	s := NewEvalService(llm, ai.ChatConfig{})

	level, _ := s.Evaluate(context.Background(), nil)
	if level != model.DefaultLevel {
		t.Fatalf("level = %q, want default %q", level, model.DefaultLevel)
	}
}

func TestEvaluateEmptyJSONReasonDefaults(t *testing.T) {
	llm := &scriptedLLM{reply: `{"level": "TB", "reason": "  "}`}
	s := NewEvalService(llm, ai.ChatConfig{})

	_, reason := s.Evaluate(context.Background(), nil)
	if reason != "Không có lý do cụ thể." {
		t.Fatalf("reason = %q", reason)
	}
}

func TestEvaluateCompletionFailure(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("upstream 500")}
	s := NewEvalService(llm, ai.ChatConfig{})

	level, reason := s.Evaluate(context.Background(), []string{"2+2=?"})
	if level != model.DefaultLevel {
		t.Fatalf("level = %q, want default %q", level, model.DefaultLevel)
	}
	if reason != EvalFailureReason {
		t.Fatalf("reason = %q, want %q", reason, EvalFailureReason)
	}
}

func TestEvaluatePromptListsQuestions(t *testing.T) {
	llm := &scriptedLLM{reply: `{"level": "TB", "reason": "ok"}`}
	s := NewEvalService(llm, ai.ChatConfig{})

	s.Evaluate(context.Background(), []string{"Căn bậc hai là gì?", "Giải phương trình x^2=4"})
	if len(llm.last) != 1 {
		t.Fatalf("prompt has %d messages, want 1", len(llm.last))
	}
	content := llm.last[0].Content
	for _, want := range []string{"Học sinh: Căn bậc hai là gì?", "Học sinh: Giải phương trình x^2=4"} {
		if !strings.Contains(content, want) {
			t.Fatalf("prompt missing %q:\n%s", want, content)
		}
	}
}
