package app

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"mathtutor/internal/ai"
	"mathtutor/internal/model"
)

// EvalFailureReason is persisted when classification cannot be obtained.
const EvalFailureReason = "Evaluation failed due to system error."

const evalDefaultReason = "Không có lý do cụ thể."

const evalPromptHeader = "Dựa trên các câu hỏi gần nhất của học sinh sau đây, " +
	"đánh giá năng lực học tập môn Toán THCS:\n"

const evalPromptInstruction = "\nPhân loại thành một trong 4 cấp độ: Gioi, Kha, TB, Yeu " +
	"và giải thích lý do (tối đa 150 từ, ngắn gọn).\n" +
	`Trả lời bằng JSON thuần, đúng định dạng {"level": "Gioi|Kha|TB|Yeu", "reason": "..."}` +
	"\nNếu không thể trả JSON, dùng định dạng:\nLevel: [Gioi/Kha/TB/Yeu]\nReason: [lý do]"

var (
	levelPattern  = regexp.MustCompile(`(?m)^\s*Level:\s*(Gioi|Kha|TB|Yeu)\b`)
	reasonPattern = regexp.MustCompile(`(?s)Reason:\s*(.+)`)
)

// EvalService classifies a student's proficiency from recent questions,
// using the generative model as an oracle.
type EvalService struct {
	llm     LLMCompleter
	chatCfg ai.ChatConfig
}

func NewEvalService(llm LLMCompleter, chatCfg ai.ChatConfig) *EvalService {
	return &EvalService{llm: llm, chatCfg: chatCfg}
}

// Evaluate returns a level in {Gioi, Kha, TB, Yeu} and a short
// justification. It never returns an error: any failure degrades to the
// default level with a fixed reason.
func (s *EvalService) Evaluate(ctx context.Context, recentQuestions []string) (string, string) {
	questions := make([]string, len(recentQuestions))
	for i, q := range recentQuestions {
		questions[i] = "Học sinh: " + q
	}

	prompt := []ai.ChatMessage{
		{Role: "user", Content: evalPromptHeader + strings.Join(questions, "\n") + evalPromptInstruction},
	}

	raw, err := s.llm.Complete(ctx, s.chatCfg, prompt)
	if err != nil {
		log.Error().Err(err).Msg("evaluation completion failed")
		return model.DefaultLevel, EvalFailureReason
	}

	level, reason := parseEvaluation(raw)
	log.Info().Str("level", level).Msg("student classified")
	return level, reason
}

// parseEvaluation prefers the structured JSON reply and falls back to the
// Level:/Reason: line format. An unrecognized label defaults to TB.
func parseEvaluation(raw string) (string, string) {
	raw = strings.TrimSpace(raw)

	if level, reason, ok := parseEvalJSON(raw); ok {
		return level, reason
	}

	level := model.DefaultLevel
	if m := levelPattern.FindStringSubmatch(raw); m != nil {
		level = m[1]
	}
	reason := evalDefaultReason
	if m := reasonPattern.FindStringSubmatch(raw); m != nil {
		reason = strings.TrimSpace(m[1])
	}
	return level, reason
}

func parseEvalJSON(raw string) (string, string, bool) {
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var parsed struct {
		Level  string `json:"level"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", "", false
	}
	if !model.ValidLevel(parsed.Level) {
		return "", "", false
	}
	reason := strings.TrimSpace(parsed.Reason)
	if reason == "" {
		reason = evalDefaultReason
	}
	return parsed.Level, reason, true
}
