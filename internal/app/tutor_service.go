package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"mathtutor/internal/ai"
	"mathtutor/internal/model"
)

var ErrStudentNotFound = errors.New("student not found")

// TutorFallback is returned whenever the generative model fails; the
// tutoring path never surfaces errors to the student.
const TutorFallback = "Thầy đang hơi mệt, con thử lại sau nhé!"

const tutorPersona = "Bạn là một Thầy/Cô giáo dạy toán THCS, xưng là thầy và con. " +
	"Hãy trả lời ngắn gọn, thân thiện, dễ hiểu, trình bày theo từng bước thực hiện. " +
	"Sử dụng cú pháp LaTeX cho các công thức toán học."

// levelGuidance adapts answer verbosity to the student's proficiency.
var levelGuidance = map[string]string{
	model.LevelGioi: "Giải thích sâu hơn, đưa bài tập nâng cao.",
	model.LevelKha:  "Giải thích chi tiết với ví dụ.",
	model.LevelTB:   "Giải thích cơ bản, nhiều bước nhỏ.",
	model.LevelYeu:  "Giải thích đơn giản nhất, lặp lại kiến thức cơ bản.",
}

const recentTurnWindow = 5

// StudentStore is the persistent side of a tutoring conversation.
type StudentStore interface {
	GetByID(id uint) (*model.User, error)
	AppendStudentTurn(id uint, text string) error
}

// ContextRetriever supplies grounding context for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) string
}

// LLMCompleter generates a chat completion.
type LLMCompleter interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// AsyncEvalPublisher hands an evaluation job to the background worker.
type AsyncEvalPublisher interface {
	Publish(ctx context.Context, job model.EvalJob) error
}

// EvalGate keeps at most one evaluation in flight per student.
type EvalGate interface {
	TryAcquire(ctx context.Context, userID uint) (bool, error)
	Release(ctx context.Context, userID uint) error
}

type TutorService struct {
	store     StudentStore
	retriever ContextRetriever
	llm       LLMCompleter
	chatCfg   ai.ChatConfig
	publisher AsyncEvalPublisher
	gate      EvalGate
}

func NewTutorService(
	store StudentStore,
	retriever ContextRetriever,
	llm LLMCompleter,
	chatCfg ai.ChatConfig,
	publisher AsyncEvalPublisher,
	gate EvalGate,
) *TutorService {
	return &TutorService{
		store:     store,
		retriever: retriever,
		llm:       llm,
		chatCfg:   chatCfg,
		publisher: publisher,
		gate:      gate,
	}
}

// Answer runs one tutoring turn: retrieve grounding context, compose the
// prompt from the student's level and recent questions, call the model,
// persist the student turn and, on every fifth persisted turn, dispatch a
// proficiency evaluation. A model failure returns the fixed fallback
// sentence without persisting the turn.
func (s *TutorService) Answer(ctx context.Context, userID uint, message string) (string, error) {
	message = strings.TrimSpace(message)
	if userID == 0 || message == "" {
		return "", ErrInvalidInput
	}

	user, err := s.store.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrStudentNotFound
	}

	// Request-scoped turn buffer: persisted student turns plus this one.
	turns := append(user.HistoryLines(), message)

	contextBlock := s.retriever.Retrieve(ctx, message)
	prompt := composeTutorPrompt(contextBlock, recentTurns(turns), user.Level, message)

	answer, err := s.llm.Complete(ctx, s.chatCfg, prompt)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("tutor completion failed")
		return TutorFallback, nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = TutorFallback
	}

	if err := s.store.AppendStudentTurn(userID, message); err != nil {
		return "", err
	}

	// Counted after the current turn, so the first evaluation fires on
	// turn 5, then 10, 15, ...
	if shouldEvaluate(len(turns)) {
		s.dispatchEvaluation(ctx, userID)
	}

	return answer, nil
}

func shouldEvaluate(studentTurnCount int) bool {
	return studentTurnCount > 0 && studentTurnCount%5 == 0
}

func (s *TutorService) dispatchEvaluation(ctx context.Context, userID uint) {
	if s.publisher == nil {
		return
	}
	if s.gate != nil {
		acquired, err := s.gate.TryAcquire(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("eval gate unavailable")
		} else if !acquired {
			log.Debug().Uint("user_id", userID).Msg("evaluation already in flight")
			return
		}
	}
	if err := s.publisher.Publish(ctx, model.EvalJob{UserID: userID}); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("enqueue evaluation failed")
		if s.gate != nil {
			_ = s.gate.Release(ctx, userID)
		}
	}
}

// recentTurns returns the newest student turns, oldest first.
func recentTurns(turns []string) []string {
	if len(turns) <= recentTurnWindow {
		return turns
	}
	return turns[len(turns)-recentTurnWindow:]
}

func composeTutorPrompt(contextBlock string, recent []string, level, question string) []ai.ChatMessage {
	guidance, ok := levelGuidance[level]
	if !ok {
		level = model.DefaultLevel
		guidance = levelGuidance[level]
	}

	history := make([]string, len(recent))
	for i, turn := range recent {
		history[i] = "Học sinh: " + turn
	}

	var b strings.Builder
	b.WriteString("Tài liệu tham khảo:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nLịch sử hội thoại gần đây:\n")
	b.WriteString(strings.Join(history, "\n"))
	fmt.Fprintf(&b, "\n\nNăng lực của học sinh là %s. %s", level, guidance)
	b.WriteString("\nNếu học sinh yêu cầu bài tập, đưa bài phù hợp với năng lực đó.")
	b.WriteString("\n\nCâu hỏi mới: ")
	b.WriteString(question)

	return []ai.ChatMessage{
		{Role: "system", Content: tutorPersona},
		{Role: "user", Content: b.String()},
	}
}
