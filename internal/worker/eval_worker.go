package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"mathtutor/internal/model"
)

// StudentStore is the slice of the user repository the worker needs.
type StudentStore interface {
	GetByID(id uint) (*model.User, error)
	SetLevel(id uint, level, lydo string) error
}

// Evaluator classifies a student from recent questions.
type Evaluator interface {
	Evaluate(ctx context.Context, recentQuestions []string) (string, string)
}

// Gate releases the per-student in-flight marker once a job finishes.
type Gate interface {
	Release(ctx context.Context, userID uint) error
}

const recentQuestionWindow = 5

// EvalWorker consumes evaluation jobs and persists the resulting level and
// justification off the chat request path.
type EvalWorker struct {
	conn      *amqp.Connection
	store     StudentStore
	evaluator Evaluator
	gate      Gate
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEvalWorker(conn *amqp.Connection, store StudentStore, evaluator Evaluator, gate Gate, queueName string) *EvalWorker {
	return &EvalWorker{
		conn:      conn,
		store:     store,
		evaluator: evaluator,
		gate:      gate,
		queueName: queueName,
	}
}

func (w *EvalWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job model.EvalJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Error().Err(err).Msg("worker decode eval job failed")
					_ = d.Nack(false, false)
					continue
				}

				if err := w.Handle(workerCtx, job); err != nil {
					log.Error().Err(err).Uint("user_id", job.UserID).Msg("worker evaluation failed")
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

// Handle runs one evaluation job: classify the student's last questions and
// overwrite level and justification together. The in-flight gate is always
// released, even on failure, so the next trigger can run.
func (w *EvalWorker) Handle(ctx context.Context, job model.EvalJob) error {
	if w.gate != nil {
		defer func() {
			if err := w.gate.Release(ctx, job.UserID); err != nil {
				log.Warn().Err(err).Uint("user_id", job.UserID).Msg("release eval gate failed")
			}
		}()
	}

	user, err := w.store.GetByID(job.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("eval job for unknown user %d", job.UserID)
	}

	turns := user.HistoryLines()
	if len(turns) > recentQuestionWindow {
		turns = turns[len(turns)-recentQuestionWindow:]
	}

	level, lydo := w.evaluator.Evaluate(ctx, turns)
	if err := w.store.SetLevel(job.UserID, level, lydo); err != nil {
		return err
	}

	log.Info().Uint("user_id", job.UserID).Str("level", level).Msg("student level updated")
	return nil
}

func (w *EvalWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
