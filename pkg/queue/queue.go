// Package queue hands decode work to isolated worker processes through
// asynq and stores their results in redis. The facade enqueues a task
// naming the stored byte payload, then polls for the JSON result under a
// hard timeout.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/attachment-extractor/internal/models"
)

// TaskTypeDecode is the asynq task type for document decoding.
const TaskTypeDecode = "document:decode"

// resultTTL bounds how long decode results wait in redis for pickup.
const resultTTL = 10 * time.Minute

// DecodeTask is the payload handed to a worker. Bytes travel through
// object storage, not through the queue.
type DecodeTask struct {
	ID        string         `json:"id"`
	ObjectID  string         `json:"objectId"`
	DocType   models.DocType `json:"docType"`
	URL       string         `json:"url"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Queue is the facade-side contract.
type Queue interface {
	Enqueue(ctx context.Context, task *DecodeTask) error
	GetResult(ctx context.Context, taskID string) (*models.ParsedContent, bool, error)
	SaveResult(ctx context.Context, taskID string, result *models.ParsedContent) error
	Close() error
}

// Config holds the queue connection settings.
type Config struct {
	RedisAddr   string
	RedisDB     int
	MaxRetries  int
	TaskTimeout time.Duration
}

// AsynqQueue implements Queue on asynq + redis.
type AsynqQueue struct {
	client *asynq.Client
	redis  *redis.Client
	config *Config
}

func NewAsynqQueue(cfg *Config) (*AsynqQueue, error) {
	if cfg == nil {
		cfg = &Config{
			RedisAddr:   "localhost:6379",
			MaxRetries:  1,
			TaskTimeout: 30 * time.Second,
		}
	}
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	return &AsynqQueue{
		client: asynq.NewClient(redisOpt),
		redis:  redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		config: cfg,
	}, nil
}

// Enqueue submits a decode task. The asynq timeout mirrors the worker's
// hard per-task deadline.
func (q *AsynqQueue) Enqueue(ctx context.Context, task *DecodeTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal decode task: %w", err)
	}
	t := asynq.NewTask(TaskTypeDecode, payload,
		asynq.TaskID(task.ID),
		asynq.MaxRetry(q.config.MaxRetries),
		asynq.Timeout(q.config.TaskTimeout),
	)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue decode task: %w", err)
	}
	return nil
}

// GetResult fetches a finished decode result, reporting false while the
// worker is still running.
func (q *AsynqQueue) GetResult(ctx context.Context, taskID string) (*models.ParsedContent, bool, error) {
	data, err := q.redis.Get(ctx, resultKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read decode result: %w", err)
	}
	var result models.ParsedContent
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal decode result: %w", err)
	}
	return &result, true, nil
}

// SaveResult is called by the worker when decoding finishes.
func (q *AsynqQueue) SaveResult(ctx context.Context, taskID string, result *models.ParsedContent) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal decode result: %w", err)
	}
	if err := q.redis.Set(ctx, resultKey(taskID), data, resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to save decode result: %w", err)
	}
	return nil
}

func (q *AsynqQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.redis.Close()
}

func resultKey(taskID string) string {
	return fmt.Sprintf("decode_result:%s", taskID)
}
