package tasks

import (
	"encoding/json"

	"autopress/internal/platform/redis"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeKeyword = "keyword:task"
)

// KeywordPayload is the task body for one keyword job.
type KeywordPayload struct {
	JobID   string `json:"job_id"`
	Keyword string `json:"keyword"`
}

func NewKeywordTask(jobID, keyword string) (*asynq.Task, error) {
	payload, err := json.Marshal(KeywordPayload{JobID: jobID, Keyword: keyword})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeKeyword, payload), nil
}

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

func (t *Client) Enqueue(task *asynq.Task, queue string, maxRetries int) error {
	_, err := t.c.Enqueue(task, asynq.Queue(queue), asynq.MaxRetry(maxRetries))
	return err
}
