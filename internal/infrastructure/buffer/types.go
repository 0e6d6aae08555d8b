package buffer

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	EntityTask    = "task"
	EntitySubtask = "subtask"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// ErrFull is returned by Enqueue once the configured capacity is reached.
var ErrFull = errors.New("buffer: capacity reached")

// Item is a task store write that could not reach Postgres and waits for replay.
// Data holds the operation payload: a task or subtask for create, a patch for
// update, nothing for delete.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	TaskID    string          `json:"task_id"`
	SubtaskID string          `json:"subtask_id,omitempty"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data,omitempty"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

// Decode unmarshals the payload into dst.
func (i Item) Decode(dst interface{}) error {
	if len(i.Data) == 0 {
		return errors.New("buffer: item has no payload")
	}
	return json.Unmarshal(i.Data, dst)
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
