package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/infrastructure/buffer"
	"github.com/fastygo/taskpulse/usecase"
)

type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferTask(ctx context.Context, operation, userID, taskID string, payload interface{}) error {
	return b.enqueue(ctx, buffer.Item{
		UserID:    userID,
		TaskID:    taskID,
		Entity:    buffer.EntityTask,
		Operation: operation,
		Priority:  taskPriority(operation),
	}, payload)
}

func (b *BufferBridge) BufferSubtask(ctx context.Context, operation, userID, taskID, subtaskID string, payload interface{}) error {
	return b.enqueue(ctx, buffer.Item{
		UserID:    userID,
		TaskID:    taskID,
		SubtaskID: subtaskID,
		Entity:    buffer.EntitySubtask,
		Operation: operation,
		Priority:  4,
	}, payload)
}

func (b *BufferBridge) enqueue(ctx context.Context, item buffer.Item, payload interface{}) error {
	if b == nil || b.processor == nil || item.TaskID == "" {
		return domain.ErrInvalidPayload
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		item.Data = data
	}
	return b.processor.BufferOperation(ctx, item)
}

// Task creates replay ahead of anything that targets the task.
func taskPriority(operation string) int {
	if operation == buffer.OperationCreate {
		return 3
	}
	return 4
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
