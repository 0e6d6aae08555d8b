package usecase

import (
	"context"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer abstracts the offline write buffer so use cases stay storage-agnostic.
// payload is the created entity for create, the patch for update and nil for delete.
type OperationBuffer interface {
	BufferTask(ctx context.Context, operation, userID, taskID string, payload interface{}) error
	BufferSubtask(ctx context.Context, operation, userID, taskID, subtaskID string, payload interface{}) error
}
