// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
package inbound

import (
	"context"

	"github.com/resepqa/web/internal/domain/answer"
)

// AskService answers a user's recipe question.
// Errors are *errors.AppError carrying a user-facing message.
type AskService interface {
	Ask(ctx context.Context, question string) (answer.NormalizedAnswer, error)
}
