// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"time"

	"github.com/resepqa/web/internal/domain/answer"
)

// AskClient sends a question to the recipe question-answering service.
// Implementations return an error for transport failures and non-2xx
// responses; a 2xx body that found nothing is not an error.
type AskClient interface {
	Ask(ctx context.Context, query answer.Query) (*answer.RawResponse, error)
}

// AskMetrics records ask outcomes
type AskMetrics interface {
	AskRequest(outcome string, duration time.Duration)
	Normalized(duration time.Duration)
}
