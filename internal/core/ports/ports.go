package ports

import (
	"context"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// PipelineObserver receives structured pipeline events. Implementations must
// not block the caller for long and must never fail the pipeline.
type PipelineObserver interface {
	Observe(ctx context.Context, event domain.PipelineEvent)
}

type noopObserver struct{}

func (noopObserver) Observe(context.Context, domain.PipelineEvent) {}

// NoopObserver discards every event.
var NoopObserver PipelineObserver = noopObserver{}

// MultiObserver fans one event out to several observers in order.
type MultiObserver []PipelineObserver

func (m MultiObserver) Observe(ctx context.Context, event domain.PipelineEvent) {
	for _, observer := range m {
		if observer != nil {
			observer.Observe(ctx, event)
		}
	}
}
