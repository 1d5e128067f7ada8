package analysis

import (
	"context"
)

// Stage names one step of the progress protocol
type Stage string

const (
	StageValidation Stage = "validation"
	StageFetching   Stage = "fetching"
	StageAnalyzing  Stage = "analyzing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Progress is one event of an analysis progress stream
type Progress struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Data     any    `json:"data,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Terminal reports whether no further events follow p
func (p Progress) Terminal() bool {
	return p.Stage == StageComplete || p.Stage == StageError
}

type emitFunc func(Progress)

// Stream runs an analysis and reports its stages on the returned channel.
// The channel is closed after the complete or error event. Consumers must either
// drain it or cancel ctx.
func (a *Analyzer) Stream(ctx context.Context, req Request) <-chan Progress {
	ch := make(chan Progress)

	go func() {
		defer close(ch)
		a.run(ctx, req, func(p Progress) {
			select {
			case ch <- p:
			case <-ctx.Done():
			}
		})
	}()

	return ch
}
