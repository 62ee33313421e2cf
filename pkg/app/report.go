package app

import (
	"log/slog"
	"math"
	"sync"

	"github.com/teslashibe/go-handscroll/internal/log"
)

// LogReporter writes loading progress to the structured log.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter logging under the "loading" component.
func NewLogReporter() *LogReporter {
	return &LogReporter{logger: log.Component("loading")}
}

// Progress logs one loading step.
func (r *LogReporter) Progress(percent float64, message string) {
	r.logger.Info(message, "percent", math.Round(percent*10)/10)
}

// Fail logs the gesture-control error.
func (r *LogReporter) Fail(err error) {
	r.logger.Error("gesture control unavailable", "error", err)
}

// LogRenderer logs the smoothed value whenever it moves by at least Step.
type LogRenderer struct {
	Step float64

	logger *slog.Logger
	mu     sync.Mutex
	last   float64
	seen   bool
}

// NewLogRenderer creates a renderer that logs at debug level.
func NewLogRenderer(step float64) *LogRenderer {
	return &LogRenderer{Step: step, logger: log.Component("render")}
}

// Render logs current if it moved far enough since the last logged value.
func (r *LogRenderer) Render(current float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen && math.Abs(current-r.last) < r.Step {
		return
	}
	r.seen = true
	r.last = current
	r.logger.Debug("scroll", "current", math.Round(current*1000)/1000)
}
