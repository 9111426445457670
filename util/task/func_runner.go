package task

import "time"

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func() error

func (f RunnerFunc) Run() error {
	return f()
}

// NewTickerTaskFromFunc schedules runner every interval after an initial run.
func NewTickerTaskFromFunc(interval time.Duration, runner func() error) *TickerTask {
	return NewTickerTask(interval, RunnerFunc(runner))
}
