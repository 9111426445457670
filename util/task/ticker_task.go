package task

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

// Runner is the unit of work of a TickerTask.
type Runner interface {
	Run() error
}

// Options configures a TickerTask. A nil Clock uses the wall clock and a non-positive Interval runs the
// task at most once.
type Options struct {
	Name           string
	Interval       time.Duration
	Runner         Runner
	Clock          clock.Clock
	SkipInitialRun bool
}

// TickerTask runs a Runner on a fixed interval until stopped. Failed runs are logged and retried on the
// next tick.
type TickerTask struct {
	opts     Options
	done     chan struct{}
	stopOnce sync.Once
}

func NewTickerTask(interval time.Duration, runner Runner) *TickerTask {
	return NewTickerTaskWithOptions(Options{Interval: interval, Runner: runner})
}

func NewTickerTaskWithOptions(opts Options) *TickerTask {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Name == "" {
		opts.Name = "scheduled task"
	}
	return &TickerTask{opts: opts, done: make(chan struct{})}
}

// Start runs the task unless the initial run is skipped, then schedules it on the interval.
func (t *TickerTask) Start() {
	if !t.opts.SkipInitialRun {
		t.run()
	}
	if t.opts.Interval <= 0 {
		return
	}

	ticker := t.opts.Clock.Ticker(t.opts.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.run()
			case <-t.done:
				return
			}
		}
	}()
}

// Stop ends the schedule. It is safe to call more than once.
func (t *TickerTask) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// Done is closed once the task is stopped.
func (t *TickerTask) Done() <-chan struct{} {
	return t.done
}

func (t *TickerTask) run() {
	if err := t.opts.Runner.Run(); err != nil {
		glog.Warningf("%s failed: %v", t.opts.Name, err)
	}
}
