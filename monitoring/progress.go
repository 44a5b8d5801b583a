package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/hiddenstations/sim"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	lock sync.Mutex

	ID         string
	Name       string
	StartTime  time.Time
	Total      uint64
	Finished   uint64
	InProgress uint64
}

type progressSnapshot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) snapshot() progressSnapshot {
	b.lock.Lock()
	defer b.lock.Unlock()

	return progressSnapshot{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.Finished += amount
}

// SetFinished sets the finished amount, capped at the total.
func (b *ProgressBar) SetFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.Finished = min(amount, b.Total)
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// Progress returns the finished and total amounts.
func (b *ProgressBar) Progress() (finished, total uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.Finished, b.Total
}

// SimTimeTracker is an engine hook that moves a progress bar along with the
// simulated time, counted in microseconds.
type SimTimeTracker struct {
	engine sim.TimeTeller
	bar    *ProgressBar
}

// TrackSimTime creates a progress bar that reaches its total at end.
// Attach the returned tracker to the engine.
func (m *Monitor) TrackSimTime(
	name string,
	engine sim.TimeTeller,
	end sim.VTimeInSec,
) *SimTimeTracker {
	return &SimTimeTracker{
		engine: engine,
		bar:    m.CreateProgressBar(name, uint64(float64(end)*1e6)),
	}
}

// Bar returns the tracked progress bar.
func (t *SimTimeTracker) Bar() *ProgressBar {
	return t.bar
}

// Func updates the bar after every event.
func (t *SimTimeTracker) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	t.bar.SetFinished(uint64(float64(t.engine.Now()) * 1e6))
}
