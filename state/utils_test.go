package state

import (
	"fmt"
	"os"
	"slices"
	"testing"
	"time"
)

// SampleScenario lays out a width×height grid of nodes step metres apart, with beacons on three corners.
func SampleScenario(t *testing.T, width, height int, step float64) ScenarioCfg {
	t.Helper()
	cfg := ScenarioCfg{
		Name:     "sample",
		Seed:     1,
		Duration: time.Second * 10,
		Range:    step * 1.2,
		Protocol: ProtocolCfg{}.WithDefaults(),
	}
	corners := []int{0, width - 1, width * (height - 1)}
	for i := range width * height {
		cfg.Nodes = append(cfg.Nodes, NodeCfg{
			Id:       NodeId(fmt.Sprintf("n%d", i)),
			Position: Position{X: float64(i%width) * step, Y: float64(i/width) * step},
			Beacon:   slices.Contains(corners, i),
		})
	}
	return cfg
}

type queuedTask struct {
	at  time.Duration
	fun func(*State) error
}

// taskQueue is a minimal single node event loop
type taskQueue struct {
	now   time.Duration
	tasks []queuedTask
}

func (q *taskQueue) push(delay time.Duration, fun func(*State) error) {
	q.tasks = append(q.tasks, queuedTask{at: q.now + delay, fun: fun})
}

func (q *taskQueue) Now() time.Time {
	return SimEpoch.Add(q.now)
}

func (q *taskQueue) Elapsed() time.Duration {
	return q.now
}

// runNext runs the earliest task, in insertion order among equal times
func (q *taskQueue) runNext(s *State) (bool, error) {
	if len(q.tasks) == 0 {
		return false, nil
	}
	idx := 0
	for i, task := range q.tasks {
		if task.at < q.tasks[idx].at {
			idx = i
		}
	}
	task := q.tasks[idx]
	q.tasks = slices.Delete(q.tasks, idx, idx+1)
	q.now = task.at
	return true, task.fun(s)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
