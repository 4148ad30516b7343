package state

import (
	"fmt"
	"time"
)

// Dispatch Dispatches the function to run on the node's event loop without waiting for it to complete
func (e *Env) Dispatch(fun func(*State) error) {
	e.ScheduleTask(fun, 0)
}

func (e *Env) ScheduleTask(fun func(*State) error, delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	e.DispatchFunc(delay, fun)
}

func (e *Env) repeatedTask(fun func(*State) error, delay time.Duration) func(*State) error {
	var task func(*State) error
	task = func(s *State) error {
		if e.Context.Err() != nil {
			return nil
		}
		err := fun(s)
		if err != nil {
			return err
		}
		e.ScheduleTask(task, delay)
		return nil
	}
	return task
}

// RepeatTask runs fun now and then every delay until the context is cancelled.
func (e *Env) RepeatTask(fun func(*State) error, delay time.Duration) {
	e.Dispatch(e.repeatedTask(fun, delay))
}
