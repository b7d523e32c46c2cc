package config

import (
	"fmt"
	"sort"
	"strings"

	"schedsync/internal/schedule"
)

// ToSpecs converts the schedules section into builder input, applying the
// entry defaults (every "86400s", state created, sync.default_task_queue).
// Errors name the offending entry and keep their schedule error types.
func (c *Config) ToSpecs() (map[string]schedule.Spec, error) {
	names := make([]string, 0, len(c.Schedules))
	for name := range c.Schedules {
		names = append(names, name)
	}
	sort.Strings(names)

	defQueue := strings.TrimSpace(c.Sync.DefaultTaskQueue)
	if defQueue == "" {
		defQueue = DefaultTaskQueue
	}

	out := make(map[string]schedule.Spec, len(names))
	for _, name := range names {
		spec, err := c.Schedules[name].toSpec(defQueue)
		if err != nil {
			return nil, fmt.Errorf("schedules.%s: %w", name, err)
		}
		out[name] = spec
	}
	return out, nil
}

func (sc ScheduleConfig) toSpec(defQueue string) (schedule.Spec, error) {
	state := schedule.StateCreated
	if strings.TrimSpace(sc.State) != "" {
		st, err := schedule.ParseState(sc.State)
		if err != nil {
			return schedule.Spec{}, &schedule.UnknownStateError{ID: sc.WorkflowID, Value: sc.State}
		}
		state = st
	}

	every := sc.Interval.Every
	if strings.TrimSpace(every) == "" {
		every = DefaultEvery
	}
	iv, err := schedule.ParseIntervalPair(every, sc.Interval.Offset)
	if err != nil {
		return schedule.Spec{}, fmt.Errorf("interval.%w", err)
	}

	queue := strings.TrimSpace(sc.TaskQueue)
	if queue == "" {
		queue = defQueue
	}

	payload := sc.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	return schedule.Spec{
		WorkflowID:     strings.TrimSpace(sc.WorkflowID),
		WorkflowRef:    strings.TrimSpace(sc.Workflow),
		InputSchemaRef: strings.TrimSpace(sc.InputSchema),
		TaskQueue:      queue,
		Interval:       iv,
		Comment:        sc.Comment,
		Payload:        payload,
		State:          state,
	}, nil
}
