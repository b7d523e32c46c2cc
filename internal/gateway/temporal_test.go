package gateway

import (
	"errors"
	"testing"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
)

func TestClassifyTemporalNotFound(t *testing.T) {
	t.Parallel()
	err := Classify(OpDescribe, "A", classifyTemporal(serviceerror.NewNotFound("schedule not found")))
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false, want true", err)
	}

	err = Classify(OpDescribe, "A", classifyTemporal(serviceerror.NewUnavailable("frontend down")))
	var ge *Error
	if !errors.As(err, &ge) || !Retryable(ge.Code) {
		t.Fatalf("unavailable should classify as a retryable *Error, got %v", err)
	}
}

func TestToTemporalOverlap(t *testing.T) {
	t.Parallel()
	if got := toTemporalOverlap(OverlapBufferOne); got != enumspb.SCHEDULE_OVERLAP_POLICY_BUFFER_ONE {
		t.Fatalf("toTemporalOverlap(buffer_one) = %v", got)
	}
	if got := toTemporalOverlap(OverlapUnspecified); got != enumspb.SCHEDULE_OVERLAP_POLICY_UNSPECIFIED {
		t.Fatalf("toTemporalOverlap(unspecified) = %v", got)
	}
}

func TestToTemporalSpecAndAction(t *testing.T) {
	t.Parallel()
	spec := toTemporalSpec(Spec{Intervals: []IntervalSpec{{Every: time.Minute, Offset: 10 * time.Second}}})
	if len(spec.Intervals) != 1 || spec.Intervals[0].Every != time.Minute || spec.Intervals[0].Offset != 10*time.Second {
		t.Fatalf("unexpected spec: %+v", spec)
	}

	act := toTemporalAction(Action{WorkflowID: "A", Workflow: "Daily", Args: []any{1}, TaskQueue: "q"})
	if act.ID != "A" || act.Workflow != "Daily" || act.TaskQueue != "q" || len(act.Args) != 1 {
		t.Fatalf("unexpected action: %+v", act)
	}
}
