package gateway

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Handle identifies one remote schedule entity for subsequent operations.
// Handles are never cached across reconciliation runs.
type Handle interface {
	ID() string
}

// Gateway is the RPC surface of the remote scheduling service.
//
// Every method may block on the network. Implementations must be safe for
// concurrent use by multiple goroutines.
type Gateway interface {
	// Lookup resolves a handle by schedule id. It returns an error matching
	// ErrNotFound when the schedule does not exist. Implementations backed by a
	// lazy handle may always succeed and defer the check to Describe.
	Lookup(ctx context.Context, id string) (Handle, error)
	// Describe confirms the handle refers to a live schedule. A stale handle
	// yields an error matching ErrNotFound.
	Describe(ctx context.Context, h Handle) (Description, error)
	Create(ctx context.Context, id string, s *Schedule) (Handle, error)
	// Update fully replaces action, spec, policy and state.
	Update(ctx context.Context, h Handle, s *Schedule) error
	Pause(ctx context.Context, h Handle, note string) error
	Delete(ctx context.Context, h Handle) error
}

// ErrNotFound is the structured "absent remotely" signal.
var ErrNotFound = errors.New("schedule not found")

// Op names a gateway operation.
type Op string

const (
	OpLookup   Op = "lookup"
	OpDescribe Op = "describe"
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpPause    Op = "pause"
	OpDelete   Op = "delete"
)

// Error is a non-not-found gateway failure carrying the remote status code.
type Error struct {
	Op   Op
	ID   string
	Code codes.Code
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s %q: %s: %v", e.Op, e.ID, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is the not-found signal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Code extracts the status code of err. Context errors map to their gRPC
// equivalents; anything unrecognised is codes.Unknown.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	if errors.Is(err, ErrNotFound) {
		return codes.NotFound
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	var st interface{ Status() *status.Status }
	if errors.As(err, &st) && st.Status() != nil {
		return st.Status().Code()
	}
	return status.Code(err)
}

// Retryable reports whether a failure with this code is worth retrying.
func Retryable(c codes.Code) bool {
	switch c {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// Classify normalises err from op on id: not-found failures wrap ErrNotFound,
// everything else becomes a *Error carrying the status code.
func Classify(op Op, id string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	c := Code(err)
	if c == codes.NotFound {
		return fmt.Errorf("%s %q: %w", op, id, ErrNotFound)
	}
	return &Error{Op: op, ID: id, Code: c, Err: err}
}
