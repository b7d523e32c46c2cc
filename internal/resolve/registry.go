// Package resolve maps the symbolic workflow and input schema names used in
// schedule config onto values accepted by the remote service.
package resolve

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrNotRegistered = errors.New("name not registered")
	ErrDuplicateName = errors.New("name already registered")
	ErrBadName       = errors.New("invalid name")
	ErrDecode        = errors.New("payload does not match input schema")
)

var reTypeName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry is a static name table. It is safe for concurrent use.
//
// With type names allowed, an unregistered workflow ref resolves to the bare
// workflow type name (see TypeName) and an unregistered input schema passes
// the payload through untyped; the worker decodes it on its side.
type Registry struct {
	mu             sync.RWMutex
	workflows      map[string]any
	inputs         map[string]reflect.Type
	allowTypeNames bool
}

type Option func(*Registry)

// WithTypeNames enables the fallback for unregistered names.
func WithTypeNames(on bool) Option {
	return func(r *Registry) { r.allowTypeNames = on }
}

func New(opts ...Option) *Registry {
	r := &Registry{workflows: map[string]any{}, inputs: map[string]reflect.Type{}}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// SetTypeNames toggles the type-name fallback after construction.
func (r *Registry) SetTypeNames(on bool) {
	r.mu.Lock()
	r.allowTypeNames = on
	r.mu.Unlock()
}

// RegisterWorkflow binds name to wf, which is a workflow function or a type name string.
func (r *Registry) RegisterWorkflow(name string, wf any) error {
	name = strings.TrimSpace(name)
	if name == "" || wf == nil {
		return fmt.Errorf("register workflow %q: %w", name, ErrBadName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[name]; ok {
		return fmt.Errorf("register workflow %q: %w", name, ErrDuplicateName)
	}
	r.workflows[name] = wf
	return nil
}

// RegisterInput binds name to the struct type of sample (a value or pointer).
func (r *Registry) RegisterInput(name string, sample any) error {
	name = strings.TrimSpace(name)
	t := reflect.TypeOf(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name == "" || t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("register input %q: %w (need a struct type)", name, ErrBadName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inputs[name]; ok {
		return fmt.Errorf("register input %q: %w", name, ErrDuplicateName)
	}
	r.inputs[name] = t
	return nil
}

// RegisterInput registers T under name.
func RegisterInput[T any](r *Registry, name string) error {
	var zero T
	return r.RegisterInput(name, zero)
}

// Workflow resolves ref.
func (r *Registry) Workflow(ref string) (any, error) {
	ref = strings.TrimSpace(ref)
	r.mu.RLock()
	wf, ok := r.workflows[ref]
	allow := r.allowTypeNames
	r.mu.RUnlock()
	if ok {
		return wf, nil
	}
	if !allow {
		return nil, ErrNotRegistered
	}
	name := TypeName(ref)
	if !reTypeName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q is not a workflow type name", ErrBadName, ref)
	}
	return name, nil
}

// Input decodes payload into a fresh value of the type registered under ref.
// Keys are matched against `json` tags; unknown keys are rejected.
func (r *Registry) Input(ref string, payload map[string]any) (any, error) {
	ref = strings.TrimSpace(ref)
	r.mu.RLock()
	t, ok := r.inputs[ref]
	allow := r.allowTypeNames
	r.mu.RUnlock()
	if !ok {
		if !allow {
			return nil, ErrNotRegistered
		}
		if !reTypeName.MatchString(TypeName(ref)) {
			return nil, fmt.Errorf("%w: %q is not an input type name", ErrBadName, ref)
		}
		return payload, nil
	}

	ptr := reflect.New(t)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           ptr.Interface(),
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return ptr.Elem().Interface(), nil
}

// HasInput reports whether an input type is registered under ref.
func (r *Registry) HasInput(ref string) bool {
	r.mu.RLock()
	_, ok := r.inputs[strings.TrimSpace(ref)]
	r.mu.RUnlock()
	return ok
}

// TypeName derives a bare type name from a qualified reference:
// "pkg.module:DailyReport" and "pkg.module.DailyReport" both yield "DailyReport".
func TypeName(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[i+1:]
	}
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
