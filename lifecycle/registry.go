package lifecycle

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/plus3/componentload/ecs"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateRegistration is returned when a component type is registered twice.
	ErrDuplicateRegistration = errors.New("lifecycle: component type already registered")
	// ErrModeMismatch is returned when a component's pointer type does not implement
	// the callback interface its mode requires.
	ErrModeMismatch = errors.New("lifecycle: component does not implement the callbacks for its mode")
	// ErrRegistryFrozen is returned when registering or installing after Install.
	ErrRegistryFrozen = errors.New("lifecycle: registry is frozen")
)

// dispatcher applies one tick's transitions for a registered type.
type dispatcher interface {
	dispatch(frame *ecs.UpdateFrame, t Transitions)
}

// registration is the table row for one component type.
type registration struct {
	name       string
	compType   reflect.Type
	mode       Mode
	detector   *detector
	dispatcher dispatcher
	counters   counters
}

// Registry is the start-up table of component types under lifecycle management.
// Build it, register every type, then Install it into a scheduler; after that the
// table is frozen.
type Registry struct {
	components *ecs.ComponentRegistry
	logger     *zap.Logger
	entries    []*registration
	byType     map[reflect.Type]*registration
	resources  *Resources
	frozen     bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report load failures and skipped entities.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry. The Active marker is registered with
// the component registry straight away.
func NewRegistry(components *ecs.ComponentRegistry, opts ...Option) *Registry {
	r := &Registry{
		components: components,
		logger:     zap.NewNop(),
		byType:     make(map[reflect.Type]*registration),
		resources:  &Resources{},
	}
	for _, opt := range opts {
		opt(r)
	}

	ecs.RegisterComponent[Active](components)
	return r
}

// Register places component type T under lifecycle management with the given mode.
// It also registers T with the component registry. Registration is only valid
// before Install; registering the same type twice is an error.
func Register[T any](r *Registry, mode Mode) error {
	if r.frozen {
		return ErrRegistryFrozen
	}

	compType := reflect.TypeFor[T]()
	if _, ok := r.byType[compType]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, compType)
	}

	reg := &registration{
		name:     compType.String(),
		compType: compType,
		mode:     mode,
	}

	switch mode {
	case Immediate:
		if _, ok := any((*T)(nil)).(Loadable); !ok {
			return fmt.Errorf("%w: *%s is not Loadable", ErrModeMismatch, compType)
		}
		reg.dispatcher = &immediateDispatcher[T]{owner: r, reg: reg}
	case Exclusive:
		if _, ok := any((*T)(nil)).(ExclusiveLoadable); !ok {
			return fmt.Errorf("%w: *%s is not ExclusiveLoadable", ErrModeMismatch, compType)
		}
		reg.dispatcher = &exclusiveDispatcher[T]{owner: r, reg: reg}
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrModeMismatch, int(mode))
	}

	ecs.RegisterComponent[T](r.components)
	r.entries = append(r.entries, reg)
	r.byType[compType] = reg

	r.logger.Info("registered loadable component",
		zap.String("component", reg.name),
		zap.Stringer("mode", mode),
	)
	return nil
}

// MustRegister is like Register but panics on error. Intended for start-up code
// where a bad registration is a configuration bug.
func MustRegister[T any](r *Registry, mode Mode) {
	if err := Register[T](r, mode); err != nil {
		panic(err)
	}
}

// Install freezes the registry and adds its TransitionSystem to the scheduler's
// PostUpdate stage. The resources are handed to every load callback.
func (r *Registry) Install(scheduler *ecs.Scheduler, res Resources) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	r.frozen = true
	*r.resources = res

	storage := scheduler.Storage()
	for _, reg := range r.entries {
		reg.detector = newDetector(storage, reg.compType)
	}

	scheduler.RegisterStage(ecs.StagePostUpdate, &TransitionSystem{registry: r})

	r.logger.Info("lifecycle installed", zap.Int("components", len(r.entries)))
	return nil
}

// Installed reports whether Install has run.
func (r *Registry) Installed() bool {
	return r.frozen
}

// Len returns the number of registered component types.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Types returns the registered component types in registration order.
func (r *Registry) Types() []reflect.Type {
	types := make([]reflect.Type, len(r.entries))
	for i, reg := range r.entries {
		types[i] = reg.compType
	}
	return types
}

// ModeOf returns the mode a component type was registered with.
func (r *Registry) ModeOf(compType reflect.Type) (Mode, bool) {
	reg, ok := r.byType[compType]
	if !ok {
		return 0, false
	}
	return reg.mode, true
}

// Resources returns the resources shared with load callbacks.
func (r *Registry) Resources() *Resources {
	return r.resources
}

// TransitionSystem detects and dispatches load/unload transitions for every
// registered type, in registration order.
type TransitionSystem struct {
	registry *Registry
}

func (s *TransitionSystem) Execute(frame *ecs.UpdateFrame) {
	for _, reg := range s.registry.entries {
		t := reg.detector.detect(frame.Storage)
		if t.Empty() {
			continue
		}
		reg.dispatcher.dispatch(frame, t)
	}
}
