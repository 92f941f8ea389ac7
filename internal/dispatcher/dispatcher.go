// Package dispatcher implements the Agent/Tool Dispatcher: a uniform,
// role-gated, optionally idempotent invocation surface over named
// capabilities exposed by the CORE subsystems.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cellarworks/cellar-intel/infrastructure/logging"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

// Role is a caller's authorization level.
type Role string

const (
	RoleGuest Role = "guest"
	RoleCrew  Role = "crew"
	RoleAdmin Role = "admin"
)

// ParamType enumerates the scalar/composite kinds a ParamSchema field may
// require. There is no JSON-Schema library anywhere in the pack, so this is
// a minimal, stdlib-only structural check rather than a full schema engine.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeNumber ParamType = "number"
	TypeBool   ParamType = "bool"
	TypeArray  ParamType = "array"
	TypeObject ParamType = "object"
)

// ParamField describes one expected parameter.
type ParamField struct {
	Type     ParamType
	Required bool
}

// ParamSchema is a flat field-name -> ParamField map.
type ParamSchema map[string]ParamField

// Handler executes a capability's effect. dryRun handlers must not mutate
// persistent state; they may return a simulated result.
type Handler func(ctx context.Context, params map[string]interface{}, dryRun bool) (interface{}, error)

// Capability is one named, registered tool.
type Capability struct {
	Name               string
	Description        string
	ParamSchema        ParamSchema
	Mutating           bool
	AllowedRoles       []Role
	RequireIdempotency bool
	Handler            Handler
}

// CallOptions carries the per-call gate inputs from spec.md §4.9.
type CallOptions struct {
	DryRun         bool
	Confirm        bool
	IdempotencyKey string
}

// Dispatcher is a stateless capability registry; the only state it owns is
// the registry map itself, guarded for concurrent registration/lookup.
type Dispatcher struct {
	mu           sync.RWMutex
	capabilities map[string]*Capability
	idempotency  *persistence.IdempotencyRepo
	logger       *logging.Logger
}

// New constructs an empty Dispatcher. idempotency may be nil only if no
// registered capability sets RequireIdempotency.
func New(idempotency *persistence.IdempotencyRepo) *Dispatcher {
	return &Dispatcher{
		capabilities: make(map[string]*Capability),
		idempotency:  idempotency,
		logger:       logging.NewFromEnv("dispatcher"),
	}
}

// Register adds or replaces a capability under cap.Name.
func (d *Dispatcher) Register(cap *Capability) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capabilities[cap.Name] = cap
}

// CallTool runs the six-step gate and, on success, invokes the capability's
// handler.
func (d *Dispatcher) CallTool(ctx context.Context, name string, params map[string]interface{}, role Role, actor string, opts CallOptions) (interface{}, error) {
	d.mu.RLock()
	cap, ok := d.capabilities[name]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.ErrToolNotFound
	}

	if !roleAllowed(cap.AllowedRoles, role) {
		return nil, domain.ErrForbidden
	}

	if cap.Mutating && !opts.DryRun && !opts.Confirm {
		return nil, domain.ErrConfirmRequired
	}

	if err := validateParams(cap.ParamSchema, params); err != nil {
		return nil, err
	}

	if cap.RequireIdempotency && !opts.DryRun {
		if opts.IdempotencyKey == "" {
			return nil, domain.ErrIdempotencyKeyRequired
		}
		if len(opts.IdempotencyKey) < 16 {
			return nil, domain.ErrIdempotencyKeyTooShort
		}
		if d.idempotency != nil {
			if cached, found, err := d.idempotency.Find(ctx, name, opts.IdempotencyKey, actor); err == nil && found {
				var result interface{}
				if err := json.Unmarshal([]byte(cached), &result); err == nil {
					return result, nil
				}
			}
		}
	}

	result, err := cap.Handler(ctx, params, opts.DryRun)
	if err != nil {
		return nil, err
	}

	if cap.RequireIdempotency && !opts.DryRun && d.idempotency != nil {
		if encoded, err := json.Marshal(result); err == nil {
			if err := d.idempotency.Store(ctx, name, opts.IdempotencyKey, actor, string(encoded)); err != nil {
				d.logger.WithError(err).Warn("idempotency record store failed")
			}
		}
	}

	return result, nil
}

func roleAllowed(allowed []Role, role Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func validateParams(schema ParamSchema, params map[string]interface{}) error {
	for name, field := range schema {
		value, present := params[name]
		if !present {
			if field.Required {
				return fmt.Errorf("%w: missing %q", domain.ErrValidationFailed, name)
			}
			continue
		}
		if !matchesType(value, field.Type) {
			return fmt.Errorf("%w: %q must be %s", domain.ErrValidationFailed, name, field.Type)
		}
	}
	return nil
}

func matchesType(value interface{}, t ParamType) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]interface{})
		return ok
	case TypeObject:
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}
