package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/models"
)

// OwnerLookup answers whether an entity of one owner kind exists.
type OwnerLookup interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

// OwnerLookupFunc adapts a function to OwnerLookup.
type OwnerLookupFunc func(ctx context.Context, id uint) (bool, error)

// Exists implements OwnerLookup.
func (f OwnerLookupFunc) Exists(ctx context.Context, id uint) (bool, error) {
	return f(ctx, id)
}

// OwnerRegistry maps owner kinds to lookups so polymorphic references can be validated.
type OwnerRegistry struct {
	mu      sync.RWMutex
	lookups map[string]OwnerLookup
}

// NewOwnerRegistry constructs a registry with the built-in user and subscription kinds.
func NewOwnerRegistry(db *gorm.DB) (*OwnerRegistry, error) {
	if db == nil {
		return nil, errors.New("owner registry: db is required")
	}

	registry := &OwnerRegistry{lookups: make(map[string]OwnerLookup)}
	registry.lookups[models.OwnerKindUser] = tableLookup(db, &models.User{})
	registry.lookups[models.OwnerKindSubscription] = tableLookup(db, &models.PushSubscription{})
	return registry, nil
}

// Register adds or replaces the lookup for kind.
func (r *OwnerRegistry) Register(kind string, lookup OwnerLookup) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return errors.New("owner registry: kind is required")
	}
	if lookup == nil {
		return fmt.Errorf("owner registry: lookup for %q is nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[kind] = lookup
	return nil
}

// Kinds lists the registered owner kinds in sorted order.
func (r *OwnerRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.lookups))
	for kind := range r.lookups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate ensures the owner kind is registered and the referenced entity exists.
func (r *OwnerRegistry) Validate(ctx context.Context, owner models.OwnerRef) error {
	owner = owner.Normalised()
	if owner.IsZero() {
		return ErrUnknownOwnerKind.WithMessage("Owner reference is incomplete")
	}

	r.mu.RLock()
	lookup, ok := r.lookups[owner.Kind]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownOwnerKind
	}

	exists, err := lookup.Exists(ensureContext(ctx), owner.ID)
	if err != nil {
		return fmt.Errorf("owner registry: lookup %s: %w", owner, err)
	}
	if !exists {
		return ErrOwnerNotFound
	}
	return nil
}

func tableLookup(db *gorm.DB, model any) OwnerLookup {
	return OwnerLookupFunc(func(ctx context.Context, id uint) (bool, error) {
		var count int64
		if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	})
}
