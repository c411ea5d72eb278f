package layers

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/internal/errors"
)

// Manager drives the lifecycle of each layer: it decides reuse versus
// rebuild, invokes the layer's operations, persists results through the
// Store, and folds each layer's build-scope environment contribution into
// the running build environment carried by the Context.
type Manager struct {
	store *Store
	log   logrus.FieldLogger
}

// NewManager creates a Manager over the given store. A nil logger falls
// back to the standard logrus logger.
func NewManager(store *Store, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{store: store, log: log}
}

// Handle resolves one layer. Layers must be handled strictly in the order
// the driver declares them: on success Handle folds the layer's Build+All
// environment view into ctx.Env, so the next layer's operations and desired
// metadata observe this layer's changes.
//
// If the layer's Create or Update fails the layer directory is left as the
// operation left it and the error propagates immediately; no partial layer
// is persisted as resolved.
func (m *Manager) Handle(ctx *Context, name Name, layer Layer) (*Handled, error) {
	if _, err := ParseName(name.String()); err != nil {
		return nil, err
	}

	types := layer.LayerTypes()
	path := m.store.Path(name)
	log := m.log.WithField("layer", name.String())

	persisted, cached, err := m.restore(name, types, log)
	if err != nil {
		return nil, err
	}

	if !cached {
		return m.create(ctx, name, layer, types, log)
	}

	desired := layer.DesiredMetadata()
	existing := &Existing{Path: path, Metadata: persisted}

	strategy, err := m.decide(ctx, name, layer, desired, existing, log)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyKeep:
		log.WithField("decision", DecisionReused).Info("Reusing cached layer")
		return &Handled{
			Name:     name,
			Path:     path,
			Types:    types,
			Metadata: persisted,
			Env:      m.fold(ctx, types, m.store.LoadEnv(name)),
			Decision: DecisionReused,
		}, nil

	case StrategyUpdate:
		updater := layer.(Updater)
		log.WithField("decision", DecisionUpdated).Info("Updating cached layer")
		result, err := updater.Update(ctx, existing)
		if err != nil {
			return nil, operationError(name, "update", err)
		}
		return m.resolve(ctx, name, types, result, DecisionUpdated)

	default:
		return m.create(ctx, name, layer, types, log)
	}
}

// restore loads the persisted metadata for a cache-typed layer. It returns
// cached=false when the layer must be built from scratch, wiping any stale
// or untrusted directory first. Corrupt metadata is a cache miss, not an
// error.
func (m *Manager) restore(name Name, types Types, log logrus.FieldLogger) (Metadata, bool, error) {
	if !types.Cache {
		// Uncached layers are recreated unconditionally.
		if err := m.store.Remove(name); err != nil {
			return nil, false, fmt.Errorf("failed to clear uncached layer %s: %v", name, err)
		}
		return nil, false, nil
	}

	if !m.store.HasLayer(name) {
		return nil, false, nil
	}

	persisted, err := m.store.LoadMetadata(name)
	if err != nil {
		if errors.IsMetadataCorrupt(err) {
			log.WithField("error", err).Warn("Discarding layer with unreadable metadata")
			if rmErr := m.store.Remove(name); rmErr != nil {
				return nil, false, fmt.Errorf("failed to discard corrupt layer %s: %v", name, rmErr)
			}
			return nil, false, nil
		}
		return nil, false, err
	}
	if persisted == nil {
		return nil, false, nil
	}
	return persisted, true, nil
}

// decide picks the strategy for an existing layer. The default follows
// structural metadata equality; a layer implementing Strategist refines it.
// An update outcome degrades to recreate when the layer cannot update.
func (m *Manager) decide(ctx *Context, name Name, layer Layer, desired Metadata, existing *Existing, log logrus.FieldLogger) (Strategy, error) {
	_, canUpdate := layer.(Updater)

	strategy := StrategyRecreate
	if desired.Equal(existing.Metadata) {
		strategy = StrategyKeep
	} else if canUpdate {
		strategy = StrategyUpdate
	}

	if strategist, ok := layer.(Strategist); ok {
		refined, err := strategist.ExistingLayerStrategy(ctx, existing)
		if err != nil {
			return 0, operationError(name, "existing_layer_strategy", err)
		}
		strategy = refined
	}

	if strategy == StrategyUpdate && !canUpdate {
		log.Debug("Layer cannot update, falling back to recreate")
		strategy = StrategyRecreate
	}
	return strategy, nil
}

// create wipes any previous state and runs the layer's Create operation in a
// fresh directory.
func (m *Manager) create(ctx *Context, name Name, layer Layer, types Types, log logrus.FieldLogger) (*Handled, error) {
	if err := m.store.Remove(name); err != nil {
		return nil, fmt.Errorf("failed to remove stale layer %s: %v", name, err)
	}

	path := m.store.Path(name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create layer directory %s: %v", path, err)
	}

	log.WithField("decision", DecisionCreated).Info("Creating layer")
	result, err := layer.Create(ctx, path)
	if err != nil {
		return nil, operationError(name, "create", err)
	}
	return m.resolve(ctx, name, types, result, DecisionCreated)
}

// resolve persists a successful operation result and folds the layer's
// environment contribution into the running build environment. Only after
// both records are written is the layer considered resolved.
func (m *Manager) resolve(ctx *Context, name Name, types Types, result *Result, decision Decision) (*Handled, error) {
	if result == nil {
		return nil, operationError(name, string(decision), fmt.Errorf("layer returned no result"))
	}

	if err := m.store.StoreMetadata(name, result.Metadata); err != nil {
		return nil, fmt.Errorf("failed to persist metadata for layer %s: %v", name, err)
	}
	if err := m.store.StoreEnv(name, result.Env); err != nil {
		return nil, fmt.Errorf("failed to persist env for layer %s: %v", name, err)
	}

	return &Handled{
		Name:     name,
		Path:     m.store.Path(name),
		Types:    types,
		Metadata: result.Metadata,
		Env:      m.fold(ctx, types, result.Env),
		Decision: decision,
	}, nil
}

// fold applies the layer's Build+All environment view to the running build
// environment when the layer is build-visible. The layer's own modification
// list is returned unchanged for the caller to retain.
func (m *Manager) fold(ctx *Context, types Types, le env.LayerEnv) env.LayerEnv {
	if types.Build {
		ctx.Env = le.Apply(env.ScopeBuild, ctx.Env)
	}
	return le
}

func operationError(name Name, operation string, err error) error {
	if errors.KindOf(err) == errors.KindLayerOperation {
		return err
	}
	return errors.NewLayerOperation(name.String(), operation, err)
}
