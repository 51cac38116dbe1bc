package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brewcore/internal/blob"
	"brewcore/pkg/domain"
)

// Service exposes the higher-level entity operations consumed by business
// and presentation layers: creation, hydration, copy lineage, rename and
// folder moves, soft delete and undelete, listing, inventory adjustment,
// and table archiving. Every operation is instrumented through the
// configured logger, metrics recorder, and tracer.
type Service struct {
	registry *Registry
	gateway  Gateway
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	blobs    blob.Store
}

// ServiceOption customizes Service construction.
type ServiceOption func(*Service)

// WithLogger installs a structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder installs an operation metrics sink.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = metrics }
}

// WithTracer installs a per-operation tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithBlobStore installs the blob backend used by ArchiveTable.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(s *Service) { s.blobs = store }
}

// NewService constructs a service over the given registry and gateway.
func NewService(registry *Registry, gateway Gateway, opts ...ServiceOption) *Service {
	s := &Service{
		registry: registry,
		gateway:  gateway,
		logger:   domain.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// instrument wraps one operation with tracing, metrics, and failure logging.
func (s *Service) instrument(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	err := fn()
	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err)
	}
	return err
}

func (s *Service) meta(table Table) (*TypeMeta, error) {
	meta, ok := s.registry.Type(table)
	if !ok {
		return nil, fmt.Errorf("unregistered table %q", table)
	}
	return meta, nil
}

// Create builds a new record with the given name, folder, and property
// values and persists it. Property seeding is cache-only, so no change
// events fire before the entity exists in storage.
func (s *Service) Create(ctx context.Context, table Table, name, folder string, props map[string]any) (*Record, error) {
	var rec *Record
	err := s.instrument(ctx, "create", func() error {
		meta, err := s.meta(table)
		if err != nil {
			return err
		}
		r := domain.NewRecord(meta, s.gateway, s.logger)
		if err := r.SetPropertyCached(PropName, name); err != nil {
			return err
		}
		if folder != "" {
			if err := r.SetPropertyCached(PropFolder, folder); err != nil {
				return err
			}
		}
		for prop, value := range props {
			if err := r.SetPropertyCached(prop, value); err != nil {
				return err
			}
		}
		if _, err := r.Insert(nil); err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

// Load hydrates a record from storage, warming the property cache without
// emitting change events. It fails when the row does not exist.
func (s *Service) Load(ctx context.Context, table Table, key int64) (*Record, error) {
	var rec *Record
	err := s.instrument(ctx, "load", func() error {
		meta, err := s.meta(table)
		if err != nil {
			return err
		}
		if _, err := s.gateway.ReadColumn(table, key, ColumnName); err != nil {
			return fmt.Errorf("load %s/%d: %w", table, key, err)
		}
		r, err := domain.LoadRecord(meta, s.gateway, s.logger, key)
		if err != nil {
			return err
		}
		for _, def := range meta.Properties() {
			if _, err := r.GetProperty(def.Name); err != nil {
				var mismatch PropertyTypeMismatchError
				if errors.As(err, &mismatch) {
					// A malformed stored value marks the record invalid
					// instead of failing the whole hydration.
					r.Invalidate()
					s.logger.Warn("malformed stored value", "table", table, "key", key, "property", def.Name)
					continue
				}
				return err
			}
		}
		rec = r
		return nil
	})
	return rec, err
}

// CopyForUse clones a persisted record and inserts the clone, fixing its
// lineage to the source at copy time. The clone gets its own observers.
func (s *Service) CopyForUse(ctx context.Context, src *Record) (*Record, error) {
	var rec *Record
	err := s.instrument(ctx, "copy_for_use", func() error {
		if src.Key() == 0 {
			return fmt.Errorf("cannot copy transient %s entity", src.Table())
		}
		cp, err := src.Copy()
		if err != nil {
			return err
		}
		if _, err := cp.Insert(nil); err != nil {
			return err
		}
		rec = cp
		return nil
	})
	return rec, err
}

// Rename sets the entity's name, firing name-changed then generic events
// when the stored value actually changes.
func (s *Service) Rename(ctx context.Context, rec *Record, name string) error {
	return s.instrument(ctx, "rename", func() error {
		return rec.SetName(name)
	})
}

// MoveToFolder relocates the entity in the folder tree.
func (s *Service) MoveToFolder(ctx context.Context, rec *Record, folder string) error {
	return s.instrument(ctx, "move_to_folder", func() error {
		return rec.SetFolder(folder)
	})
}

// SoftDelete marks the entity deleted while keeping its row addressable.
func (s *Service) SoftDelete(ctx context.Context, rec *Record) error {
	return s.instrument(ctx, "soft_delete", func() error {
		return rec.SetDeleted(true)
	})
}

// Undelete clears the deleted flag. When the stored row is gone entirely the
// record is re-inserted under a fresh key; keys are never reused.
func (s *Service) Undelete(ctx context.Context, rec *Record) error {
	return s.instrument(ctx, "undelete", func() error {
		if rec.Key() != 0 {
			if _, err := s.gateway.ReadColumn(rec.Table(), rec.Key(), ColumnName); err == nil {
				return rec.SetDeleted(false)
			}
		}
		if _, err := rec.Insert(nil); err != nil {
			return err
		}
		return rec.SetDeleted(false)
	})
}

// List returns the live keys of a table in ascending order.
func (s *Service) List(ctx context.Context, table Table) ([]int64, error) {
	var keys []int64
	err := s.instrument(ctx, "list", func() error {
		lister, err := s.lister()
		if err != nil {
			return err
		}
		if _, err := s.meta(table); err != nil {
			return err
		}
		keys, err = lister.Keys(table, false)
		return err
	})
	return keys, err
}

// ListDeleted returns only the soft-deleted keys of a table.
func (s *Service) ListDeleted(ctx context.Context, table Table) ([]int64, error) {
	var deleted []int64
	err := s.instrument(ctx, "list_deleted", func() error {
		lister, err := s.lister()
		if err != nil {
			return err
		}
		if _, err := s.meta(table); err != nil {
			return err
		}
		all, err := lister.Keys(table, true)
		if err != nil {
			return err
		}
		live, err := lister.Keys(table, false)
		if err != nil {
			return err
		}
		liveSet := make(map[int64]struct{}, len(live))
		for _, k := range live {
			liveSet[k] = struct{}{}
		}
		deleted = deleted[:0]
		for _, k := range all {
			if _, ok := liveSet[k]; !ok {
				deleted = append(deleted, k)
			}
		}
		return nil
	})
	return deleted, err
}

// AdjustInventory applies a delta to a numeric inventory column and returns
// the new amount. A missing inventory row counts as zero on hand.
func (s *Service) AdjustInventory(ctx context.Context, rec *Record, column string, delta float64) (float64, error) {
	var amount float64
	err := s.instrument(ctx, "adjust_inventory", func() error {
		current, err := rec.Inventory(column)
		if err != nil {
			return err
		}
		base, err := asFloat(current)
		if err != nil {
			return fmt.Errorf("inventory column %q: %w", column, err)
		}
		amount = base + delta
		return rec.SetInventory(column, amount)
	})
	return amount, err
}

// TableArchive is the JSON document written by ArchiveTable.
type TableArchive struct {
	Table      Table                    `json:"table"`
	Version    int                      `json:"version"`
	ArchivedAt time.Time                `json:"archived_at"`
	Rows       map[int64]map[string]any `json:"rows"`
}

// ArchiveTable snapshots every row of a table (soft-deleted included) into
// the configured blob store and returns the stored object's metadata.
func (s *Service) ArchiveTable(ctx context.Context, table Table) (blob.Info, error) {
	var info blob.Info
	err := s.instrument(ctx, "archive_table", func() error {
		if s.blobs == nil {
			return fmt.Errorf("no blob store configured")
		}
		lister, err := s.lister()
		if err != nil {
			return err
		}
		meta, err := s.meta(table)
		if err != nil {
			return err
		}
		rows, err := lister.Rows(table, true)
		if err != nil {
			return err
		}
		archive := TableArchive{
			Table:      table,
			Version:    meta.Version(),
			ArchivedAt: time.Now().UTC(),
			Rows:       rows,
		}
		payload, err := json.Marshal(archive)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("archives/%s/%s.json", table, archive.ArchivedAt.Format("20060102T150405.000000000Z"))
		info, err = s.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"table": string(table)},
		})
		if err != nil {
			return err
		}
		s.logger.Info("table archived", "table", table, "key", info.Key, "rows", len(rows))
		return nil
	})
	return info, err
}

// Tables returns the registered tables sorted by name.
func (s *Service) Tables() []Table { return s.registry.Tables() }

func (s *Service) lister() (RowLister, error) {
	lister, ok := s.gateway.(RowLister)
	if !ok {
		return nil, fmt.Errorf("gateway does not support listing")
	}
	return lister, nil
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
