package domain

import (
	"errors"
	"testing"
	"time"
)

func newPersistedRecord(t *testing.T, gw *fakeGateway, meta *TypeMeta) *Record {
	t.Helper()
	rec := NewRecord(meta, gw, nil)
	if err := rec.SetPropertyCached(PropName, "Cascade"); err != nil {
		t.Fatalf("seed name: %v", err)
	}
	if _, err := rec.Insert(nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return rec
}

func TestSetPropertyRoundTrip(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	var events []PropertyEvent
	rec.Notifier().OnChanged(func(ev PropertyEvent) error {
		events = append(events, ev)
		return nil
	})

	cases := []struct {
		prop  string
		value any
		want  any
	}{
		{"alpha", 5.5, 5.5},
		{"use", "boil", "boil"},
		{"time", 60, int64(60)},
		{PropFolder, "American/Aroma", "American/Aroma"},
	}
	for _, tc := range cases {
		if err := rec.SetProperty(tc.prop, tc.value); err != nil {
			t.Fatalf("set %s: %v", tc.prop, err)
		}
		got, err := rec.GetProperty(tc.prop)
		if err != nil {
			t.Fatalf("get %s: %v", tc.prop, err)
		}
		if got != tc.want {
			t.Fatalf("property %s: expected %v, got %v", tc.prop, tc.want, got)
		}
	}
	if len(events) != len(cases) {
		t.Fatalf("expected %d change events, got %d", len(cases), len(events))
	}
	for i, tc := range cases {
		if events[i].Name != tc.prop || events[i].Value != tc.want {
			t.Fatalf("event %d: expected (%s,%v), got (%s,%v)", i, tc.prop, tc.want, events[i].Name, events[i].Value)
		}
	}
}

func TestSetPropertyWritesMappedColumn(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	if err := rec.SetProperty(PropFolder, "American/Aroma"); err != nil {
		t.Fatalf("set folder: %v", err)
	}
	stored := gw.rows["hop"][rec.Key()][ColumnFolder]
	if stored != "American/Aroma" {
		t.Fatalf("expected stored folder %q, got %v", "American/Aroma", stored)
	}
}

func TestSetPropertyUnchangedValueEmitsNothing(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)
	if err := rec.SetProperty("alpha", 5.5); err != nil {
		t.Fatalf("set alpha: %v", err)
	}

	fired := 0
	rec.Notifier().OnChanged(func(PropertyEvent) error {
		fired++
		return nil
	})
	if err := rec.SetProperty("alpha", 5.5); err != nil {
		t.Fatalf("set alpha again: %v", err)
	}
	if fired != 0 {
		t.Fatalf("expected no events for unchanged value, got %d", fired)
	}
}

func TestSetPropertyCachedSkipsStorageAndEvents(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	fired := 0
	rec.Notifier().OnChanged(func(PropertyEvent) error {
		fired++
		return nil
	})
	writesBefore := gw.writes
	if err := rec.SetPropertyCached("alpha", 7.25); err != nil {
		t.Fatalf("cached set: %v", err)
	}
	if gw.writes != writesBefore {
		t.Fatalf("cached set must not touch storage")
	}
	if fired != 0 {
		t.Fatalf("cached set must not notify, got %d events", fired)
	}
	got, err := rec.GetProperty("alpha")
	if err != nil {
		t.Fatalf("get alpha: %v", err)
	}
	if got != 7.25 {
		t.Fatalf("expected cached 7.25, got %v", got)
	}
}

func TestSetNameEmitsDedicatedEventFirst(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	var order []string
	rec.Notifier().OnNameChanged(func(v string) error {
		order = append(order, "name:"+v)
		return nil
	})
	rec.Notifier().OnChanged(func(ev PropertyEvent) error {
		order = append(order, "generic:"+ev.Value.(string))
		return nil
	})
	if err := rec.SetName("Centennial"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if len(order) != 2 || order[0] != "name:Centennial" || order[1] != "generic:Centennial" {
		t.Fatalf("unexpected event order %v", order)
	}
}

func TestSetFolderEmitsDedicatedEventFirst(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	var order []string
	rec.Notifier().OnFolderChanged(func(v string) error {
		order = append(order, "folder")
		return nil
	})
	rec.Notifier().OnChanged(func(PropertyEvent) error {
		order = append(order, "generic")
		return nil
	})
	if err := rec.SetFolder("American/Aroma"); err != nil {
		t.Fatalf("set folder: %v", err)
	}
	if len(order) != 2 || order[0] != "folder" || order[1] != "generic" {
		t.Fatalf("unexpected event order %v", order)
	}
}

func TestSetPropertyErrors(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	t.Run("unknown property", func(t *testing.T) {
		err := rec.SetProperty("bitterness", 12)
		var unknown UnknownPropertyError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownPropertyError, got %v", err)
		}
	})

	t.Run("kind mismatch", func(t *testing.T) {
		err := rec.SetProperty("alpha", "high")
		var mismatch PropertyTypeMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected PropertyTypeMismatchError, got %v", err)
		}
	})

	t.Run("write failure leaves cache unchanged", func(t *testing.T) {
		if err := rec.SetProperty("use", "boil"); err != nil {
			t.Fatalf("seed use: %v", err)
		}
		gw.failWrite = errors.New("disk full")
		defer func() { gw.failWrite = nil }()

		fired := 0
		rec.Notifier().OnChanged(func(PropertyEvent) error {
			fired++
			return nil
		})
		err := rec.SetProperty("use", "dry hop")
		var writeErr StorageWriteError
		if !errors.As(err, &writeErr) {
			t.Fatalf("expected StorageWriteError, got %v", err)
		}
		got, getErr := rec.GetProperty("use")
		if getErr != nil {
			t.Fatalf("get use: %v", getErr)
		}
		if got != "boil" {
			t.Fatalf("cache changed on failed write: %v", got)
		}
		if fired != 0 {
			t.Fatalf("no events expected on failed write, got %d", fired)
		}
	})
}

func TestGetPropertyReadsThroughAndCaches(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)
	if err := rec.SetProperty("alpha", 6.1); err != nil {
		t.Fatalf("set alpha: %v", err)
	}

	reloaded, err := LoadRecord(meta, gw, nil, rec.Key())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := reloaded.GetProperty("alpha")
	if err != nil {
		t.Fatalf("read through: %v", err)
	}
	if got != 6.1 {
		t.Fatalf("expected 6.1, got %v", got)
	}

	// Cached now: a storage failure must not affect repeated reads.
	gw.failRead = errors.New("gone")
	defer func() { gw.failRead = nil }()
	if got, err = reloaded.GetProperty("alpha"); err != nil || got != 6.1 {
		t.Fatalf("cached read failed: %v %v", got, err)
	}
}

func TestGetPropertyReadFailure(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	gw.failRead = errors.New("io error")
	defer func() { gw.failRead = nil }()
	_, err := rec.GetProperty("alpha")
	var readErr StorageReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected StorageReadError, got %v", err)
	}
}

func TestTransientRecordDefaults(t *testing.T) {
	_, meta := testRegistry(t)
	rec := NewRecord(meta, newFakeGateway(), nil)
	if rec.Key() != 0 {
		t.Fatalf("transient record must have zero key")
	}
	name, err := rec.Name()
	if err != nil || name != "" {
		t.Fatalf("expected empty name, got %q err=%v", name, err)
	}
	deleted, err := rec.Deleted()
	if err != nil || deleted {
		t.Fatalf("expected not deleted, got %v err=%v", deleted, err)
	}
	if !rec.IsValid() {
		t.Fatalf("fresh record must be valid")
	}
}

func TestInvalidateIsOneWayAndIdempotent(t *testing.T) {
	_, meta := testRegistry(t)
	rec := NewRecord(meta, newFakeGateway(), nil)
	rec.Invalidate()
	if rec.IsValid() {
		t.Fatalf("expected invalid after Invalidate")
	}
	rec.Invalidate()
	if rec.IsValid() {
		t.Fatalf("Invalidate must be idempotent")
	}
}

func TestSoftDeleteRoundTrip(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)
	if err := rec.SetFolder("American/Aroma"); err != nil {
		t.Fatalf("set folder: %v", err)
	}

	if err := rec.SetDeleted(true); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	keys, err := gw.Keys("hop", false)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("deleted entity must be excluded from default enumeration")
	}
	keys, err = gw.Keys("hop", true)
	if err != nil {
		t.Fatalf("keys incl deleted: %v", err)
	}
	if len(keys) != 1 || keys[0] != rec.Key() {
		t.Fatalf("deleted entity must remain addressable, got %v", keys)
	}

	if err := rec.SetDeleted(false); err != nil {
		t.Fatalf("undelete: %v", err)
	}
	name, err := rec.Name()
	if err != nil || name != "Cascade" {
		t.Fatalf("undelete must preserve name, got %q err=%v", name, err)
	}
	folder, err := rec.Folder()
	if err != nil || folder != "American/Aroma" {
		t.Fatalf("undelete must preserve folder, got %q err=%v", folder, err)
	}
	if rec.ParentKey() != 0 {
		t.Fatalf("undelete must preserve parent key")
	}
}

func TestCopyDuplicatesValuesNotKey(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	original := newPersistedRecord(t, gw, meta)
	if err := original.SetProperty("alpha", 5.5); err != nil {
		t.Fatalf("set alpha: %v", err)
	}

	cp, err := original.Copy()
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if cp.Key() != 0 {
		t.Fatalf("copy must be transient")
	}
	got, err := cp.GetProperty("alpha")
	if err != nil || got != 5.5 {
		t.Fatalf("copy must carry property values, got %v err=%v", got, err)
	}
	if cp.ParentKey() != original.Key() {
		t.Fatalf("copy must record source key as parent")
	}

	key, err := cp.Insert(nil)
	if err != nil {
		t.Fatalf("insert copy: %v", err)
	}
	if key == original.Key() {
		t.Fatalf("copy key must differ from original after insertion")
	}
	if stored := gw.rows["hop"][key][ColumnParentKey]; stored != original.Key() {
		t.Fatalf("parent key column not persisted, got %v", stored)
	}
}

func TestCopyAfterColdLoadReadsThrough(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	original := newPersistedRecord(t, gw, meta)
	if err := original.SetProperty("alpha", 5.5); err != nil {
		t.Fatalf("set alpha: %v", err)
	}
	if err := original.SetProperty("use", "boil"); err != nil {
		t.Fatalf("set use: %v", err)
	}

	// A freshly loaded record has an empty cache; Copy must still duplicate
	// every registered property, not just what happened to be read already.
	cold, err := LoadRecord(meta, gw, nil, original.Key())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cp, err := cold.Copy()
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	for prop, want := range map[string]any{"alpha": 5.5, "use": "boil", PropName: "Cascade"} {
		got, err := cp.GetProperty(prop)
		if err != nil {
			t.Fatalf("get %s on copy: %v", prop, err)
		}
		if got != want {
			t.Fatalf("property %s: expected %v, got %v", prop, want, got)
		}
	}
	if cp.ParentKey() != original.Key() {
		t.Fatalf("copy must record source key as parent")
	}

	// A storage failure during the read-through surfaces instead of
	// producing a partial copy.
	cold2, err := LoadRecord(meta, gw, nil, original.Key())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gw.failRead = errors.New("gone")
	defer func() { gw.failRead = nil }()
	if _, err := cold2.Copy(); err == nil {
		t.Fatalf("expected error copying with unreadable storage")
	}
}

func TestInsertIncludesBaseColumns(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := NewRecord(meta, gw, nil)
	if err := rec.SetPropertyCached(PropName, "Cascade"); err != nil {
		t.Fatalf("seed name: %v", err)
	}
	key, err := rec.Insert(map[string]any{"origin": "US", ColumnName: "override"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	row := gw.rows["hop"][key]
	if row[ColumnName] != "Cascade" {
		t.Fatalf("extra columns must not override base columns, got %v", row[ColumnName])
	}
	for _, col := range []string{ColumnFolder, ColumnDeleted, ColumnDisplay} {
		if _, ok := row[col]; !ok {
			t.Fatalf("base column %q missing from insert", col)
		}
	}
	if row["origin"] != "US" {
		t.Fatalf("extra column lost, got %v", row["origin"])
	}
}

func TestInsertTwiceFails(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)
	if _, err := rec.Insert(nil); err == nil {
		t.Fatalf("expected error inserting an already-persisted entity")
	}
}

func TestInsertResurrectsPurgedRowUnderFreshKey(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)
	oldKey := rec.Key()

	// External hard removal is out of scope for the core; emulate it.
	delete(gw.rows["hop"], oldKey)

	key, err := rec.Insert(nil)
	if err != nil {
		t.Fatalf("resurrect: %v", err)
	}
	if key == oldKey {
		t.Fatalf("resurrected entity must not reuse its old key")
	}
	if rec.Key() != key {
		t.Fatalf("record must adopt the new key")
	}
}

func TestInventoryLifecycle(t *testing.T) {
	_, meta := testRegistry(t)
	gw := newFakeGateway()
	rec := newPersistedRecord(t, gw, meta)

	got, err := rec.Inventory("amount")
	if err != nil {
		t.Fatalf("inventory before create: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil before first write, got %v", got)
	}

	var events []PropertyEvent
	rec.Notifier().OnChanged(func(ev PropertyEvent) error {
		events = append(events, ev)
		return nil
	})
	if err := rec.SetInventory("amount", 2.5); err != nil {
		t.Fatalf("set inventory: %v", err)
	}
	if rec.InventoryKey() == 0 {
		t.Fatalf("first inventory write must create a row")
	}
	got, err = rec.Inventory("amount")
	if err != nil {
		t.Fatalf("inventory read: %v", err)
	}
	if got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	if len(events) != 1 || events[0].Name != "amount" {
		t.Fatalf("expected one inventory change event, got %v", events)
	}

	firstKey := rec.InventoryKey()
	if err := rec.SetInventory("amount", 3.0); err != nil {
		t.Fatalf("update inventory: %v", err)
	}
	if rec.InventoryKey() != firstKey {
		t.Fatalf("inventory row key must be stable after creation")
	}
}

func TestInventoryWithoutTableFails(t *testing.T) {
	registry := NewRegistry()
	meta, err := registry.RegisterType(TypeSpec{Table: "recipe", Version: 1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	gw := newFakeGateway()
	rec := NewRecord(meta, gw, nil)
	if _, err := rec.Insert(nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := rec.Inventory("amount"); err == nil {
		t.Fatalf("expected error for type without inventory table")
	}
	if err := rec.SetInventory("amount", 1.0); err == nil {
		t.Fatalf("expected error for type without inventory table")
	}
}

func TestTimePropertyRoundTrip(t *testing.T) {
	registry := NewRegistry()
	meta, err := registry.RegisterType(TypeSpec{
		Table:   "batch",
		Version: 1,
		Properties: []PropertyDef{
			{Name: "brewed_at", Kind: KindTime, Column: "brewed_at"},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	gw := newFakeGateway()
	rec := NewRecord(meta, gw, nil)
	if _, err := rec.Insert(nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	brewed := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if err := rec.SetProperty("brewed_at", brewed); err != nil {
		t.Fatalf("set brewed_at: %v", err)
	}
	got, err := rec.GetProperty("brewed_at")
	if err != nil {
		t.Fatalf("get brewed_at: %v", err)
	}
	if !got.(time.Time).Equal(brewed) {
		t.Fatalf("expected %v, got %v", brewed, got)
	}
}
