package column

import (
	"path/filepath"
	"testing"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

func TestFileAppendSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price.col")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if err := f.Append("p1", entity.Number(9.99), false); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := f.Append("p2", entity.Number(19.99), false); err != nil {
		t.Fatalf("Append: %v", err)
	}

	ids, values := f.Snapshot()
	if len(ids) != 2 {
		t.Fatalf("expected 2 live rows, got %d", len(ids))
	}
	if n, _ := values[0].AsNumber(); n != 9.99 {
		t.Fatalf("unexpected first value: %v", n)
	}
}

func TestFileReopenReplaysPriorRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price.col")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.Append("p1", entity.Number(1), false)
	f.Append("p2", entity.Number(2), false)
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	ids, _ := reopened.Snapshot()
	if len(ids) != 2 {
		t.Fatalf("expected 2 rows after reopen, got %d", len(ids))
	}
}

func TestFileTombstoneHidesFromSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.col")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	f.Append("p1", entity.String("active"), false)
	if err := f.Append("p1", entity.Null, true); err != nil {
		t.Fatalf("tombstone Append: %v", err)
	}

	ids, _ := f.Snapshot()
	if len(ids) != 0 {
		t.Fatalf("expected tombstoned row to be hidden, got %d", len(ids))
	}
	if f.RecordCount() != 0 {
		t.Fatalf("expected RecordCount 0 after tombstone, got %d", f.RecordCount())
	}
}

func TestFileCompressedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desc.col")
	f, err := OpenCompressed(path, true)
	if err != nil {
		t.Fatalf("OpenCompressed: %v", err)
	}
	longText := entity.String("a fairly long piece of descriptive text to make compression worthwhile across many repeated words words words")
	if err := f.Append("p1", longText, false); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen with compression disabled: %v", err)
	}
	defer reopened.Close()
	ids, values := reopened.Snapshot()
	if len(ids) != 1 {
		t.Fatalf("expected 1 row, got %d", len(ids))
	}
	if !values[0].Equal(longText) {
		t.Fatalf("compressed record did not round-trip: got %#v", values[0])
	}
}

func TestStoreProjectAndFilterByColumnUsesIndex(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.EnsureColumns("product", []string{"category"}, []string{"category"}); err != nil {
		t.Fatalf("EnsureColumns: %v", err)
	}

	s.Project(&entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{"category": entity.String("electronics")}}, []string{"category"})
	s.Project(&entity.Entity{Type: "product", ID: "p2", Attributes: map[string]entity.Value{"category": entity.String("furniture")}}, []string{"category"})

	ids, err := s.FilterByColumn("product", "category", queryspec.OpEq, "electronics")
	if err != nil {
		t.Fatalf("FilterByColumn: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("FilterByColumn(eq electronics) = %v", ids)
	}
}

func TestStoreProjectMissingAttributeStoresNull(t *testing.T) {
	s := NewStore(t.TempDir())
	s.EnsureColumns("product", []string{"category"}, nil)
	s.Project(&entity.Entity{Type: "product", ID: "p1"}, []string{"category"})

	// No index on "category": OpNe falls back to a full scan. The missing
	// attribute was stored as Null, which is not equal to "electronics", so
	// the scan matches it.
	ids, err := s.FilterByColumn("product", "category", queryspec.OpNe, "electronics")
	if err != nil {
		t.Fatalf("FilterByColumn: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("expected full-scan NE fallback to match the null-valued row, got %v", ids)
	}
}

func TestStoreProjectUpdateRemovesStaleIndexPosting(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.EnsureColumns("product", []string{"category"}, []string{"category"}); err != nil {
		t.Fatalf("EnsureColumns: %v", err)
	}

	s.Project(&entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{"category": entity.String("electronics")}}, []string{"category"})
	// Update p1 to a new category value; the old "electronics" posting must
	// no longer resolve to p1.
	s.Project(&entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{"category": entity.String("furniture")}}, []string{"category"})

	oldCat, err := s.FilterByColumn("product", "category", queryspec.OpEq, "electronics")
	if err != nil {
		t.Fatalf("FilterByColumn(old value): %v", err)
	}
	if len(oldCat) != 0 {
		t.Fatalf("expected stale index posting to be gone, got %v", oldCat)
	}

	newCat, err := s.FilterByColumn("product", "category", queryspec.OpEq, "furniture")
	if err != nil {
		t.Fatalf("FilterByColumn(new value): %v", err)
	}
	if len(newCat) != 1 || newCat[0] != "p1" {
		t.Fatalf("expected p1 under the new value, got %v", newCat)
	}
}

func TestStoreRemoveEntityTombstonesAcrossColumns(t *testing.T) {
	s := NewStore(t.TempDir())
	s.EnsureColumns("product", []string{"category", "price"}, []string{"category"})
	s.Project(&entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"), "price": entity.Number(10),
	}}, []string{"category", "price"})

	if err := s.RemoveEntity("product", "p1"); err != nil {
		t.Fatalf("RemoveEntity: %v", err)
	}

	ids, err := s.FilterByColumn("product", "category", queryspec.OpEq, "electronics")
	if err != nil {
		t.Fatalf("FilterByColumn: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids after RemoveEntity, got %v", ids)
	}
}

func TestStoreAggregateColumn(t *testing.T) {
	s := NewStore(t.TempDir())
	s.EnsureColumns("product", []string{"price"}, nil)
	for i, id := range []string{"p1", "p2", "p3"} {
		s.Project(&entity.Entity{Type: "product", ID: id, Attributes: map[string]entity.Value{
			"price": entity.Number(float64((i + 1) * 10)),
		}}, []string{"price"})
	}

	sum, err := s.AggregateColumn("product", "price", queryspec.AggSum, nil)
	if err != nil {
		t.Fatalf("AggregateColumn(sum): %v", err)
	}
	if sum != 60 {
		t.Fatalf("expected sum 60, got %v", sum)
	}

	avg, err := s.AggregateColumn("product", "price", queryspec.AggAvg, nil)
	if err != nil {
		t.Fatalf("AggregateColumn(avg): %v", err)
	}
	if avg != 20 {
		t.Fatalf("expected avg 20, got %v", avg)
	}
}

func TestStoreGroupByAggregate(t *testing.T) {
	s := NewStore(t.TempDir())
	s.EnsureColumns("product", []string{"category", "price"}, nil)
	data := []struct {
		id       string
		category string
		price    float64
	}{
		{"p1", "electronics", 10},
		{"p2", "electronics", 30},
		{"p3", "furniture", 100},
	}
	for _, d := range data {
		s.Project(&entity.Entity{Type: "product", ID: d.id, Attributes: map[string]entity.Value{
			"category": entity.String(d.category), "price": entity.Number(d.price),
		}}, []string{"category", "price"})
	}

	groups, err := s.GroupByAggregate("product", "category", "price", queryspec.AggSum)
	if err != nil {
		t.Fatalf("GroupByAggregate: %v", err)
	}
	if groups["electronics"] != 40 {
		t.Fatalf("expected electronics sum 40, got %v", groups["electronics"])
	}
	if groups["furniture"] != 100 {
		t.Fatalf("expected furniture sum 100, got %v", groups["furniture"])
	}
}

func TestCheckConsistencyFlagsDataMismatch(t *testing.T) {
	s := NewStore(t.TempDir())
	s.EnsureColumns("product", []string{"category"}, nil)
	s.Project(&entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{"category": entity.String("x")}}, []string{"category"})

	// liveCount of 2 but only 1 row was ever projected: mismatch.
	issues := s.CheckConsistency("product", []string{"category"}, 2)
	foundMismatch := false
	for _, iss := range issues {
		if iss.Kind == DataMismatch {
			foundMismatch = true
		}
	}
	if !foundMismatch {
		t.Fatalf("expected a DataMismatch issue, got %v", issues)
	}
}

func TestCheckConsistencyFlagsOrphanedColumn(t *testing.T) {
	s := NewStore(t.TempDir())
	s.EnsureColumns("product", []string{"category", "price"}, nil)
	s.Project(&entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("x"), "price": entity.Number(1),
	}}, []string{"category", "price"})

	// Only "category" remains configured; "price" should be flagged orphaned.
	issues := s.CheckConsistency("product", []string{"category"}, 1)
	foundOrphan := false
	for _, iss := range issues {
		if iss.Kind == OrphanedColumnData && iss.Column == "price" {
			foundOrphan = true
		}
	}
	if !foundOrphan {
		t.Fatalf("expected an OrphanedColumnData issue for price, got %v", issues)
	}
}
