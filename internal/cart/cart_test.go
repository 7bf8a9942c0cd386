package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/offsetgrid/backend/internal/models"
)

func snapshot(id string, remaining int64) models.Class {
	return models.Class{ID: id, ProjectID: "proj_001", Vintage: "2023",
		Issued: 1000, Remaining: remaining, Status: models.ClassFinalized}
}

func newTestService() *Service {
	return NewService(NewMemoryStore(), nil)
}

func TestAddOrUpdate_RejectsInvalidQuantity(t *testing.T) {
	svc := newTestService()
	for _, qty := range []int64{0, -1, -50} {
		if _, err := svc.AddOrUpdate(context.Background(), "s1", "class_001", qty, snapshot("class_001", 100)); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestAddOrUpdate_Idempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.AddOrUpdate(ctx, "s1", "class_001", 50, snapshot("class_001", 850))
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	second, err := svc.AddOrUpdate(ctx, "s1", "class_001", 50, snapshot("class_001", 850))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected a single line, got %d then %d", len(first), len(second))
	}
	if second[0].Quantity != first[0].Quantity {
		t.Errorf("repeated identical add changed quantity: %d vs %d", first[0].Quantity, second[0].Quantity)
	}
}

func TestAddOrUpdate_MergesIntoOneLinePerClass(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddOrUpdate(ctx, "s1", "class_001", 10, snapshot("class_001", 850)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddOrUpdate(ctx, "s1", "class_002", 5, snapshot("class_002", 600)); err != nil {
		t.Fatal(err)
	}
	lines, err := svc.AddOrUpdate(ctx, "s1", "class_001", 25, snapshot("class_001", 850))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	// Insertion order preserved, class_001 updated in place.
	if lines[0].ClassID != "class_001" || lines[0].Quantity != 25 {
		t.Errorf("line 0 = %s qty %d, want class_001 qty 25", lines[0].ClassID, lines[0].Quantity)
	}
	if lines[1].ClassID != "class_002" || lines[1].Quantity != 5 {
		t.Errorf("line 1 = %s qty %d, want class_002 qty 5", lines[1].ClassID, lines[1].Quantity)
	}
}

func TestAddOrUpdate_ClampsToSnapshotRemaining(t *testing.T) {
	svc := newTestService()
	lines, err := svc.AddOrUpdate(context.Background(), "s1", "class_001", 900, snapshot("class_001", 850))
	if err != nil {
		t.Fatal(err)
	}
	if lines[0].Quantity != 850 {
		t.Errorf("expected clamp to 850, got %d", lines[0].Quantity)
	}
}

func TestAddOrUpdate_SoldOutSnapshotKeepsRequestedQuantity(t *testing.T) {
	svc := newTestService()
	lines, err := svc.AddOrUpdate(context.Background(), "s1", "class_001", 50, snapshot("class_001", 0))
	if err != nil {
		t.Fatal(err)
	}
	// Not clamped to zero; checkout re-validates against live supply.
	if lines[0].Quantity != 50 {
		t.Errorf("expected quantity 50 for sold-out snapshot, got %d", lines[0].Quantity)
	}
}

func TestSetQuantity_ZeroEquivalentToRemove(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddOrUpdate(ctx, "s1", "class_001", 10, snapshot("class_001", 850)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetQuantity(ctx, "s1", "class_001", 0); err != nil {
		t.Fatalf("set quantity 0: %v", err)
	}
	lines, err := svc.Lines(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart after SetQuantity(0), got %d lines", len(lines))
	}
	totals, err := svc.Totals(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if totals.LineCount != 0 || totals.TotalQuantity != 0 {
		t.Errorf("expected zero totals, got %+v", totals)
	}
}

func TestSetQuantity_UpdatesInPlace(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddOrUpdate(ctx, "s1", "class_001", 10, snapshot("class_001", 850)); err != nil {
		t.Fatal(err)
	}
	lines, err := svc.SetQuantity(ctx, "s1", "class_001", 42)
	if err != nil {
		t.Fatal(err)
	}
	if lines[0].Quantity != 42 {
		t.Errorf("expected quantity 42, got %d", lines[0].Quantity)
	}
}

func TestSetQuantity_MissingLine(t *testing.T) {
	svc := newTestService()
	if _, err := svc.SetQuantity(context.Background(), "s1", "class_404", 5); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddOrUpdate(ctx, "s1", "class_001", 50, snapshot("class_001", 850)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddOrUpdate(ctx, "s1", "class_002", 25, snapshot("class_002", 600)); err != nil {
		t.Fatal(err)
	}
	totals, err := svc.Totals(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if totals.LineCount != 2 || totals.TotalQuantity != 75 {
		t.Errorf("expected {2 75}, got %+v", totals)
	}
}

func TestCarts_IsolatedPerSession(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddOrUpdate(ctx, "s1", "class_001", 10, snapshot("class_001", 850)); err != nil {
		t.Fatal(err)
	}
	lines, err := svc.Lines(ctx, "s2")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart for other session, got %d lines", len(lines))
	}
}

func TestClear(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddOrUpdate(ctx, "s1", "class_001", 10, snapshot("class_001", 850)); err != nil {
		t.Fatal(err)
	}
	if err := svc.Clear(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	lines, err := svc.Lines(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart after clear, got %d lines", len(lines))
	}
}
