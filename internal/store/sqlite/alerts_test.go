package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockwatch/internal/alert"
	"stockwatch/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func priceAlert(owner, symbol string, target float64) *model.AlertDefinition {
	return &model.AlertDefinition{
		OwnerID:     owner,
		Symbol:      symbol,
		Type:        model.AlertPrice,
		Condition:   model.CondAbove,
		TargetValue: target,
		IsActive:    true,
	}
}

// ────────────────────────────────────────────────────────────
// CRUD
// ────────────────────────────────────────────────────────────

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := priceAlert("u1", "AAPL", 150)
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("create did not assign an ID")
	}
	if a.Cooldown != model.DefaultCooldown {
		t.Errorf("cooldown default: got %v, want %v", a.Cooldown, model.DefaultCooldown)
	}

	got, err := s.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "AAPL" || got.TargetValue != 150 || got.TriggerCount != 0 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Cooldown != model.DefaultCooldown {
		t.Errorf("cooldown round trip: got %v", got.Cooldown)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	bad := priceAlert("u1", "AAPL", 150)
	bad.Condition = "sideways"
	err := s.CreateAlert(context.Background(), bad)
	if !errors.Is(err, alert.ErrInvalidDefinition) {
		t.Fatalf("got %v, want ErrInvalidDefinition", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAlert(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestListActiveExcludesPaused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	active := priceAlert("u1", "AAPL", 150)
	paused := priceAlert("u1", "TSLA", 200)
	paused.IsActive = false

	if err := s.CreateAlert(ctx, active); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAlert(ctx, paused); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Errorf("got %d alerts, want exactly the AAPL one: %+v", len(got), got)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := priceAlert("u1", "AAPL", 150)
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteAlert(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteAlert(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

// ────────────────────────────────────────────────────────────
// Trigger state
// ────────────────────────────────────────────────────────────

func TestUpdateTriggerState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := priceAlert("u1", "AAPL", 150)
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	if err := s.UpdateTriggerState(ctx, a.ID, 0, at); err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	got, err := s.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TriggerCount != 1 {
		t.Errorf("trigger count: got %d, want 1", got.TriggerCount)
	}
	if got.LastTriggered == nil || !got.LastTriggered.Equal(at) {
		t.Errorf("last triggered: got %v, want %v", got.LastTriggered, at)
	}
}

func TestUpdateTriggerStateConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := priceAlert("u1", "AAPL", 150)
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}

	at := time.Now().UTC()
	if err := s.UpdateTriggerState(ctx, a.ID, 0, at); err != nil {
		t.Fatal(err)
	}
	// Stale prevCount: a concurrent write already bumped the count.
	err := s.UpdateTriggerState(ctx, a.ID, 0, at)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update: got %v, want ErrConflict", err)
	}

	got, _ := s.GetAlert(ctx, a.ID)
	if got.TriggerCount != 1 {
		t.Errorf("conflict must not change count: got %d", got.TriggerCount)
	}
}

// ────────────────────────────────────────────────────────────
// Data issues
// ────────────────────────────────────────────────────────────

func TestFlagSymbolIssue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	aapl1 := priceAlert("u1", "AAPL", 150)
	aapl2 := priceAlert("u2", "AAPL", 160)
	tsla := priceAlert("u1", "TSLA", 200)
	for _, a := range []*model.AlertDefinition{aapl1, aapl2, tsla} {
		if err := s.CreateAlert(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.FlagSymbolIssue(ctx, "AAPL", "symbol not found"); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{aapl1.ID, aapl2.ID} {
		got, _ := s.GetAlert(ctx, id)
		if got.DataIssue != "symbol not found" {
			t.Errorf("alert %s: data issue %q", id, got.DataIssue)
		}
	}
	got, _ := s.GetAlert(ctx, tsla.ID)
	if got.DataIssue != "" {
		t.Errorf("TSLA must be untouched, got issue %q", got.DataIssue)
	}
}

func TestUpdateClearsDataIssue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := priceAlert("u1", "AAPL", 150)
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.FlagSymbolIssue(ctx, "AAPL", "feed outage"); err != nil {
		t.Fatal(err)
	}

	a.TargetValue = 175
	if err := s.UpdateAlert(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.GetAlert(ctx, a.ID)
	if got.DataIssue != "" {
		t.Errorf("update must clear data issue, got %q", got.DataIssue)
	}
	if got.TargetValue != 175 {
		t.Errorf("target: got %v, want 175", got.TargetValue)
	}
}

func TestSetActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := priceAlert("u1", "AAPL", 150)
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActive(ctx, a.ID, false); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetAlert(ctx, a.ID)
	if got.IsActive {
		t.Error("alert still active after pause")
	}
}
