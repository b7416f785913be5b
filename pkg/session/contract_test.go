package session

import (
	"context"
	"testing"
)

// exerciseBackend runs the behaviour every Backend must share.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	a, err := b.Open(ctx, "alpha")
	if err != nil {
		t.Fatalf("open alpha: %v", err)
	}
	other, err := b.Open(ctx, "beta")
	if err != nil {
		t.Fatalf("open beta: %v", err)
	}

	glucose := FieldKey{PanelID: "diabetes", Feature: "Glucose"}
	age := FieldKey{PanelID: "diabetes", Feature: "Age"}

	if v, err := a.Get(ctx, glucose); err != nil || v != "" {
		t.Fatalf("expected empty value for unset key, got %q (%v)", v, err)
	}

	if err := a.Set(ctx, glucose, "120"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := a.EnsureInitialized(ctx, []FieldKey{glucose, age}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if v, _ := a.Get(ctx, glucose); v != "120" {
		t.Fatalf("EnsureInitialized overwrote existing value: %q", v)
	}
	if v, _ := a.Get(ctx, age); v != "" {
		t.Fatalf("expected initialized key to be empty, got %q", v)
	}

	if v, _ := other.Get(ctx, glucose); v != "" {
		t.Fatalf("sessions are not isolated: beta sees %q", v)
	}

	if sel, _ := a.Selected(ctx); sel != "" {
		t.Fatalf("expected no selection, got %q", sel)
	}
	if err := a.Select(ctx, "heart"); err != nil {
		t.Fatalf("select: %v", err)
	}
	reopened, err := b.Open(ctx, "alpha")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if sel, _ := reopened.Selected(ctx); sel != "heart" {
		t.Fatalf("selection not persisted, got %q", sel)
	}
	if v, _ := reopened.Get(ctx, glucose); v != "120" {
		t.Fatalf("value not persisted across Open, got %q", v)
	}

	if err := b.End(ctx, "alpha"); err != nil {
		t.Fatalf("end: %v", err)
	}
	fresh, err := b.Open(ctx, "alpha")
	if err != nil {
		t.Fatalf("open after end: %v", err)
	}
	if v, _ := fresh.Get(ctx, glucose); v != "" {
		t.Fatalf("state survived End: %q", v)
	}
	if v, _ := other.Get(ctx, glucose); v != "" {
		t.Fatalf("ending alpha touched beta: %q", v)
	}
	if err := b.End(ctx, "never-opened"); err != nil {
		t.Fatalf("ending unknown session should not fail: %v", err)
	}
}

func TestFieldKeyString(t *testing.T) {
	k := FieldKey{PanelID: "heart", Feature: "trestbps"}
	if k.String() != "heart_trestbps" {
		t.Fatalf("unexpected key %q", k.String())
	}
}
