package storage

import (
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if value, err := m.Load(ctx, "missing"); err != nil || value != nil {
		t.Errorf("Load of absent key = (%v, %v), want (nil, nil)", value, err)
	}

	if err := m.Save(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	value, err := m.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(value) != "v" {
		t.Errorf("Load = %q, want %q", value, "v")
	}

	// Mutating a returned slice must not change the stored value.
	value[0] = 'x'
	again, err := m.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(again) != "v" {
		t.Errorf("stored value changed through a returned slice: %q", again)
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if value, err := m.Load(ctx, "k"); err != nil || value != nil {
		t.Errorf("Load after Delete = (%v, %v), want (nil, nil)", value, err)
	}
}
