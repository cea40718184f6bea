package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestCloneIsDeep(t *testing.T) {
	owner := uuid.New()
	inv := NewInventory("Garage", owner)
	ean := "123"
	inv.Items = append(inv.Items, NewItem(inv.UUID, "Drill", &ean))
	inv.Admins = append(inv.Admins, uuid.New())

	clone := inv.Clone()
	clone.Name = "tampered"
	clone.Admins[0] = uuid.New()
	clone.Items[0].Name = "tampered"
	*clone.Items[0].EAN = "tampered"

	if inv.Name != "Garage" {
		t.Errorf("original name changed to %q", inv.Name)
	}
	if inv.Admins[0] == clone.Admins[0] {
		t.Error("original admins share backing array with clone")
	}
	if inv.Items[0].Name != "Drill" {
		t.Errorf("original item name changed to %q", inv.Items[0].Name)
	}
	if *inv.Items[0].EAN != "123" {
		t.Errorf("original item ean changed to %q", *inv.Items[0].EAN)
	}
}

func TestSnapshotWireFormat(t *testing.T) {
	inv := NewInventory("Garage", uuid.New())
	inv.Items = append(inv.Items, NewItem(inv.UUID, "Drill", nil))

	blob, err := json.Marshal([]Inventory{inv})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded []Inventory
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("decoded %d inventories, want 1", len(decoded))
	}
	got := decoded[0]
	if got.UUID != inv.UUID || got.Name != inv.Name || got.Owner != inv.Owner {
		t.Errorf("decoded inventory = %+v, want %+v", got, inv)
	}
	if len(got.Items) != 1 || got.Items[0].UUID != inv.Items[0].UUID {
		t.Errorf("decoded items = %+v, want %+v", got.Items, inv.Items)
	}
	if got.Items[0].InventoryUUID != inv.UUID {
		t.Errorf("decoded item parent = %v, want %v", got.Items[0].InventoryUUID, inv.UUID)
	}
	if got.Items[0].EAN != nil {
		t.Errorf("decoded item ean = %v, want nil", got.Items[0].EAN)
	}
}
