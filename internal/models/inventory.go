package models

import "github.com/google/uuid"

// Inventory is a named collection of Items with an owner and access lists.
// The Inventory Store Agent owns the authoritative copies; everything handed
// to consumers is a Clone.
type Inventory struct {
	// UUID is the globally unique, immutable identifier of the inventory.
	UUID uuid.UUID `json:"uuid"`

	// Name is the display name of the inventory (e.g., "Garage", "Pantry").
	Name string `json:"name"`

	// Owner is the UUID of the user who created the inventory and manages
	// its access lists.
	Owner uuid.UUID `json:"owner"`

	// Admins, Writables, and Readables are the access lists granting other
	// users management, write, and read permission respectively.
	Admins    []uuid.UUID `json:"admins"`
	Writables []uuid.UUID `json:"writables"`
	Readables []uuid.UUID `json:"readables"`

	// Items is the ordered sequence of items in this inventory.
	Items []Item `json:"items"`
}

// Item is a single inventoried object belonging to exactly one Inventory.
type Item struct {
	// UUID is the globally unique, immutable identifier of the item.
	UUID uuid.UUID `json:"uuid"`

	// InventoryUUID references the parent inventory. It must always resolve
	// to a live Inventory in the same collection.
	InventoryUUID uuid.UUID `json:"inventory_uuid"`

	// Name is the display name of the item.
	Name string `json:"name"`

	// EAN is the optional article number printed on the item's barcode.
	EAN *string `json:"ean"`
}

// NewInventory creates an empty inventory with a fresh UUID owned by owner.
func NewInventory(name string, owner uuid.UUID) Inventory {
	return Inventory{
		UUID:      uuid.New(),
		Name:      name,
		Owner:     owner,
		Admins:    []uuid.UUID{},
		Writables: []uuid.UUID{},
		Readables: []uuid.UUID{},
		Items:     []Item{},
	}
}

// NewItem creates an item with a fresh UUID belonging to the given inventory.
func NewItem(inventoryUUID uuid.UUID, name string, ean *string) Item {
	return Item{
		UUID:          uuid.New(),
		InventoryUUID: inventoryUUID,
		Name:          name,
		EAN:           cloneEAN(ean),
	}
}

// Clone returns a deep copy of the inventory, including its item sequence.
func (inv Inventory) Clone() Inventory {
	out := inv
	out.Admins = append([]uuid.UUID(nil), inv.Admins...)
	out.Writables = append([]uuid.UUID(nil), inv.Writables...)
	out.Readables = append([]uuid.UUID(nil), inv.Readables...)
	out.Items = make([]Item, len(inv.Items))
	for i, item := range inv.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	out.EAN = cloneEAN(it.EAN)
	return out
}

// CloneInventories deep-copies a whole inventory list. Used for broadcasts so
// subscribers never observe agent-internal state.
func CloneInventories(invs []Inventory) []Inventory {
	out := make([]Inventory, len(invs))
	for i, inv := range invs {
		out[i] = inv.Clone()
	}
	return out
}

func cloneEAN(ean *string) *string {
	if ean == nil {
		return nil
	}
	v := *ean
	return &v
}
