package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Tanja-4732/sfi-web/internal/hub"
	"github.com/Tanja-4732/sfi-web/internal/models"
	"github.com/Tanja-4732/sfi-web/internal/session"
	"github.com/Tanja-4732/sfi-web/internal/storage"
	"github.com/Tanja-4732/sfi-web/pkg/metrics"
)

// envelope pairs a request with its reply channel. The reply channel is
// buffered so the run loop never blocks on a caller that gave up.
type envelope struct {
	req   any
	reply chan result
}

type result struct {
	value any
	err   error
}

// Request types processed by the run loop. One value per operation of the
// agent's public boundary.
type (
	replayReq             struct{ to hub.SubscriberID }
	getInventoriesReq     struct{}
	getInventoryReq       struct{ uuid uuid.UUID }
	createInventoryReq    struct{ name string }
	updateInventoryReq    struct{ update InventoryUpdate }
	deleteInventoryReq    struct{ uuid uuid.UUID }
	createItemReq         struct {
		inventory uuid.UUID
		name      string
		ean       *string
	}
	getItemReq    struct{ inventory, item uuid.UUID }
	updateItemReq struct{ update ItemUpdate }
	deleteItemReq struct{ inventory, item uuid.UUID }
	deleteAllReq  struct{}

	makeDebugInventoryReq struct{}
)

// handle processes one request to completion, including its persistence
// write, before the loop picks up the next one.
func (a *Agent) handle(env envelope) {
	switch req := env.req.(type) {
	case replayReq:
		a.hub.Respond(req.to, models.CloneInventories(a.inventories))
		env.reply <- result{}

	case getInventoriesReq:
		env.reply <- result{}
		a.broadcastList()

	case getInventoryReq:
		inv := a.find(req.uuid)
		if inv == nil {
			env.reply <- result{err: ErrInventoryNotFound}
			return
		}
		env.reply <- result{value: inv.Clone()}

	case createInventoryReq:
		if a.auth.Phase != session.PhaseLoggedIn || a.auth.User == nil {
			env.reply <- result{err: ErrNotAuthenticated}
			return
		}
		res := a.createInventory(req.name, a.auth.User.UUID)
		env.reply <- res
		if res.err == nil {
			a.broadcastList()
		}

	case makeDebugInventoryReq:
		owner := uuid.New() // placeholder identity when nobody is logged in
		if a.auth.Phase == session.PhaseLoggedIn && a.auth.User != nil {
			owner = a.auth.User.UUID
		}
		res := a.createInventory("debug inv", owner)
		env.reply <- res
		if res.err == nil {
			a.broadcastList()
		}

	case updateInventoryReq:
		inv := a.find(req.update.Target)
		if inv == nil {
			env.reply <- result{err: ErrInventoryNotFound}
			return
		}
		inv.Name = req.update.Name
		inv.Owner = req.update.Owner
		inv.Admins = append([]uuid.UUID{}, req.update.Admins...)
		inv.Writables = append([]uuid.UUID{}, req.update.Writables...)
		inv.Readables = append([]uuid.UUID{}, req.update.Readables...)
		if err := a.persist(); err != nil {
			env.reply <- result{err: err}
			return
		}
		env.reply <- result{value: inv.Clone()}
		a.broadcastList()

	case deleteInventoryReq:
		idx := a.indexOf(req.uuid)
		if idx < 0 {
			env.reply <- result{err: ErrInventoryNotFound}
			return
		}
		a.inventories = append(a.inventories[:idx], a.inventories[idx+1:]...)
		if err := a.persist(); err != nil {
			env.reply <- result{err: err}
			return
		}
		env.reply <- result{}
		a.broadcastList()

	case createItemReq:
		inv := a.find(req.inventory)
		if inv == nil {
			env.reply <- result{err: ErrInventoryNotFound}
			return
		}
		item := models.NewItem(inv.UUID, req.name, req.ean)
		inv.Items = append(inv.Items, item)
		if err := a.persist(); err != nil {
			env.reply <- result{err: err}
			return
		}
		env.reply <- result{value: item.UUID}
		a.broadcastList()

	case getItemReq:
		inv := a.find(req.inventory)
		if inv == nil {
			env.reply <- result{err: ErrInventoryNotFound}
			return
		}
		item := findItem(inv, req.item)
		if item == nil {
			env.reply <- result{err: ErrItemNotFound}
			return
		}
		env.reply <- result{value: item.Clone()}

	case updateItemReq:
		inv := a.find(req.update.Inventory)
		if inv == nil {
			env.reply <- result{err: ErrInventoryNotFound}
			return
		}
		item := findItem(inv, req.update.Target)
		if item == nil {
			env.reply <- result{err: ErrItemNotFound}
			return
		}
		item.Name = req.update.Name
		item.EAN = nil
		if req.update.EAN != nil {
			ean := *req.update.EAN
			item.EAN = &ean
		}
		if err := a.persist(); err != nil {
			env.reply <- result{err: err}
			return
		}
		env.reply <- result{}
		a.broadcastList()

	case deleteItemReq:
		inv := a.find(req.inventory)
		if inv == nil {
			env.reply <- result{err: ErrInventoryNotFound}
			return
		}
		idx := -1
		for i := range inv.Items {
			if inv.Items[i].UUID == req.item {
				idx = i
				break
			}
		}
		if idx < 0 {
			env.reply <- result{err: ErrItemNotFound}
			return
		}
		inv.Items = append(inv.Items[:idx], inv.Items[idx+1:]...)
		if err := a.persist(); err != nil {
			env.reply <- result{err: err}
			return
		}
		env.reply <- result{}
		a.broadcastList()

	case deleteAllReq:
		a.inventories = []models.Inventory{}
		if err := a.persist(); err != nil {
			env.reply <- result{err: err}
			return
		}
		env.reply <- result{}
		a.broadcastList()

	default:
		env.reply <- result{err: fmt.Errorf("unknown request type %T", env.req)}
	}
}

// createInventory appends a fresh inventory and persists the collection.
func (a *Agent) createInventory(name string, owner uuid.UUID) result {
	inv := models.NewInventory(name, owner)
	a.inventories = append(a.inventories, inv)
	if err := a.persist(); err != nil {
		return result{err: err}
	}
	a.logger.Info("inventory created", "uuid", inv.UUID, "name", name, "owner", owner)
	return result{value: inv.UUID}
}

// persist serializes the whole collection and writes it under the data key.
// Every mutating operation calls this before replying, so subscribers never
// observe a state that is not yet durable.
func (a *Agent) persist() error {
	blob, err := json.Marshal(a.inventories)
	if err != nil {
		return fmt.Errorf("failed to encode inventory snapshot: %w", err)
	}
	if err := a.storage.Save(context.Background(), storage.DataStoreKey, blob); err != nil {
		return fmt.Errorf("failed to persist inventory snapshot: %w", err)
	}
	metrics.PersistWrites.Inc()
	return nil
}

// broadcastList fans a deep-copied snapshot of the list out to all
// subscribers.
func (a *Agent) broadcastList() {
	metrics.Broadcasts.WithLabelValues("store").Inc()
	a.hub.Broadcast(models.CloneInventories(a.inventories))
}

// find returns a pointer into the owned collection; only the run loop may
// call it, and the pointer must not outlive the current request.
func (a *Agent) find(id uuid.UUID) *models.Inventory {
	if idx := a.indexOf(id); idx >= 0 {
		return &a.inventories[idx]
	}
	return nil
}

func (a *Agent) indexOf(id uuid.UUID) int {
	for i := range a.inventories {
		if a.inventories[i].UUID == id {
			return i
		}
	}
	return -1
}

func findItem(inv *models.Inventory, id uuid.UUID) *models.Item {
	for i := range inv.Items {
		if inv.Items[i].UUID == id {
			return &inv.Items[i]
		}
	}
	return nil
}
