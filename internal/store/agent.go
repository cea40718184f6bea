// Package store implements the Inventory Store Agent: the authoritative,
// durably-persisted collection of Inventories and their Items.
//
// The agent is an actor. One goroutine owns the collection; public methods
// send typed requests into its loop and wait for the typed reply, so all
// writes are serialized without locks. Every mutation persists the whole
// collection to the durable store before the reply is sent, then broadcasts
// a deep-copied snapshot of the refreshed list to all subscribers.
//
// The agent also subscribes to the Session Agent, tracking the latest
// authentication state so create operations can be scoped to the current
// user.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Tanja-4732/sfi-web/internal/hub"
	"github.com/Tanja-4732/sfi-web/internal/models"
	"github.com/Tanja-4732/sfi-web/internal/session"
	"github.com/Tanja-4732/sfi-web/internal/storage"
	"github.com/Tanja-4732/sfi-web/pkg/metrics"
)

var (
	// ErrNotAuthenticated is returned by CreateInventory when no user is
	// logged in.
	ErrNotAuthenticated = errors.New("no user is logged in")

	// ErrInventoryNotFound is returned when the requested inventory uuid
	// has no match in the collection.
	ErrInventoryNotFound = errors.New("no inventory with the given uuid")

	// ErrItemNotFound is returned when the inventory resolves but the item
	// uuid has no match in its sequence.
	ErrItemNotFound = errors.New("no item with the given uuid")

	// ErrDebugDisabled is returned by MakeDebugInventory unless the agent
	// was created with Debug set.
	ErrDebugDisabled = errors.New("debug affordances are disabled")

	// ErrClosed is returned for requests sent after Close.
	ErrClosed = errors.New("store agent is closed")
)

// Config collects the collaborators of a store agent.
type Config struct {
	// Storage persists the collection snapshot. Required.
	Storage storage.Store

	// Session is subscribed to for authentication state. May be nil, in
	// which case no user is ever considered logged in.
	Session *session.Agent

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Debug enables MakeDebugInventory.
	Debug bool

	// Buffer is the per-subscriber broadcast channel capacity;
	// hub.DefaultBuffer when zero.
	Buffer int
}

// InventoryUpdate names the fields UpdateInventory overwrites in place.
type InventoryUpdate struct {
	Target    uuid.UUID
	Name      string
	Owner     uuid.UUID
	Admins    []uuid.UUID
	Writables []uuid.UUID
	Readables []uuid.UUID
}

// ItemUpdate names the fields UpdateItem overwrites in place.
type ItemUpdate struct {
	Inventory uuid.UUID
	Target    uuid.UUID
	Name      string
	EAN       *string
}

// Agent owns the inventory collection. Construct with New, release with
// Close.
type Agent struct {
	storage storage.Store
	hub     *hub.Hub[[]models.Inventory]
	logger  *slog.Logger
	debug   bool

	requests  chan envelope
	done      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once

	sessionAgent *session.Agent
	sessionSub   hub.SubscriberID

	// Owned exclusively by the run loop.
	inventories []models.Inventory
	auth        session.State
}

// New loads the persisted collection (an absent snapshot yields an empty
// collection), subscribes to the session agent, and starts the request loop.
func New(cfg Config) (*Agent, error) {
	if cfg.Storage == nil {
		return nil, errors.New("store: Config.Storage is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Agent{
		storage:      cfg.Storage,
		hub:          hub.New[[]models.Inventory](cfg.Buffer),
		logger:       logger,
		debug:        cfg.Debug,
		requests:     make(chan envelope),
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
		sessionAgent: cfg.Session,
		auth:         session.State{Phase: session.PhaseInitial},
	}

	if err := a.load(); err != nil {
		return nil, err
	}

	var authCh <-chan session.State // nil channel blocks forever
	if cfg.Session != nil {
		a.sessionSub, authCh = cfg.Session.Subscribe()
	}

	go a.run(authCh)
	return a, nil
}

// Close stops the request loop and detaches from the session agent. Pending
// requests fail with ErrClosed. The durable store is left open; it belongs
// to the caller.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		if a.sessionAgent != nil {
			a.sessionAgent.Unsubscribe(a.sessionSub)
		}
		close(a.done)
		<-a.finished
		a.hub.Close()
	})
	return nil
}

// Subscribe registers a consumer for list broadcasts. The current list is
// delivered to the new subscriber immediately.
func (a *Agent) Subscribe() (hub.SubscriberID, <-chan []models.Inventory) {
	id, ch := a.hub.Subscribe()
	// Replay the current state to just this subscriber; best-effort if the
	// agent is already closed.
	_, _ = a.send(context.Background(), replayReq{to: id})
	return id, ch
}

// Unsubscribe removes a consumer. Broadcasts triggered by its own in-flight
// requests are simply delivered to no one.
func (a *Agent) Unsubscribe(id hub.SubscriberID) {
	a.hub.Unsubscribe(id)
}

// GetInventories broadcasts the current list to all subscribers. There is no
// direct reply payload beyond the broadcast.
func (a *Agent) GetInventories(ctx context.Context) error {
	metrics.AgentRequests.WithLabelValues("store", "get_inventories").Inc()
	_, err := a.send(ctx, getInventoriesReq{})
	return err
}

// GetInventory returns a snapshot of the inventory with the given uuid.
func (a *Agent) GetInventory(ctx context.Context, id uuid.UUID) (models.Inventory, error) {
	metrics.AgentRequests.WithLabelValues("store", "get_inventory").Inc()
	v, err := a.send(ctx, getInventoryReq{uuid: id})
	if err != nil {
		return models.Inventory{}, err
	}
	return v.(models.Inventory), nil
}

// CreateInventory creates an empty inventory owned by the currently
// logged-in user and returns its fresh uuid. Fails with ErrNotAuthenticated
// when nobody is logged in.
func (a *Agent) CreateInventory(ctx context.Context, name string) (uuid.UUID, error) {
	metrics.AgentRequests.WithLabelValues("store", "create_inventory").Inc()
	v, err := a.send(ctx, createInventoryReq{name: name})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

// UpdateInventory overwrites the named fields of the target inventory and
// returns the updated snapshot.
func (a *Agent) UpdateInventory(ctx context.Context, update InventoryUpdate) (models.Inventory, error) {
	metrics.AgentRequests.WithLabelValues("store", "update_inventory").Inc()
	v, err := a.send(ctx, updateInventoryReq{update: update})
	if err != nil {
		return models.Inventory{}, err
	}
	return v.(models.Inventory), nil
}

// DeleteInventory removes the inventory with the given uuid.
func (a *Agent) DeleteInventory(ctx context.Context, id uuid.UUID) error {
	metrics.AgentRequests.WithLabelValues("store", "delete_inventory").Inc()
	_, err := a.send(ctx, deleteInventoryReq{uuid: id})
	return err
}

// CreateItem appends a new item to the given inventory's sequence and
// returns the item's fresh uuid.
func (a *Agent) CreateItem(ctx context.Context, inventoryID uuid.UUID, name string, ean *string) (uuid.UUID, error) {
	metrics.AgentRequests.WithLabelValues("store", "create_item").Inc()
	v, err := a.send(ctx, createItemReq{inventory: inventoryID, name: name, ean: ean})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

// GetItem returns a snapshot of the item if both the inventory and the item
// resolve.
func (a *Agent) GetItem(ctx context.Context, inventoryID, itemID uuid.UUID) (models.Item, error) {
	metrics.AgentRequests.WithLabelValues("store", "get_item").Inc()
	v, err := a.send(ctx, getItemReq{inventory: inventoryID, item: itemID})
	if err != nil {
		return models.Item{}, err
	}
	return v.(models.Item), nil
}

// UpdateItem overwrites the target item's name and ean.
func (a *Agent) UpdateItem(ctx context.Context, update ItemUpdate) error {
	metrics.AgentRequests.WithLabelValues("store", "update_item").Inc()
	_, err := a.send(ctx, updateItemReq{update: update})
	return err
}

// DeleteItem removes the item from its owning inventory's sequence.
func (a *Agent) DeleteItem(ctx context.Context, inventoryID, itemID uuid.UUID) error {
	metrics.AgentRequests.WithLabelValues("store", "delete_item").Inc()
	_, err := a.send(ctx, deleteItemReq{inventory: inventoryID, item: itemID})
	return err
}

// DeleteAllData clears the entire collection and broadcasts the empty list.
func (a *Agent) DeleteAllData(ctx context.Context) error {
	metrics.AgentRequests.WithLabelValues("store", "delete_all_data").Inc()
	_, err := a.send(ctx, deleteAllReq{})
	return err
}

// MakeDebugInventory creates an inventory owned by the current user, or by a
// freshly generated placeholder identity when nobody is logged in. Only
// available when the agent was created with Debug set.
func (a *Agent) MakeDebugInventory(ctx context.Context) (uuid.UUID, error) {
	if !a.debug {
		return uuid.Nil, ErrDebugDisabled
	}
	metrics.AgentRequests.WithLabelValues("store", "make_debug_inventory").Inc()
	v, err := a.send(ctx, makeDebugInventoryReq{})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

// load restores the collection snapshot from the durable store. Items whose
// parent back-reference does not match their containing inventory are
// repaired in place; the collection must never crash a consumer over a
// dangling reference.
func (a *Agent) load() error {
	blob, err := a.storage.Load(context.Background(), storage.DataStoreKey)
	if err != nil {
		return fmt.Errorf("failed to load inventory snapshot: %w", err)
	}
	if blob == nil {
		a.inventories = []models.Inventory{}
		return nil
	}

	var invs []models.Inventory
	if err := json.Unmarshal(blob, &invs); err != nil {
		return fmt.Errorf("failed to decode inventory snapshot: %w", err)
	}
	for i := range invs {
		for j := range invs[i].Items {
			if invs[i].Items[j].InventoryUUID != invs[i].UUID {
				a.logger.Warn("repairing item with dangling parent reference",
					"item", invs[i].Items[j].UUID,
					"recorded_parent", invs[i].Items[j].InventoryUUID,
					"actual_parent", invs[i].UUID)
				invs[i].Items[j].InventoryUUID = invs[i].UUID
			}
		}
	}
	a.inventories = invs
	a.logger.Info("inventory snapshot loaded", "inventories", len(invs))
	return nil
}

// send submits a request to the run loop and waits for its reply.
func (a *Agent) send(ctx context.Context, req any) (any, error) {
	env := envelope{req: req, reply: make(chan result, 1)}
	select {
	case a.requests <- env:
	case <-a.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-env.reply:
		return res.value, res.err
	case <-a.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Agent) run(authCh <-chan session.State) {
	defer close(a.finished)
	for {
		select {
		case st, ok := <-authCh:
			if !ok {
				authCh = nil
				continue
			}
			a.auth = st
		case env := <-a.requests:
			// Auth transitions that happened before this request was
			// submitted must be visible to it.
			a.drainAuth(authCh)
			a.handle(env)
		case <-a.done:
			return
		}
	}
}

// drainAuth applies all auth updates already queued, without blocking.
func (a *Agent) drainAuth(authCh <-chan session.State) {
	for {
		select {
		case st, ok := <-authCh:
			if !ok {
				return
			}
			a.auth = st
		default:
			return
		}
	}
}
