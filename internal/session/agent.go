// Package session implements the authentication state machine.
//
// The Agent owns the current AuthState and is the only component allowed to
// change it. UI consumers subscribe to the agent and receive every state
// transition as a broadcast: first the transitional state (Probing,
// LoggingIn, LoggingOut) when a request is accepted, then the terminal state
// when the network call completes.
//
// Requests are never queued or rejected: a new request issued while another
// is in flight simply supersedes it. Each request takes a monotonically
// increasing token; a completion whose token is no longer the latest is
// dropped so stale responses cannot roll the state machine backwards.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Tanja-4732/sfi-web/internal/hub"
	"github.com/Tanja-4732/sfi-web/internal/models"
	"github.com/Tanja-4732/sfi-web/pkg/metrics"
)

// Phase enumerates the states of the authentication state machine.
type Phase int

const (
	// PhaseInitial is the startup state: no probe has run yet, or the user
	// has logged out.
	PhaseInitial Phase = iota
	// PhaseProbing means a status check is in flight.
	PhaseProbing
	// PhaseLoggingIn means a login or signup call is in flight.
	PhaseLoggingIn
	// PhaseLoggedIn means the backend confirmed an identity.
	PhaseLoggedIn
	// PhaseLoggingOut means a logout call is in flight.
	PhaseLoggingOut
	// PhaseError means the last request failed. The state is non-terminal:
	// any subsequent request re-enters its transitional phase.
	PhaseError
)

// String returns the phase name for logs and error messages.
func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseProbing:
		return "probing"
	case PhaseLoggingIn:
		return "logging_in"
	case PhaseLoggedIn:
		return "logged_in"
	case PhaseLoggingOut:
		return "logging_out"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the authentication state machine's current value, broadcast to
// all subscribers on every transition.
type State struct {
	// Phase is the machine's current phase.
	Phase Phase

	// User is the cached identity; set only when Phase is PhaseLoggedIn.
	User *models.UserInfo

	// Err is the failure reason; set only when Phase is PhaseError.
	Err error
}

// Agent drives the authentication state machine. All exported methods are
// safe for concurrent use; network calls run asynchronously and never block
// the caller beyond dispatch.
type Agent struct {
	backend Backend
	hub     *hub.Hub[State]
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	seq   uint64 // token of the most recently accepted request

	inflight sync.WaitGroup
}

// NewAgent creates an agent in the Initial state. Nothing is probed until
// GetAuthStatus is called.
func NewAgent(backend Backend, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		backend: backend,
		hub:     hub.New[State](0),
		logger:  logger,
		state:   State{Phase: PhaseInitial},
	}
}

// Subscribe registers a consumer for state broadcasts. The current state is
// delivered to the new subscriber immediately, so late subscribers do not
// have to wait for the next transition.
func (a *Agent) Subscribe() (hub.SubscriberID, <-chan State) {
	id, ch := a.hub.Subscribe()
	a.mu.Lock()
	a.hub.Respond(id, a.state)
	a.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a consumer. In-flight requests keep running; their
// results are simply delivered to no one.
func (a *Agent) Unsubscribe(id hub.SubscriberID) {
	a.hub.Unsubscribe(id)
}

// State returns the current state snapshot.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// GetAuthStatus issues a read-only identity probe. A rejected probe (no
// valid session) yields Initial, not Error; only transport failures yield
// Error.
func (a *Agent) GetAuthStatus(ctx context.Context) {
	a.logger.Debug("probing auth status")
	metrics.AgentRequests.WithLabelValues("session", "get_auth_status").Inc()
	token := a.begin(State{Phase: PhaseProbing})
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		user, err := a.backend.Status(ctx)
		switch {
		case err == nil:
			a.finish(token, State{Phase: PhaseLoggedIn, User: user})
		case err == ErrNoSession:
			a.finish(token, State{Phase: PhaseInitial})
		default:
			a.finish(token, State{Phase: PhaseError, Err: err})
		}
	}()
}

// Login issues a login call. Success yields LoggedIn; any failure, including
// rejected credentials, yields Error.
func (a *Agent) Login(ctx context.Context, creds models.Credentials) {
	a.logger.Debug("logging in", "name", creds.Name)
	metrics.AgentRequests.WithLabelValues("session", "login").Inc()
	token := a.begin(State{Phase: PhaseLoggingIn})
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		user, err := a.backend.Login(ctx, creds)
		if err != nil {
			a.finish(token, State{Phase: PhaseError, Err: err})
			return
		}
		a.finish(token, State{Phase: PhaseLoggedIn, User: user})
	}()
}

// Signup has the same contract as Login, against the registration endpoint.
func (a *Agent) Signup(ctx context.Context, reg models.Registration) {
	a.logger.Debug("signing up", "name", reg.Name)
	metrics.AgentRequests.WithLabelValues("session", "signup").Inc()
	token := a.begin(State{Phase: PhaseLoggingIn})
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		user, err := a.backend.Signup(ctx, reg)
		if err != nil {
			a.finish(token, State{Phase: PhaseError, Err: err})
			return
		}
		a.finish(token, State{Phase: PhaseLoggedIn, User: user})
	}()
}

// Logout issues a logout call. Any outcome that is not a transport failure
// yields Initial.
func (a *Agent) Logout(ctx context.Context) {
	a.logger.Debug("logging out")
	metrics.AgentRequests.WithLabelValues("session", "logout").Inc()
	token := a.begin(State{Phase: PhaseLoggingOut})
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		if err := a.backend.Logout(ctx); err != nil {
			a.finish(token, State{Phase: PhaseError, Err: err})
			return
		}
		a.finish(token, State{Phase: PhaseInitial})
	}()
}

// Wait blocks until all in-flight network calls have completed. Intended for
// orderly shutdown and tests; new requests may still be issued afterwards.
func (a *Agent) Wait() {
	a.inflight.Wait()
}

// begin applies the transitional state, broadcasts it, and returns the token
// identifying this request.
func (a *Agent) begin(transitional State) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.setState(transitional)
	return a.seq
}

// finish applies a terminal state unless a newer request has superseded the
// one identified by token.
func (a *Agent) finish(token uint64, terminal State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if token != a.seq {
		a.logger.Debug("dropping stale auth response",
			"token", token, "latest", a.seq, "phase", terminal.Phase)
		return
	}
	a.setState(terminal)
}

// setState records and broadcasts a new state; callers must hold a.mu.
func (a *Agent) setState(s State) {
	a.state = s
	metrics.AuthTransitions.WithLabelValues(s.Phase.String()).Inc()
	metrics.Broadcasts.WithLabelValues("session").Inc()
	a.hub.Broadcast(s)
	if s.Err != nil {
		a.logger.Warn("auth state transition", "phase", s.Phase, "error", s.Err)
	} else {
		a.logger.Debug("auth state transition", "phase", s.Phase)
	}
}
