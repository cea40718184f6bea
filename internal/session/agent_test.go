package session_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Tanja-4732/sfi-web/internal/identitytest"
	"github.com/Tanja-4732/sfi-web/internal/models"
	"github.com/Tanja-4732/sfi-web/internal/session"
	"github.com/Tanja-4732/sfi-web/pkg/logging"
)

// newAgent spins up a fake identity backend and an agent talking to it.
func newAgent(t *testing.T) (*session.Agent, *identitytest.Server) {
	t.Helper()

	backend := identitytest.New()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := session.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return session.NewAgent(client, logging.Discard()), backend
}

// recvState reads the next broadcast or fails the test.
func recvState(t *testing.T, ch <-chan session.State) session.State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth state broadcast")
		return session.State{}
	}
}

func TestSubscribeDeliversCurrentState(t *testing.T) {
	agent, _ := newAgent(t)

	_, ch := agent.Subscribe()
	if st := recvState(t, ch); st.Phase != session.PhaseInitial {
		t.Errorf("initial state = %v, want %v", st.Phase, session.PhaseInitial)
	}
}

func TestProbeWithoutSessionYieldsInitial(t *testing.T) {
	agent, _ := newAgent(t)
	ctx := context.Background()

	_, ch := agent.Subscribe()
	recvState(t, ch) // current state replay

	agent.GetAuthStatus(ctx)

	if st := recvState(t, ch); st.Phase != session.PhaseProbing {
		t.Errorf("transitional state = %v, want %v", st.Phase, session.PhaseProbing)
	}
	// A rejected probe is an expected outcome, not an error.
	if st := recvState(t, ch); st.Phase != session.PhaseInitial {
		t.Errorf("terminal state = %v, want %v", st.Phase, session.PhaseInitial)
	}
}

func TestLoginTransitions(t *testing.T) {
	agent, backend := newAgent(t)
	ctx := context.Background()

	user, err := backend.Seed("a", "x")
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	_, ch := agent.Subscribe()
	recvState(t, ch)

	t.Run("valid credentials reach LoggedIn", func(t *testing.T) {
		agent.Login(ctx, models.Credentials{Name: "a", Password: "x"})

		if st := recvState(t, ch); st.Phase != session.PhaseLoggingIn {
			t.Errorf("transitional state = %v, want %v", st.Phase, session.PhaseLoggingIn)
		}
		st := recvState(t, ch)
		if st.Phase != session.PhaseLoggedIn {
			t.Fatalf("terminal state = %v, want %v", st.Phase, session.PhaseLoggedIn)
		}
		if st.User == nil || st.User.UUID != user.UUID {
			t.Errorf("logged-in user = %+v, want uuid %v", st.User, user.UUID)
		}
	})

	t.Run("logout returns to Initial", func(t *testing.T) {
		agent.Logout(ctx)

		if st := recvState(t, ch); st.Phase != session.PhaseLoggingOut {
			t.Errorf("transitional state = %v, want %v", st.Phase, session.PhaseLoggingOut)
		}
		if st := recvState(t, ch); st.Phase != session.PhaseInitial {
			t.Errorf("terminal state = %v, want %v", st.Phase, session.PhaseInitial)
		}
	})

	t.Run("invalid credentials reach Error", func(t *testing.T) {
		agent.Login(ctx, models.Credentials{Name: "a", Password: "wrong"})

		recvState(t, ch) // LoggingIn
		st := recvState(t, ch)
		if st.Phase != session.PhaseError {
			t.Fatalf("terminal state = %v, want %v", st.Phase, session.PhaseError)
		}
		var rejected *session.RejectedError
		if !errors.As(st.Err, &rejected) {
			t.Errorf("error = %v, want a RejectedError", st.Err)
		}
	})

	t.Run("error state is non-terminal", func(t *testing.T) {
		agent.Login(ctx, models.Credentials{Name: "a", Password: "x"})

		recvState(t, ch) // LoggingIn
		if st := recvState(t, ch); st.Phase != session.PhaseLoggedIn {
			t.Errorf("terminal state = %v, want %v", st.Phase, session.PhaseLoggedIn)
		}
	})
}

func TestSignupTransitions(t *testing.T) {
	agent, _ := newAgent(t)
	ctx := context.Background()

	_, ch := agent.Subscribe()
	recvState(t, ch)

	agent.Signup(ctx, models.Registration{Name: "fresh", Password: "secret"})

	recvState(t, ch) // LoggingIn
	st := recvState(t, ch)
	if st.Phase != session.PhaseLoggedIn {
		t.Fatalf("terminal state = %v, want %v", st.Phase, session.PhaseLoggedIn)
	}
	if st.User == nil || st.User.Name != "fresh" {
		t.Errorf("signed-up user = %+v, want name %q", st.User, "fresh")
	}
}

func TestSessionCookieSurvivesProbe(t *testing.T) {
	agent, backend := newAgent(t)
	ctx := context.Background()

	if _, err := backend.Seed("a", "x"); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	agent.Login(ctx, models.Credentials{Name: "a", Password: "x"})
	agent.Wait()

	// The cookie issued at login must authenticate the status probe.
	agent.GetAuthStatus(ctx)
	agent.Wait()

	if st := agent.State(); st.Phase != session.PhaseLoggedIn {
		t.Errorf("state after probe = %v, want %v", st.Phase, session.PhaseLoggedIn)
	}
}

// scriptedBackend lets tests control the ordering of completions.
type scriptedBackend struct {
	loginRelease chan struct{}
	loginUser    *models.UserInfo
}

func (b *scriptedBackend) Login(ctx context.Context, _ models.Credentials) (*models.UserInfo, error) {
	select {
	case <-b.loginRelease:
		return b.loginUser, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *scriptedBackend) Signup(context.Context, models.Registration) (*models.UserInfo, error) {
	return nil, errors.New("not scripted")
}

func (b *scriptedBackend) Logout(context.Context) error { return nil }

func (b *scriptedBackend) Status(context.Context) (*models.UserInfo, error) {
	return nil, session.ErrNoSession
}

func TestStaleResponseIsDropped(t *testing.T) {
	backend := &scriptedBackend{
		loginRelease: make(chan struct{}),
		loginUser:    &models.UserInfo{Name: "slow"},
	}
	agent := session.NewAgent(backend, logging.Discard())
	ctx := context.Background()

	_, ch := agent.Subscribe()
	recvState(t, ch)

	// A slow login followed by a fast logout: the logout supersedes the
	// login, so the login's completion must not flip the state back.
	agent.Login(ctx, models.Credentials{Name: "slow", Password: "x"})
	agent.Logout(ctx)

	if st := recvState(t, ch); st.Phase != session.PhaseLoggingIn {
		t.Fatalf("first transitional state = %v, want %v", st.Phase, session.PhaseLoggingIn)
	}
	if st := recvState(t, ch); st.Phase != session.PhaseLoggingOut {
		t.Fatalf("second transitional state = %v, want %v", st.Phase, session.PhaseLoggingOut)
	}
	if st := recvState(t, ch); st.Phase != session.PhaseInitial {
		t.Fatalf("terminal state = %v, want %v", st.Phase, session.PhaseInitial)
	}

	close(backend.loginRelease) // now let the login finish
	agent.Wait()

	if st := agent.State(); st.Phase != session.PhaseInitial {
		t.Errorf("stale login response changed state to %v, want %v",
			st.Phase, session.PhaseInitial)
	}
	select {
	case st := <-ch:
		t.Errorf("unexpected broadcast after stale completion: %v", st.Phase)
	default:
	}
}
