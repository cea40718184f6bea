// Package identitytest provides an in-process identity backend implementing
// the authentication endpoints the Session Agent talks to. It exists for
// tests and local demos; it is not a production login server.
//
// Sessions are carried in an HttpOnly cookie holding an HS256 JWT, and
// passwords are stored bcrypt-hashed, mirroring how a real backend would
// behave so the client-side cookie handling gets exercised honestly.
package identitytest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tanja-4732/sfi-web/internal/models"
)

const (
	basePath      = "/api/v1/authentication"
	sessionCookie = "sfi_session"
	tokenDuration = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrNameExists         = errors.New("name already registered")
)

// claims are the JWT claims stored in the session cookie.
type claims struct {
	UserUUID string `json:"user_uuid"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

type account struct {
	info         models.UserInfo
	passwordHash []byte
}

// Server is an http.Handler serving login, signup, logout, and status under
// the fixed authentication base path. Mount it on an httptest.Server and
// point a session.Client at its URL.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account // keyed by name
	secret   []byte
	mux      *http.ServeMux
}

// New constructs an empty server with a fresh random signing secret.
func New() *Server {
	s := &Server{
		accounts: make(map[string]*account),
		secret:   []byte(uuid.NewString()),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+basePath+"/login", s.handleLogin)
	mux.HandleFunc("POST "+basePath+"/signup", s.handleSignup)
	mux.HandleFunc("GET "+basePath+"/logout", s.handleLogout)
	mux.HandleFunc("GET "+basePath+"/status", s.handleStatus)
	s.mux = mux
	return s
}

// ServeHTTP dispatches to the authentication endpoints.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Seed registers an account without going through the signup endpoint and
// returns its identity.
func (s *Server) Seed(name, password string) (models.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(name, password)
}

// register creates an account; the caller must hold s.mu.
// bcrypt.MinCost keeps test logins fast.
func (s *Server) register(name, password string) (models.UserInfo, error) {
	if _, exists := s.accounts[name]; exists {
		return models.UserInfo{}, ErrNameExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("failed to hash password: %w", err)
	}
	acct := &account{
		info:         models.UserInfo{UUID: uuid.New(), Name: name},
		passwordHash: hash,
	}
	s.accounts[name] = acct
	return acct.info, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[creds.Name]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(creds.Password)) != nil {
		http.Error(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	s.issueSession(w, acct.info)
	writeJSON(w, acct.info)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	info, err := s.register(reg.Name, reg.Password)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	s.issueSession(w, info)
	writeJSON(w, info)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Expire the session cookie regardless of whether one was presented.
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, map[string]string{"status": "logged out"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}

	info, err := s.validate(cookie.Value)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}
	writeJSON(w, info)
}

// issueSession signs a JWT for the user and sets it as the session cookie.
func (s *Server) issueSession(w http.ResponseWriter, info models.UserInfo) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserUUID: info.UUID.String(),
		Name:     info.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		// Signing with a static HMAC secret cannot fail at runtime.
		panic(fmt.Sprintf("identitytest: failed to sign token: %v", err))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
	})
}

// validate parses the session JWT and resolves it to the account's identity.
func (s *Server) validate(tokenString string) (models.UserInfo, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("invalid token: %w", err)
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return models.UserInfo{}, errors.New("invalid token claims")
	}

	userUUID, err := uuid.Parse(c.UserUUID)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("malformed user uuid in token: %w", err)
	}
	return models.UserInfo{UUID: userUUID, Name: c.Name}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
