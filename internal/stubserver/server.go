package stubserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/gigauth/jwt"
	"github.com/MrEthical07/gigauth/middleware"
	"github.com/MrEthical07/gigauth/password"
	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
)

var (
	jsonMediaType  = contenttype.NewMediaType("application/json")
	jsonMediaTypes = []contenttype.MediaType{jsonMediaType}
)

// Config tunes the stub backend.
type Config struct {
	// AccessTTL is the lifetime of issued access tokens. Default 15m.
	AccessTTL time.Duration
	// RotateRefresh makes every refresh return a new refresh token and revoke
	// the old one.
	RotateRefresh bool
	// OmitRefreshInLogin makes login and registration responses carry no
	// refresh token.
	OmitRefreshInLogin bool
	// RegisterWithoutTokens makes registration answer 201 with the user only,
	// so the client has to log in separately.
	RegisterWithoutTokens bool
}

// User is an account known to the stub.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type account struct {
	user User
	hash string
}

// Server is the stub backend. Its Handler is safe for concurrent use.
type Server struct {
	cfg    Config
	tokens *jwt.Manager
	hasher *password.Argon2
	mux    *http.ServeMux

	mu           sync.Mutex
	accounts     map[string]*account // by lower-cased email
	live         map[string]string   // access token -> user id
	refresh      map[string]string   // refresh token -> user id
	hits         map[string]int
	lastAuth     map[string]string
	refreshDelay time.Duration
	refreshFail  int
	forceStatus  map[string]int
}

// New returns a stub with no accounts.
func New(cfg Config) (*Server, error) {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "gigauth-stub",
	})
	if err != nil {
		return nil, err
	}

	hashCfg := password.DefaultConfig()
	hashCfg.Memory = 8 * 1024
	hashCfg.Time = 1
	hashCfg.Parallelism = 1
	hasher, err := password.NewArgon2(hashCfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		tokens:      tokens,
		hasher:      hasher,
		accounts:    make(map[string]*account),
		live:        make(map[string]string),
		refresh:     make(map[string]string),
		hits:        make(map[string]int),
		lastAuth:    make(map[string]string),
		forceStatus: make(map[string]int),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	guard := middleware.RequireLive(s.tokens, s.isLive)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.Handle("GET /auth/verify", guard(http.HandlerFunc(s.handleMe)))
	mux.Handle("GET /me", guard(http.HandlerFunc(s.handleMe)))
	mux.Handle("PUT /me", guard(http.HandlerFunc(s.handleUpdateMe)))
	mux.HandleFunc("GET /services", s.handleServices)
	mux.Handle("GET /services/mine", guard(http.HandlerFunc(s.handleServices)))
	mux.Handle("GET /admin/stats", guard(middleware.RequireRole("ADMIN")(http.HandlerFunc(s.handleStats))))
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
	})
	s.mux = mux
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.hits[route]++
		s.lastAuth[route] = r.Header.Get("Authorization")
		status := s.forceStatus[route]
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		if _, _, err := contenttype.GetAcceptableMediaType(r, jsonMediaTypes); err != nil {
			writeJSON(w, http.StatusNotAcceptable, map[string]string{"message": "only application/json is served"})
			return
		}
		s.mux.ServeHTTP(w, r)
	})
}

/*
====================================
CONTROLS
====================================
*/

// AddUser creates an account. The role defaults to FREELANCER.
func (s *Server) AddUser(email, secret, name, role string) (User, error) {
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return User{}, err
	}
	if role == "" {
		role = "FREELANCER"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(email))
	if _, ok := s.accounts[key]; ok {
		return User{}, errors.New("account already exists")
	}
	u := User{ID: "u" + uuid.NewString()[:8], Email: strings.TrimSpace(email), Name: name, Role: strings.ToUpper(role)}
	s.accounts[key] = &account{user: u, hash: hash}
	return u, nil
}

// ExpireAccessTokens makes every access token issued so far unusable, as if
// their lifetime had run out. Refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = make(map[string]string)
}

// RevokeRefreshTokens makes every refresh token unusable.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// SetRefreshDelay makes each refresh wait d before answering.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// SetRefreshFailure makes each refresh answer with status. Zero restores
// normal behavior.
func (s *Server) SetRefreshFailure(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFail = status
}

// ForceStatus makes route, such as "GET /services", answer with status
// without running its handler. Zero removes the override.
func (s *Server) ForceStatus(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.forceStatus, route)
		return
	}
	s.forceStatus[route] = status
}

// Hits returns how many requests route has received.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// LastAuthorization returns the Authorization header of the latest request
// to route.
func (s *Server) LastAuthorization(route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth[route]
}

// LiveRefreshTokens returns how many refresh tokens are currently accepted.
func (s *Server) LiveRefreshTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

// Verifier returns the verifier the stub's own guards use.
func (s *Server) Verifier() middleware.Verifier {
	return middleware.VerifierFunc(func(_ context.Context, token string) (*jwt.AccessClaims, error) {
		claims, err := s.tokens.ParseAccess(token)
		if err != nil {
			return nil, err
		}
		if !s.isLive(token) {
			return nil, middleware.ErrTokenRevoked
		}
		return claims, nil
	})
}

/*
====================================
HANDLERS
====================================
*/

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type authBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	User         *User  `json:"user,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsBody
	if !decodeJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(in.Email))]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	match, err := s.hasher.Verify(in.Password, acct.hash)
	if err != nil || !match {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}

	body, err := s.issue(acct.user, !s.cfg.OmitRefreshInLogin)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentialsBody
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email and password are required"})
		return
	}

	u, err := s.AddUser(in.Email, in.Password, in.Name, in.Role)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Email already registered"})
		return
	}
	if s.cfg.RegisterWithoutTokens {
		writeJSON(w, http.StatusCreated, map[string]any{"user": u})
		return
	}

	body, err := s.issue(u, !s.cfg.OmitRefreshInLogin)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	delay, fail := s.refreshDelay, s.refreshFail
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail != 0 {
		writeJSON(w, fail, map[string]string{"message": "refresh refused"})
		return
	}

	s.mu.Lock()
	uid, ok := s.refresh[in.RefreshToken]
	var user User
	if ok {
		user, ok = s.userByIDLocked(uid)
	}
	if ok && s.cfg.RotateRefresh {
		delete(s.refresh, in.RefreshToken)
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
		return
	}

	body, err := s.issue(user, s.cfg.RotateRefresh)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	body.User = nil
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	if token, ok := middleware.BearerToken(r.Header.Get("Authorization")); ok {
		delete(s.live, token)
	}
	if in.RefreshToken != "" {
		delete(s.refresh, in.RefreshToken)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	s.mu.Lock()
	user, ok := s.userByIDLocked(claims.UID)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var in struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	var updated *User
	for _, acct := range s.accounts {
		if acct.user.ID == claims.UID {
			if in.Name != "" {
				acct.user.Name = in.Name
			}
			u := acct.user
			updated = &u
			break
		}
	}
	s.mu.Unlock()

	if updated == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": updated})
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	services := []map[string]any{
		{"id": "s1", "title": "Logo design", "price": 120},
		{"id": "s2", "title": "Landing page", "price": 450},
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		writeJSON(w, http.StatusOK, map[string]any{"owner": claims.UID, "services": services[:1]})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	stats := map[string]int{"accounts": len(s.accounts), "sessions": len(s.refresh)}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

/*
====================================
HELPERS
====================================
*/

func (s *Server) issue(u User, withRefresh bool) (authBody, error) {
	access, err := s.tokens.CreateAccess(u.ID, u.Email, u.Role, u.Name)
	if err != nil {
		return authBody{}, err
	}
	body := authBody{
		AccessToken: access,
		ExpiresIn:   int64(s.cfg.AccessTTL / time.Second),
		User:        &u,
	}

	s.mu.Lock()
	s.live[access] = u.ID
	if withRefresh {
		body.RefreshToken = uuid.NewString()
		s.refresh[body.RefreshToken] = u.ID
	}
	s.mu.Unlock()
	return body, nil
}

func (s *Server) isLive(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[token]
	return ok
}

func (s *Server) userByIDLocked(id string) (User, bool) {
	for _, acct := range s.accounts {
		if acct.user.ID == id {
			return acct.user, true
		}
	}
	return User{}, false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"message": "expected application/json"})
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
