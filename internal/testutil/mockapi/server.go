// Package mockapi is an in-process fake of the admin backend. It implements
// the authentication protocol (login, refresh with rotation, CSRF tokens,
// logout) plus a few protected resources, and lets tests script replies and
// count calls.
package mockapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Default accounts
const (
	AdminEmail     = "admin@example.com"
	AdminPassword  = "admin-pass"
	ViewerEmail    = "viewer@example.com"
	ViewerPassword = "viewer-pass"
)

// Options configures a Server
type Options struct {
	Secret    []byte        // HS256 signing key (default: fixed test key)
	AccessTTL time.Duration // access token lifetime (default: 15 minutes)
	CsrfTTL   time.Duration // CSRF token lifetime (default: 1 hour)
	Now       func() time.Time
	Logger    middleware.LogFormatter // nil disables request logging
}

type account struct {
	password string
	role     string
}

// Reply is a canned response returned instead of the normal handler
type Reply struct {
	Status int
	Body   interface{} // encoded as JSON unless it is a string
	Delay  time.Duration
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	secret    []byte
	accessTTL time.Duration
	csrfTTL   time.Duration
	now       func() time.Time
	router    chi.Router

	mu            sync.Mutex
	accounts      map[string]account
	refreshTokens map[string]string // refresh token -> email
	csrfTokens    map[string]time.Time
	generation    uint64
	scripted      map[string][]Reply
	hits          map[string]int
	jobs          map[string]Job
}

// New creates a Server with the default accounts
func New(opts Options) *Server {
	s := &Server{
		secret:    opts.Secret,
		accessTTL: opts.AccessTTL,
		csrfTTL:   opts.CsrfTTL,
		now:       opts.Now,
		accounts: map[string]account{
			AdminEmail:  {password: AdminPassword, role: "admin"},
			ViewerEmail: {password: ViewerPassword, role: "viewer"},
		},
		refreshTokens: map[string]string{},
		csrfTokens:    map[string]time.Time{},
		scripted:      map[string][]Reply{},
		hits:          map[string]int{},
		jobs:          map[string]Job{},
	}
	if len(s.secret) == 0 {
		s.secret = []byte("mockapi-test-signing-key")
	}
	if s.accessTTL <= 0 {
		s.accessTTL = 15 * time.Minute
	}
	if s.csrfTTL <= 0 {
		s.csrfTTL = time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := chi.NewRouter()
	if opts.Logger != nil {
		r.Use(middleware.RequestLogger(opts.Logger))
	}
	r.Use(middleware.Recoverer)
	r.Use(s.count)
	r.Use(s.script)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.Get("/csrf-token", s.csrfToken)
		r.With(s.requireCsrf).Post("/logout", s.logout)
		r.With(s.requireCsrf).Post("/csrf-validate", s.csrfValidate)
		r.With(s.requireAuth).Get("/me", s.me)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.requireCsrf)

		r.Get("/plans", s.listPlans)
		r.Get("/jobs", s.listJobs)
		r.Post("/jobs", s.createJob)
		r.Get("/jobs/{id}", s.getJob)
		r.Patch("/jobs/{id}", s.updateJob)
		r.Delete("/jobs/{id}", s.deleteJob)
		r.With(s.requireRole("admin")).Get("/admin/{resource}", s.adminResource)
		r.Get("/text", s.text)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Script queues replies for method and path. Each matching request consumes
// one reply; once the queue is empty the normal handler answers again.
func (s *Server) Script(method, path string, replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(method, path)
	s.scripted[key] = append(s.scripted[key], replies...)
}

// Hits returns how many requests reached method and path, scripted or not
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[routeKey(method, path)]
}

// ExpireAccessTokens makes every access token issued so far invalid
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// RevokeRefreshTokens makes every refresh token issued so far invalid
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = map[string]string{}
}

// RotateCsrf makes every CSRF token issued so far invalid
func (s *Server) RotateCsrf() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrfTokens = map[string]time.Time{}
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[routeKey(r.Method, r.URL.Path)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) script(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r.Method, r.URL.Path)
		s.mu.Lock()
		queue := s.scripted[key]
		var reply *Reply
		if len(queue) > 0 {
			reply = &queue[0]
			s.scripted[key] = queue[1:]
		}
		s.mu.Unlock()

		if reply == nil {
			next.ServeHTTP(w, r)
			return
		}
		if reply.Delay > 0 {
			select {
			case <-time.After(reply.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if text, ok := reply.Body.(string); ok {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(reply.Status)
			_, _ = w.Write([]byte(text))
			return
		}
		writeJSON(w, reply.Status, reply.Body)
	})
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]string{"error": code}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, status, body)
}
