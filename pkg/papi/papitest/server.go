// Package papitest provides an in-process fake PAPI node for tests and
// local development. The server speaks the session-authentication flow of
// a real cluster node: credential exchange at the session resource, an
// isisessid session cookie, an isicsrf token that must be replayed as the
// X-CSRF-Token header, and platform/namespace resource trees backed by an
// in-memory JSON store.
package papitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

const (
	sessionCookieName = "isisessid"
	csrfCookieName    = "isicsrf"
	csrfHeader        = "X-CSRF-Token"

	timeoutAbsolute = 14400
	timeoutInactive = 900
)

// session is one authenticated session on the fake node.
type session struct {
	username string
	services []string
	csrf     string
}

// Server is a fake PAPI node listening on a local TLS socket with a
// self-signed certificate, matching how an appliance presents itself.
type Server struct {
	httpServer *httptest.Server

	mu       sync.Mutex
	fixture  Fixture
	sessions map[string]*session
	store    map[string][]byte
	requests []string
}

// NewServer starts a fake node with the given fixture. Call Close when
// done. A zero-value fixture gets DefaultFixture applied.
func NewServer(fixture Fixture) *Server {
	if len(fixture.Users) == 0 {
		fixture = DefaultFixture()
	}

	s := &Server{
		fixture:  fixture,
		sessions: make(map[string]*session),
		store:    make(map[string][]byte),
	}
	s.seed()

	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/session/1/session", s.createSession)
	r.Get("/session/1/session", s.getSession)
	r.Delete("/session/1/session", s.deleteSession)
	for _, service := range []string{"platform", "namespace"} {
		sub := chi.NewRouter()
		sub.Use(s.requireSession)
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete} {
			sub.MethodFunc(method, "/*", s.resource(service))
		}
		r.Mount("/"+service, sub)
	}

	s.httpServer = httptest.NewTLSServer(r)
	return s
}

// seed loads fixture resources and the cluster identity into the store.
func (s *Server) seed() {
	identity := fmt.Sprintf(`{"name":%q,"description":%q,"logon":{"motd":"","motd_header":""}}`,
		s.fixture.ClusterName, s.fixture.Description)
	s.store["platform/1/cluster/identity"] = []byte(identity)
	for _, res := range s.fixture.Resources {
		s.store[res.Service+"/"+strings.Trim(res.Path, "/")] = []byte(res.Body)
	}
}

// Close shuts the fake node down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// URL returns the node's base URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Host returns the node address to hand to a client.
func (s *Server) Host() string {
	u, _ := url.Parse(s.httpServer.URL)
	return u.Hostname()
}

// Port returns the node port to hand to a client.
func (s *Server) Port() int {
	u, _ := url.Parse(s.httpServer.URL)
	port, _ := strconv.Atoi(u.Port())
	return port
}

// Requests returns the method and path of every request received so far,
// in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// ResetRequests clears the recorded request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// SessionCount returns the number of live sessions on the node.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ExpireSessions drops all live sessions without telling clients, the way
// a node does when a session times out server-side.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*session)
}

// record logs every request for assertion in tests.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// createSession handles the credential exchange.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Services []string `json:"services"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil || json.Unmarshal(body, &req) != nil {
		writeError(w, http.StatusBadRequest, "malformed session request")
		return
	}

	if !s.fixture.authenticate(req.Username, req.Password) {
		writeError(w, http.StatusUnauthorized, "Username or password is incorrect.")
		return
	}

	sess := &session{
		username: req.Username,
		services: req.Services,
		csrf:     uuid.New().String(),
	}
	if len(sess.services) == 0 {
		sess.services = []string{"platform"}
	}
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: id, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: sess.csrf, Path: "/"})
	writeSessionInfo(w, http.StatusCreated, sess)
}

// getSession reports the session the request's cookie belongs to.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(r)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "Authorization required.")
		return
	}
	writeSessionInfo(w, http.StatusOK, sess)
}

// deleteSession terminates the request's session. Deleting without a live
// session is not an error; the state converges either way.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionFor resolves the request's session cookie, or nil.
func (s *Server) sessionFor(r *http.Request) *session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[cookie.Value]
}

// requireSession gates the resource trees behind the session cookie and
// the CSRF header, mirroring node behavior: a session cookie alone is not
// enough for PAPI calls.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessionFor(r)
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "Authorization required.")
			return
		}
		if r.Header.Get(csrfHeader) != sess.csrf {
			writeError(w, http.StatusForbidden, "CSRF token mismatch.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resource serves generic CRUD on one service tree out of the JSON store.
func (s *Server) resource(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := service + "/" + strings.Trim(chi.URLParam(r, "*"), "/")

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			s.mu.Lock()
			body, ok := s.store[key]
			s.mu.Unlock()
			if !ok {
				writeError(w, http.StatusNotFound, "Resource not found.")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				w.Write(body)
			}
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil || !json.Valid(body) {
				writeError(w, http.StatusBadRequest, "Request body is not valid JSON.")
				return
			}
			s.mu.Lock()
			s.store[key] = body
			s.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			if err != nil || !json.Valid(body) {
				writeError(w, http.StatusBadRequest, "Request body is not valid JSON.")
				return
			}
			id := uuid.New().String()
			stored, err := sjson.SetBytes(body, "id", id)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Request body is not a JSON object.")
				return
			}
			s.mu.Lock()
			s.store[key+"/"+id] = stored
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":%q}`, id)
		case http.MethodDelete:
			s.mu.Lock()
			_, ok := s.store[key]
			delete(s.store, key)
			s.mu.Unlock()
			if !ok {
				writeError(w, http.StatusNotFound, "Resource not found.")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// writeSessionInfo sends the session payload a node returns on session
// creation and introspection.
func writeSessionInfo(w http.ResponseWriter, status int, sess *session) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"username":         sess.username,
		"services":         sess.services,
		"timeout_absolute": timeoutAbsolute,
		"timeout_inactive": timeoutInactive,
	})
}

// writeError sends a PAPI-shaped error body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"message": message}},
	})
}
