// Package mockreacher serves a Reacher-compatible /v0/check_email endpoint backed by an
// in-memory mailbox table, for local runs and end-to-end tests.
package mockreacher

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Call records a request made to the mock service.
type Call struct {
	Method  string
	Path    string
	ToEmail string
}

// Server answers checks from a table of known mailboxes. Unknown addresses are invalid,
// except on catch-all domains where every address is risky.
type Server struct {
	mu sync.Mutex

	mailboxes map[string]string
	catchAll  map[string]bool
	mx        map[string][]string

	calls []Call

	expectedAuthorization string
	failures              []int
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		mailboxes: make(map[string]string),
		catchAll:  make(map[string]bool),
		mx:        make(map[string][]string),
	}
}

// AddMailbox registers address with a verdict: safe, risky, invalid or unknown.
func (s *Server) AddMailbox(address, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailboxes[strings.ToLower(strings.TrimSpace(address))] = strings.ToLower(strings.TrimSpace(status))
}

// SetCatchAll marks domain as accepting every address.
func (s *Server) SetCatchAll(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catchAll[strings.ToLower(strings.TrimSpace(domain))] = true
}

// SetMX sets the MX records reported for domain.
func (s *Server) SetMX(domain string, records ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mx[strings.ToLower(strings.TrimSpace(domain))] = records
}

// FailNext makes the next len(codes) requests fail with the given HTTP status codes.
func (s *Server) FailNext(codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, codes...)
}

// RequireBearerToken enforces that requests include an Authorization header matching the token.
// If token is empty, authorization is not enforced.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// LoadMailboxes reads "address,status" rows (header optional) into the table.
func (s *Server) LoadMailboxes(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	n := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read mailboxes: %w", err)
		}
		if len(rec) < 2 || strings.EqualFold(strings.TrimSpace(rec[0]), "address") {
			continue
		}
		s.AddMailbox(rec[0], rec[1])
		n++
	}
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v0/check_email", s.handleCheckEmail)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

type checkRequest struct {
	ToEmail string `json:"to_email"`
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ToEmail) == "" {
		writeError(w, http.StatusBadRequest, "to_email is required")
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, ToEmail: req.ToEmail})
	expected := s.expectedAuthorization
	failCode := 0
	if len(s.failures) > 0 {
		failCode = s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()

	if expected != "" && r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "invalid or missing api key")
		return
	}
	if failCode != 0 {
		writeError(w, failCode, http.StatusText(failCode))
		return
	}

	writeJSON(w, http.StatusOK, s.verdict(req.ToEmail))
}

func (s *Server) verdict(address string) map[string]any {
	address = strings.ToLower(strings.TrimSpace(address))
	domain := ""
	if at := strings.LastIndex(address, "@"); at >= 0 {
		domain = address[at+1:]
	}

	s.mu.Lock()
	status, known := s.mailboxes[address]
	catchAll := s.catchAll[domain]
	records := s.mx[domain]
	s.mu.Unlock()

	if !known {
		status = "invalid"
		if catchAll {
			status = "risky"
		}
	}
	if len(records) == 0 {
		records = []string{"mx1." + domain + "."}
	}
	local := strings.SplitN(address, "@", 2)[0]
	role := false
	switch local {
	case "info", "sales", "admin", "support", "contact", "hello":
		role = true
	}

	return map[string]any{
		"input":        address,
		"is_reachable": status,
		"misc": map[string]any{
			"is_disposable":   false,
			"is_role_account": role,
		},
		"mx": map[string]any{
			"accepts_mail": true,
			"records":      records,
		},
		"smtp": map[string]any{
			"can_connect_smtp": true,
			"has_full_inbox":   false,
			"is_catch_all":     catchAll,
			"is_deliverable":   status == "safe",
			"is_disabled":      false,
		},
		"syntax": map[string]any{
			"address":         address,
			"domain":          domain,
			"is_valid_syntax": strings.Contains(address, "@"),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
