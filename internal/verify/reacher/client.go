// Package reacher is a client for the Reacher email verification API
// (https://reacher.email), self-hosted or managed.
package reacher

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/email-pattern-finder/internal/redact"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
)

// DefaultBaseURL is the managed Reacher endpoint.
const DefaultBaseURL = "https://api.reacher.email"

// Config configures a Client.
type Config struct {
	BaseURL string

	// APIKey is sent as a bearer token. Only the managed service needs one.
	APIKey string
	// APIKeyPath, when set, is read for the key (mounted secrets). APIKey wins if both are set.
	APIKeyPath string

	// CAPath is an optional PEM bundle used as the TLS trust store.
	CAPath string

	// Timeout bounds each HTTP request. Defaults to 30s.
	Timeout time.Duration

	// HTTPClient overrides the transport entirely (tests).
	HTTPClient *http.Client
}

// Client calls POST /v0/check_email.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

var _ verify.Validator = (*Client)(nil)

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	raw := cfg.BaseURL
	if strings.TrimSpace(raw) == "" {
		raw = DefaultBaseURL
	}
	base, err := parseBaseURL(raw)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" && strings.TrimSpace(cfg.APIKeyPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(cfg.APIKeyPath))
		if err != nil {
			return nil, fmt.Errorf("read reacher api key file: %w", err)
		}
		key = strings.TrimSpace(string(b))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc, err = newHTTPClient(cfg.CAPath, timeout)
		if err != nil {
			return nil, err
		}
	}

	return &Client{baseURL: base, apiKey: key, http: hc}, nil
}

// parseBaseURL accepts values with stray quotes or without a scheme, which show up in
// hand-written .env files.
func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	if raw == "" {
		return nil, errors.New("reacher base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse reacher base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("reacher base URL must include a host (got %q)", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(caPath string, timeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(caPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(caPath))
		if err != nil {
			return nil, fmt.Errorf("read reacher CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, errors.New("parse reacher CA PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

type checkRequest struct {
	ToEmail string `json:"to_email"`
}

// checkResponse mirrors the parts of Reacher's CheckEmailOutput we use. Sub-objects are
// decoded lazily: on a per-check failure Reacher returns {"type":..,"message":..} in
// their place.
type checkResponse struct {
	Input       string          `json:"input"`
	IsReachable *string         `json:"is_reachable"`
	Misc        json.RawMessage `json:"misc"`
	MX          json.RawMessage `json:"mx"`
	SMTP        json.RawMessage `json:"smtp"`
}

type miscDetails struct {
	IsDisposable  bool `json:"is_disposable"`
	IsRoleAccount bool `json:"is_role_account"`
}

type mxDetails struct {
	AcceptsMail bool     `json:"accepts_mail"`
	Records     []string `json:"records"`
}

type smtpDetails struct {
	CanConnectSMTP bool `json:"can_connect_smtp"`
	IsCatchAll     bool `json:"is_catch_all"`
	IsDeliverable  bool `json:"is_deliverable"`
	IsDisabled     bool `json:"is_disabled"`
	HasFullInbox   bool `json:"has_full_inbox"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Validate checks one address.
func (c *Client) Validate(ctx context.Context, address string) (verify.Result, error) {
	address = strings.TrimSpace(address)
	out := verify.Result{Address: address, Status: verify.StatusUnknown}

	body, err := json.Marshal(checkRequest{ToEmail: address})
	if err != nil {
		return out, err
	}
	u := c.baseURL.ResolveReference(&url.URL{Path: "v0/check_email"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return out, classifyErr(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, classifyErr(fmt.Errorf("read reacher response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return out, newHTTPError(resp, b)
	}
	return parseResult(address, b)
}

func parseResult(address string, b []byte) (verify.Result, error) {
	out := verify.Result{Address: address, Status: verify.StatusUnknown}

	var cr checkResponse
	if err := json.Unmarshal(b, &cr); err != nil {
		return out, &verify.MalformedResponseError{Address: address, Reason: "decode body", Err: err}
	}
	if cr.IsReachable == nil {
		return out, &verify.MalformedResponseError{Address: address, Reason: "missing is_reachable"}
	}
	out.Status = verify.ParseStatus(*cr.IsReachable)

	var misc miscDetails
	if decodeDetails(cr.Misc, &misc) {
		out.IsDisposable = misc.IsDisposable
		out.IsRoleAccount = misc.IsRoleAccount
	}
	var mx mxDetails
	if decodeDetails(cr.MX, &mx) {
		out.MXRecords = cleanRecords(mx.Records)
	}
	var smtp smtpDetails
	if decodeDetails(cr.SMTP, &smtp) {
		out.IsReachableSMTP = smtp.IsDeliverable
		out.IsCatchAll = smtp.IsCatchAll
	}
	return out, nil
}

func decodeDetails(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func cleanRecords(in []string) []string {
	var out []string
	for _, r := range in {
		r = strings.TrimSuffix(strings.TrimSpace(r), ".")
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

func newHTTPError(resp *http.Response, body []byte) error {
	h := &verify.HTTPError{
		Op:         "check_email",
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.Message = redact.Secrets(strings.TrimSpace(firstNonEmpty(env.Message, env.Error)))
	}
	if h.Message == "" {
		h.Snippet = redact.Truncate(body, 256)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &verify.TransientError{Err: h}
	case resp.StatusCode >= 500:
		return &verify.TransientError{Err: h}
	default:
		return h
	}
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &verify.TransientError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &verify.TransientError{Err: err}
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return &verify.TransientError{Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &verify.TransientError{Err: err}
	}
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
