package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	defaultAPIVersion = "1.16.1"
	defaultAppName    = "spotcloud"
	viewSuffix        = ".view"
	maxErrorBody      = 512
)

// Credentials identify the catalog server and the client talking to it.
type Credentials struct {
	BaseURL    string
	Port       int
	APIKey     string
	APIVersion string
	AppName    string
	BasePath   string
}

// CredentialsFromConfig copies the [catalog] config section into a [Credentials] value.
func CredentialsFromConfig(c shared.CatalogConfig) Credentials {
	return Credentials{
		BaseURL:    c.BaseURL,
		Port:       c.Port,
		APIKey:     c.APIKey,
		APIVersion: c.APIVersion,
		AppName:    c.AppName,
		BasePath:   c.BasePath,
	}
}

// Params are per-call query parameters. Absent values (nil, nil pointers, "") are never encoded.
type Params map[string]any

// Repeated is a list parameter encoded as one Key=value pair per element, in order.
type Repeated struct {
	Key    string
	Values []string
}

// APIError is the error object of a failed envelope.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is an unwrapped subsonic-response envelope.
//
// Payload fields are kept raw and decoded on demand with [Response.Decode].
type Response struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	Type          string    `json:"type,omitempty"`
	ServerVersion string    `json:"serverVersion,omitempty"`
	Error         *APIError `json:"error,omitempty"`

	view   string
	fields map[string]json.RawMessage
}

var envelopeKeys = map[string]bool{
	"status": true, "version": true, "type": true, "serverVersion": true, "openSubsonic": true, "error": true, "xmlns": true,
}

// Has reports whether the payload field key is present.
func (r *Response) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Keys returns the payload field names in sorted order.
func (r *Response) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		if !envelopeKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Decode unmarshals payload field key into v.
//
// A missing or malformed field is a [*ProtocolError].
func (r *Response) Decode(key string, v any) error {
	raw, ok := r.fields[key]
	if !ok {
		return &ProtocolError{View: r.view, Reason: fmt.Sprintf("missing %q payload", key)}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ProtocolError{View: r.view, Reason: fmt.Sprintf("malformed %q payload", key), Err: err}
	}
	return nil
}

// statusError converts a failed envelope into a [*RemoteStatusError], or nil when the status is ok.
func (r *Response) statusError() error {
	if CheckStatus(r) {
		return nil
	}
	e := &RemoteStatusError{View: r.view, Message: "status " + r.Status}
	if r.Error != nil {
		e.Code = r.Error.Code
		e.Message = r.Error.Message
	}
	return e
}

// CheckStatus reports whether resp carries status "ok".
func CheckStatus(resp *Response) bool {
	return resp != nil && resp.Status == "ok"
}

// Client issues Subsonic REST calls. It is safe for concurrent use.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero keeps the HTTP client's own setting.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the server described by creds.
func NewClient(creds Credentials, opts ...Option) *Client {
	if creds.APIVersion == "" {
		creds.APIVersion = defaultAPIVersion
	}
	if creds.AppName == "" {
		creds.AppName = defaultAppName
	}

	c := &Client{
		creds:      creds,
		httpClient: &http.Client{},
		logger:     shared.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client from the [catalog] config section.
func NewClientFromConfig(cfg shared.CatalogConfig, logger *log.Logger) *Client {
	return NewClient(CredentialsFromConfig(cfg),
		WithTimeout(cfg.Timeout.Duration),
		WithRateLimit(cfg.RequestsPerSecond),
		WithLogger(logger),
	)
}

// RequestURL builds the full request URL for view, including credentials.
func (c *Client) RequestURL(view string, params Params, repeated *Repeated) string {
	q := url.Values{}
	for key, value := range params {
		if s, ok := formatParam(value); ok {
			q.Set(key, s)
		}
	}
	if repeated != nil && repeated.Key != "" {
		for _, v := range repeated.Values {
			q.Add(repeated.Key, v)
		}
	}

	q.Set("apiKey", c.creds.APIKey)
	q.Set("v", c.creds.APIVersion)
	q.Set("c", c.creds.AppName)
	q.Set("f", "json")

	if !strings.HasSuffix(view, viewSuffix) {
		view += viewSuffix
	}

	base := fmt.Sprintf("%s:%d", strings.TrimRight(c.creds.BaseURL, "/"), c.creds.Port)
	if p := strings.Trim(c.creds.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base + "/" + view + "?" + q.Encode()
}

// Call performs view and returns the unwrapped envelope, whatever its status.
//
// Errors are [*TransportError] or [*ProtocolError].
func (c *Client) Call(ctx context.Context, view string, params Params, repeated *Repeated) (*Response, error) {
	name := strings.TrimSuffix(view, viewSuffix)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{View: name, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(view, params, repeated), nil)
	if err != nil {
		return nil, &TransportError{View: name, Err: redactURLError(err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("catalog call failed", "view", name, "error", redactURLError(err))
		return nil, &TransportError{View: name, Err: redactURLError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{View: name, StatusCode: resp.StatusCode, Reason: statusReason(resp, snippet)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{View: name, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	out, err := parseEnvelope(name, body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("catalog call", "view", name, "status", out.Status, "elapsed", time.Since(start))
	return out, nil
}

// Ping reports whether the server is reachable and accepts the credentials. It never fails loudly.
func (c *Client) Ping(ctx context.Context) bool {
	resp, err := c.Call(ctx, "ping", nil, nil)
	if err != nil {
		c.logger.Debug("ping failed", "error", err)
		return false
	}
	return CheckStatus(resp)
}

// do calls view and converts a failed status into a [*RemoteStatusError].
func (c *Client) do(ctx context.Context, view string, params Params, repeated *Repeated) (*Response, error) {
	resp, err := c.Call(ctx, view, params, repeated)
	if err != nil {
		return nil, err
	}
	if err := resp.statusError(); err != nil {
		return resp, err
	}
	return resp, nil
}

func parseEnvelope(view string, body []byte) (*Response, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, &ProtocolError{View: view, Reason: "body is not a JSON object", Err: err}
	}
	if len(outer) != 1 {
		return nil, &ProtocolError{View: view, Reason: fmt.Sprintf("expected one envelope key, found %d", len(outer))}
	}

	var inner json.RawMessage
	for _, v := range outer {
		inner = v
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(inner, &fields); err != nil || fields == nil {
		return nil, &ProtocolError{View: view, Reason: "envelope is not an object", Err: err}
	}

	resp := &Response{view: view, fields: fields}
	if err := json.Unmarshal(inner, resp); err != nil {
		return nil, &ProtocolError{View: view, Reason: "malformed envelope", Err: err}
	}
	if resp.Status == "" {
		return nil, &ProtocolError{View: view, Reason: "envelope has no status"}
	}
	return resp, nil
}

// formatParam renders a parameter value, reporting false for absent values.
func formatParam(value any) (string, bool) {
	if value == nil {
		return "", false
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	var s string
	switch v := rv.Interface().(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	return s, s != ""
}

// redactURLError drops the request URL (which carries the API key) from a client error.
// statusReason joins the status text with the first line of the body, if any.
func statusReason(resp *http.Response, body []byte) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(body)), "\n")
	if line = strings.TrimSpace(line); line != "" {
		reason += ": " + line
	}
	return reason
}

func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
