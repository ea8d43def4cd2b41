// Package client implements core.CourseService against a remote course
// service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/JonMunkholm/coursehub/internal/core"
	"github.com/JonMunkholm/coursehub/internal/logging"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is the number of attempts for a transient failure.
	DefaultMaxRetries = 3

	// MaxResponseSize caps how much of a response body is read (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is sent with every request.
	UserAgent = "coursehub-cli/1.0"
)

// Messages returned by the create endpoint.
const (
	MsgCourseCreated = "Course created successfully"
	MsgCourseExists  = "Course already exists"
)

// HTTPError is a non-success response from the course service.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("unauthorized: HTTP %d for %s %s", e.StatusCode, e.Method, e.URL)
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limit: HTTP %d for %s %s", e.StatusCode, e.Method, e.URL)
	}
	return fmt.Sprintf("HTTP %d for %s %s: %s", e.StatusCode, e.Method, e.URL, e.Message)
}

// Temporary reports whether the request may succeed if retried.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxRetries sets the number of attempts for transient failures.
// Values below 1 are treated as 1.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = uint(n)
	}
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(d time.Duration) Option {
	return func(c *Client) { c.initialInterval = d }
}

// Client talks to the course service REST API with a static bearer token.
type Client struct {
	baseURL         *url.URL
	token           string
	http            *http.Client
	maxRetries      uint
	initialInterval time.Duration
}

var _ core.CourseService = (*Client)(nil)

// New creates a Client for baseURL.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("course service URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse course service URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("course service URL must be http or https, got %q", u.Scheme)
	}

	c := &Client{
		baseURL:         u,
		token:           token,
		http:            &http.Client{Timeout: DefaultTimeout},
		maxRetries:      DefaultMaxRetries,
		initialInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// courseJSON is the wire shape of a course.
type courseJSON struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type createResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// FetchAll returns every course known to the service.
func (c *Client) FetchAll(ctx context.Context) (core.Snapshot, error) {
	rep, err := c.do(ctx, http.MethodGet, "api/admin/dbcourses", nil)
	if err != nil {
		return nil, err
	}
	if rep.status != http.StatusOK {
		return nil, c.httpError(http.MethodGet, "api/admin/dbcourses", rep.status, rep.body)
	}

	var courses []courseJSON
	if err := json.Unmarshal(rep.body, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}

	snap := make(core.Snapshot, 0, len(courses))
	for _, cj := range courses {
		snap = append(snap, core.CourseRecord{Code: cj.Code, Name: cj.Name})
	}
	return snap, nil
}

// Create creates a course. Client errors from the service are decoded into a
// tagged result rather than returned as errors.
//
// A create that is retried after an attempt whose outcome is unknown may be
// answered with "already exists" for the course the earlier attempt stored.
// That answer is reported as Created.
func (c *Client) Create(ctx context.Context, code, name string) (core.CreateResult, error) {
	path := "api/course/create/" + url.PathEscape(code)

	rep, err := c.do(ctx, http.MethodPost, path, courseJSON{Name: name})
	if err != nil {
		return core.CreateResult{}, err
	}
	if rep.status == http.StatusUnauthorized || rep.status == http.StatusForbidden {
		return core.CreateResult{}, c.httpError(http.MethodPost, path, rep.status, rep.body)
	}

	var resp createResponse
	if err := json.Unmarshal(rep.body, &resp); err != nil {
		return core.CreateResult{}, fmt.Errorf("decode create response (HTTP %d): %w", rep.status, err)
	}

	res := core.CreateResult{Message: resp.Message}
	if rep.status >= 200 && rep.status <= 299 {
		res.Code = resp.Code
	}
	switch resp.Message {
	case MsgCourseCreated:
		res.Status = core.Created
	case MsgCourseExists:
		res.Status = core.AlreadyExists
		if rep.uncertain {
			logging.FromContext(ctx).Info("create retry found course from earlier attempt",
				slog.String("code", code))
			res.Status = core.Created
			res.Message = MsgCourseCreated
			if res.Code == "" {
				res.Code = core.NormalizeCode(code)
			}
		}
	default:
		res.Status = core.CreateFailed
	}
	return res, nil
}

// Update renames the course identified by code. The service addresses
// courses by lowercased code. A non-2xx response or a response without a
// code is not an update.
func (c *Client) Update(ctx context.Context, code, name string) (core.UpdateResult, error) {
	path := "api/admin/course/" + url.PathEscape(strings.ToLower(strings.TrimSpace(code)))

	rep, err := c.do(ctx, http.MethodPatch, path, courseJSON{Name: name})
	if err != nil {
		return core.UpdateResult{}, err
	}
	if rep.status == http.StatusUnauthorized || rep.status == http.StatusForbidden {
		return core.UpdateResult{}, c.httpError(http.MethodPatch, path, rep.status, rep.body)
	}
	// Error bodies carry an error code in "code"; only a 2xx echoes the course.
	if rep.status < 200 || rep.status > 299 {
		return core.UpdateResult{}, nil
	}

	var resp courseJSON
	if err := json.Unmarshal(rep.body, &resp); err != nil {
		return core.UpdateResult{}, fmt.Errorf("decode update response (HTTP %d): %w", rep.status, err)
	}

	return core.UpdateResult{Updated: resp.Code != "", Code: resp.Code, Name: resp.Name}, nil
}

// reply is the final response to a request.
type reply struct {
	status int
	body   []byte
	// uncertain is set when an earlier attempt may have been applied by the
	// service before it failed: a 5xx or a transport error.
	uncertain bool
}

// throttledError is a retryable HTTPError that carries the delay the service
// asked for. backoff honours the delay and callers still see the HTTPError.
type throttledError struct {
	*HTTPError
	delay *backoff.RetryAfterError
}

func (e *throttledError) Unwrap() []error { return []error{e.HTTPError, e.delay} }

// do sends one request, retrying network errors, 5xx and 429 with
// exponential backoff. Any other response is returned to the caller.
func (c *Client) do(ctx context.Context, method, path string, payload any) (reply, error) {
	target, err := c.resolve(path)
	if err != nil {
		return reply{}, err
	}

	var encoded []byte
	if payload != nil {
		if encoded, err = json.Marshal(payload); err != nil {
			return reply{}, fmt.Errorf("encode request: %w", err)
		}
	}

	logger := logging.FromContext(ctx)
	attempt := 0
	uncertain := false

	operation := func() (reply, error) {
		attempt++

		var reqBody io.Reader
		if encoded != nil {
			reqBody = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
		if err != nil {
			return reply{}, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "application/json")
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return reply{}, backoff.Permanent(ctx.Err())
			}
			uncertain = true
			return reply{}, fmt.Errorf("%s %s: %w", method, target.Redacted(), err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
		if err != nil {
			uncertain = true
			return reply{}, fmt.Errorf("read response body: %w", err)
		}
		if len(body) > MaxResponseSize {
			return reply{}, backoff.Permanent(fmt.Errorf("response exceeds %d bytes", MaxResponseSize))
		}

		httpErr := &HTTPError{StatusCode: resp.StatusCode, Method: method, URL: target.Redacted(), Message: resp.Status}
		if httpErr.Temporary() {
			// 429 is rejected before the handler runs.
			if resp.StatusCode != http.StatusTooManyRequests {
				uncertain = true
			}
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				return reply{}, &throttledError{HTTPError: httpErr, delay: &backoff.RetryAfterError{Duration: time.Duration(secs) * time.Second}}
			}
			return reply{}, httpErr
		}

		return reply{status: resp.StatusCode, body: body, uncertain: uncertain}, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialInterval

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(c.maxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("retrying course service request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", next),
				slog.Any("error", err),
			)
		}),
	)
	if err != nil {
		var throttled *throttledError
		if errors.As(err, &throttled) {
			return reply{}, throttled.HTTPError
		}
		return reply{}, err
	}
	return res, nil
}

func (c *Client) httpError(method, path string, status int, body []byte) error {
	msg := http.StatusText(status)
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}
	target := path
	if u, err := c.resolve(path); err == nil {
		target = u.Redacted()
	}
	return &HTTPError{StatusCode: status, Method: method, URL: target, Message: msg}
}

// resolve joins an escaped relative path onto the base URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("build request URL: %w", err)
	}
	return c.baseURL.ResolveReference(ref), nil
}
