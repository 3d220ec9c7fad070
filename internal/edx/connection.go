package edx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/ubuntu/decorate"
)

var (
	// ErrLoginFailed is returned when the instance rejects the provided credentials.
	ErrLoginFailed = errors.New("authentication with the instance failed")
	// ErrNoCSRFToken is returned when the login page does not hand out a csrftoken cookie.
	ErrNoCSRFToken = errors.New("no csrftoken cookie received from the login page")
)

// Connection is an authenticated session against an Open edX instance.
type Connection struct {
	instance Instance
	email    string
	password string
	user     string

	client    *http.Client
	csrfToken string

	log *slog.Logger
}

type options struct {
	// Private members exported for tests.
	client  *http.Client
	timeout time.Duration
}

// Options represents an optional function to override Connection default values.
type Options func(*options)

// New returns a Connection for the given instance and credentials. No network
// traffic happens until Login is called.
func New(l *slog.Logger, instance Instance, email, password string, args ...Options) (*Connection, error) {
	opts := options{timeout: 60 * time.Second}
	for _, opt := range args {
		opt(&opts)
	}

	client := opts.client
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("could not create cookie jar: %v", err)
		}
		client = &http.Client{Jar: jar, Timeout: opts.timeout}
	}

	return &Connection{
		instance: instance,
		email:    email,
		password: password,
		client:   client,
		log:      l,
	}, nil
}

// Instance returns the instance configuration this connection talks to.
func (c *Connection) Instance() Instance {
	return c.instance
}

// User returns the username the instance associates with the session.
// Empty before a successful Login.
func (c *Connection) User() string {
	return c.user
}

// Login fetches a CSRF token from the login page, authenticates through
// login_ajax and resolves the session username.
func (c *Connection) Login(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not establish connection to %s", c.instance.URL)

	if err := c.fetchCSRFToken(ctx); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("email", c.email)
	form.Set("password", c.password)

	var result struct {
		Success bool   `json:"success"`
		Value   string `json:"value"`
	}
	if err := c.postForm(ctx, "/login_ajax", form, c.instance.URL+c.instance.LoginPage, &result); err != nil {
		return err
	}
	if !result.Success {
		c.log.Debug("Login rejected", "value", result.Value)
		return ErrLoginFailed
	}

	var me struct {
		Username string `json:"username"`
	}
	if err := c.GetAPIJSON(ctx, "/api/user/v1/me", &me); err != nil {
		return fmt.Errorf("could not resolve session username: %w", err)
	}
	c.user = me.Username
	c.log.Info("Authenticated with instance", "instance", c.instance.URL, "user", c.user)

	return nil
}

// GetPage fetches the URL through the authenticated session and returns the body.
func (c *Connection) GetPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.instance.PrepareURL(pageURL), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request for %s: %v", pageURL, err)
	}
	c.setHeaders(req, "")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, pageURL)
	}

	return io.ReadAll(resp.Body)
}

// GetAPIJSON fetches an API path relative to the instance and decodes the JSON
// response into out.
func (c *Connection) GetAPIJSON(ctx context.Context, apiPath string, out any) error {
	body, err := c.GetPage(ctx, apiPath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not decode API response for %s: %v", apiPath, err)
	}
	return nil
}

// PostAPIForm sends a form-encoded POST to an API path and decodes the JSON
// response into out. referer is required by the instance for xmodule handlers.
func (c *Connection) PostAPIForm(ctx context.Context, apiPath string, form url.Values, referer string, out any) error {
	return c.postForm(ctx, apiPath, form, referer, out)
}

func (c *Connection) fetchCSRFToken(ctx context.Context) error {
	loginURL := c.instance.URL + c.instance.LoginPage
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return fmt.Errorf("could not create request for %s: %v", loginURL, err)
	}
	c.setHeaders(req, "")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not fetch login page: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	u, err := url.Parse(c.instance.URL)
	if err != nil {
		return fmt.Errorf("invalid instance URL: %v", err)
	}
	for _, cookie := range c.client.Jar.Cookies(u) {
		if cookie.Name == "csrftoken" {
			c.csrfToken = cookie.Value
			return nil
		}
	}

	return ErrNoCSRFToken
}

func (c *Connection) postForm(ctx context.Context, apiPath string, form url.Values, referer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.instance.PrepareURL(apiPath), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("could not create request for %s: %v", apiPath, err)
	}
	c.setHeaders(req, referer)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not post to %s: %w", apiPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, apiPath)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response for %s: %v", apiPath, err)
	}
	return nil
}

func (c *Connection) setHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}
