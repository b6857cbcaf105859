package cloudstack

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/globomap/acs-driver/internal/logger"
)

// ClientConfig holds configuration for the signed API client
type ClientConfig struct {
	APIURL     string
	APIKey     string
	SecretKey  string
	VerifySSL  bool
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
}

// Client performs signed CloudStack API calls
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      logger.Logger
}

// APIError is the error document CloudStack returns inside the command response
type APIError struct {
	Command    string
	StatusCode int
	ErrorCode  int    `json:"errorcode"`
	ErrorText  string `json:"errortext"`
}

func (e *APIError) Error() string {
	if e.ErrorText != "" {
		return fmt.Sprintf("%s returned %d: %s (errorcode %d)", e.Command, e.StatusCode, e.ErrorText, e.ErrorCode)
	}
	return fmt.Sprintf("%s returned %d", e.Command, e.StatusCode)
}

// NewClient creates a client
func NewClient(config ClientConfig, log logger.Logger) *Client {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.RateBurst
	if burst <= 0 {
		burst = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !config.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      log,
	}
}

// Call executes command with params and decodes the "<command>response"
// member of the answer into out
func (c *Client) Call(ctx context.Context, command string, params map[string]string, out interface{}) error {
	requestURL := c.SignedURL(command, params)

	var (
		body []byte
		err  error
	)
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if err = c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		body, err = c.get(ctx, command, requestURL)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			break
		}
		c.logger.WithFields(map[string]interface{}{
			"command": command,
			"attempt": attempt,
		}).Warn(fmt.Sprintf("CloudStack request failed, retrying: %v", err))
	}
	if err != nil {
		return err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", command, err)
	}

	key := strings.ToLower(command) + "response"
	raw, ok := envelope[key]
	if !ok {
		return fmt.Errorf("%s response has no %q member", command, key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, command, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", command, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Command: command, StatusCode: resp.StatusCode}
		var envelope map[string]json.RawMessage
		if json.Unmarshal(body, &envelope) == nil {
			if raw, ok := envelope[strings.ToLower(command)+"response"]; ok {
				_ = json.Unmarshal(raw, apiErr)
			}
		}
		return nil, apiErr
	}

	return body, nil
}

// SignedURL builds the request URL: parameters sorted by name, values
// query-escaped with spaces as %20, and an HMAC-SHA1 signature of the
// lower-cased query appended
func (c *Client) SignedURL(command string, params map[string]string) string {
	all := make(map[string]string, len(params)+3)
	for k, v := range params {
		all[k] = v
	}
	all["command"] = command
	all["response"] = "json"
	all["apiKey"] = c.config.APIKey

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(all[k]))
	}
	query := strings.ReplaceAll(strings.Join(pairs, "&"), "+", "%20")

	return c.config.APIURL + "?" + query + "&signature=" + url.QueryEscape(Sign(c.config.SecretKey, query))
}

// Sign returns the base64 HMAC-SHA1 of the lower-cased query
func Sign(secret, query string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(strings.ToLower(query)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// isRetryable reports transport level failures; API errors are final
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
