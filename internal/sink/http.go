package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/types"
)

const (
	authPath    = "/v2/auth/"
	updatesPath = "/v2/updates/"
)

// HTTPConfig configures the loader API client
type HTTPConfig struct {
	URL        string
	Username   string
	Password   string
	DriverName string
	Timeout    time.Duration
}

// HTTP posts documents to the loader API
type HTTP struct {
	config HTTPConfig
	client *http.Client
	logger logger.Logger

	mu    sync.Mutex
	token string
}

var _ BatchSink = (*HTTP)(nil)

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

type updatesResponse struct {
	JobID string `json:"jobid"`
}

// statusError is a non 2xx answer from the loader API
type statusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("loader API %s returned %d: %s", e.Path, e.StatusCode, e.Body)
}

// NewHTTP creates a loader API client. A nil client gets one with
// config.Timeout.
func NewHTTP(config HTTPConfig, client *http.Client, log logger.Logger) *HTTP {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	config.URL = strings.TrimRight(config.URL, "/")
	return &HTTP{
		config: config,
		client: client,
		logger: log.WithField("loader", config.URL),
	}
}

// Publish sends a single document
func (s *HTTP) Publish(ctx context.Context, doc types.Document) error {
	return s.PublishBatch(ctx, []types.Document{doc})
}

// PublishBatch sends docs in one update request. An expired token is
// refreshed once.
func (s *HTTP) PublishBatch(ctx context.Context, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}

	payload, err := json.Marshal(docs)
	if err != nil {
		return driverrors.PublishError(driverrors.ComponentLoader, docs[0].Collection,
			fmt.Errorf("failed to marshal documents: %w", err))
	}

	jobID, err := s.postUpdates(ctx, payload, false)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		s.logger.Debug("Loader token rejected, authenticating again")
		jobID, err = s.postUpdates(ctx, payload, true)
	}
	if err != nil {
		return driverrors.PublishError(driverrors.ComponentLoader, docs[0].Collection, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"job_id":    jobID,
		"documents": len(docs),
	}).Debug("Documents accepted by loader")
	return nil
}

func (s *HTTP) postUpdates(ctx context.Context, payload []byte, refresh bool) (string, error) {
	token, err := s.authToken(ctx, refresh)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL+updatesPath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token token="+token)
	req.Header.Set("X-Driver-Name", s.config.DriverName)
	req.Header.Set("X-Request-Id", uuid.NewString())

	var out updatesResponse
	if err := s.do(req, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (s *HTTP) authToken(ctx context.Context, refresh bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && !refresh {
		return s.token, nil
	}

	body, err := json.Marshal(authRequest{Username: s.config.Username, Password: s.config.Password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL+authPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out authResponse
	if err := s.do(req, &out); err != nil {
		return "", fmt.Errorf("failed to authenticate: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("failed to authenticate: empty token")
	}
	s.token = out.Token
	return s.token, nil
}

func (s *HTTP) do(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &statusError{Path: req.URL.Path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
