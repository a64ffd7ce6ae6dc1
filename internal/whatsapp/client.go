package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cafe-pos/internal/errors"
	"cafe-pos/internal/logging"
	"cafe-pos/internal/settings"
)

// DefaultBaseURL is the Graph API endpoint
const DefaultBaseURL = "https://graph.facebook.com"

// ClientConfig configures the Cloud API client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Retry   errors.RetryConfig
}

// Client sends messages through the WhatsApp Cloud API
type Client struct {
	baseURL string
	http    *http.Client
	retry   *errors.RetryHandler
	logger  *logging.Logger
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewClient creates a client
func NewClient(config ClientConfig, logger *logging.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = errors.DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    &http.Client{Timeout: config.Timeout},
		retry:   errors.NewRetryHandler(config.Retry),
		logger:  logger,
	}
}

// Send posts msg and returns the provider message id. Network failures,
// 429 and 5xx responses are retried.
func (c *Client) Send(ctx context.Context, cfg settings.WhatsAppSettings, msg Message) (string, error) {
	if !cfg.Configured() {
		return "", errors.NewAppError(errors.ErrorTypeValidation, "WhatsApp is not configured", nil)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = settings.DefaultAPIVersion
	}
	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, apiVersion, cfg.PhoneNumberID)

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	var messageID string
	err = c.retry.Retry(ctx, func() error {
		id, err := c.post(ctx, url, cfg.AccessToken, body)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"to":    msg.To,
				"error": err.Error(),
			}).Debug("WhatsApp send attempt failed")
			return err
		}
		messageID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

func (c *Client) post(ctx context.Context, url, token string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.NewRecoverableError(errors.ErrorTypeConnection, "failed to read response", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(raw, &apiErr)
		return "", errors.NewHTTPStatusError(resp.StatusCode, apiErr.Error.Message)
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.NewAppError(errors.ErrorTypeUpstream, "unexpected response body", err)
	}
	if len(out.Messages) == 0 {
		return "", nil
	}
	return out.Messages[0].ID, nil
}
