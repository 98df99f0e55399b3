package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bookhaven/bookhaven-backend/pkg/config"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

const defaultTimeout = 15 * time.Second

var (
	errAPIKeyRequired   = errors.New("email api key is required")
	errEndpointRequired = errors.New("email endpoint is required")
	errLoggerRequired   = errors.New("email logger is required")
)

// Message is a single transactional email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	From    string
}

// Sender delivers transactional email. Satisfied by *Client and by test fakes.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client delivers email through the provider's HTTP API with centralized
// auth, logging, and error mapping.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	defaultFrom string
	logger      *logger.Logger
}

// NewClient initializes the email wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.EmailConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errEndpointRequired
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		endpoint:    endpoint,
		apiKey:      apiKey,
		defaultFrom: strings.TrimSpace(cfg.DefaultFrom),
		logger:      logg,
	}

	logg.Info(ctx, "email client initialized")
	return c, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers a single message. Provider failures map to the domain
// error taxonomy so callers can decide whether to retry.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.httpClient == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "email client not initialized")
	}

	to := strings.TrimSpace(msg.To)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email subject is required")
	}
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = c.defaultFrom
	}
	if from == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email sender is required")
	}

	payload, err := json.Marshal(sendRequest{
		From:    from,
		To:      []string{to},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding email payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building email request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.log(ctx, "request", msg.Subject, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", msg.Subject, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "email send failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		sendErr := fmt.Errorf("email provider returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
		c.log(ctx, "error", msg.Subject, sendErr)
		return pkgerrors.Wrap(codeForStatus(resp.StatusCode), sendErr, "email send failed")
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && !errors.Is(err, io.EOF) {
		c.logger.Warn(ctx, "email: decoding provider response failed")
	}

	c.log(ctx, "response", msg.Subject, nil)
	return nil
}

func (c *Client) log(ctx context.Context, phase, subject string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{
		"operation": "send_email",
		"phase":     phase,
		"subject":   subject,
	})
	if err != nil {
		c.logger.Error(ctx, "email send", err)
		return
	}
	c.logger.Info(ctx, fmt.Sprintf("email %s", phase))
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		return pkgerrors.CodeDependency
	}
}
