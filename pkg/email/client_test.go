package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bookhaven/bookhaven-backend/pkg/config"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "email-test", Output: io.Discard})
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	logg := testLogger()
	if _, err := NewClient(context.Background(), config.EmailConfig{Endpoint: "https://api.example.com"}, logg); err == nil {
		t.Fatal("expected error without api key")
	}
	if _, err := NewClient(context.Background(), config.EmailConfig{APIKey: "key"}, logg); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := NewClient(context.Background(), config.EmailConfig{Endpoint: "https://api.example.com", APIKey: "key"}, nil); err == nil {
		t.Fatal("expected error without logger")
	}
}

func TestSendSuccess(t *testing.T) {
	t.Parallel()

	var captured sendRequest
	client := &Client{
		endpoint:    "https://api.example.com/emails",
		apiKey:      "secret",
		defaultFrom: "BookHaven <hello@bookhaven.app>",
		logger:      testLogger(),
		httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			if req.Method != http.MethodPost {
				t.Fatalf("expected POST, got %s", req.Method)
			}
			if req.Header.Get("Authorization") != "Bearer secret" {
				t.Fatalf("unexpected auth %s", req.Header.Get("Authorization"))
			}
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"id":"em_123"}`)),
				Header:     http.Header{},
			}
		})},
	}

	err := client.Send(context.Background(), Message{
		To:      "reader@example.com",
		Subject: "Welcome to BookHaven",
		Text:    "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if captured.From != "BookHaven <hello@bookhaven.app>" {
		t.Fatalf("unexpected from %q", captured.From)
	}
	if len(captured.To) != 1 || captured.To[0] != "reader@example.com" {
		t.Fatalf("unexpected to %v", captured.To)
	}
}

func TestSendValidatesMessage(t *testing.T) {
	t.Parallel()

	client := &Client{
		endpoint:   "https://api.example.com/emails",
		apiKey:     "secret",
		logger:     testLogger(),
		httpClient: &http.Client{},
	}

	cases := []struct {
		name string
		msg  Message
	}{
		{"missing recipient", Message{Subject: "s", From: "a@b.c"}},
		{"missing subject", Message{To: "reader@example.com", From: "a@b.c"}},
		{"missing sender", Message{To: "reader@example.com", Subject: "s"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := client.Send(context.Background(), tc.msg)
			if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSendMapsProviderErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		want   pkgerrors.Code
	}{
		{"rate limited", http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{"bad request", http.StatusBadRequest, pkgerrors.CodeValidation},
		{"unauthorized", http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{"server error", http.StatusInternalServerError, pkgerrors.CodeDependency},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &Client{
				endpoint:    "https://api.example.com/emails",
				apiKey:      "secret",
				defaultFrom: "a@b.c",
				logger:      testLogger(),
				httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
					return &http.Response{
						StatusCode: tc.status,
						Body:       io.NopCloser(strings.NewReader(`{"message":"nope"}`)),
						Header:     http.Header{},
					}
				})},
			}

			err := client.Send(context.Background(), Message{To: "reader@example.com", Subject: "s"})
			if !pkgerrors.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}
