package mediakit

import (
	"context"
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
	return logger.New(logger.Options{ServiceName: "mediakit-test", Output: io.Discard})
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	logg := testLogger()
	if _, err := NewClient(context.Background(), config.MediaConfig{UploadEndpoint: "https://upload.example.com"}, logg); err == nil {
		t.Fatal("expected error without private key")
	}
	if _, err := NewClient(context.Background(), config.MediaConfig{PrivateKey: "key"}, logg); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestUploadSuccess(t *testing.T) {
	t.Parallel()

	client := &Client{
		uploadEndpoint: "https://upload.example.com/api/v1/files/upload",
		privateKey:     "private_key",
		logger:         testLogger(),
		httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			user, _, ok := req.BasicAuth()
			if !ok || user != "private_key" {
				t.Fatalf("unexpected basic auth user %q", user)
			}
			if err := req.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse multipart: %v", err)
			}
			if got := req.FormValue("fileName"); got != "cover.jpg" {
				t.Fatalf("unexpected fileName %q", got)
			}
			if got := req.FormValue("folder"); got != "covers" {
				t.Fatalf("unexpected folder %q", got)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"fileId":"f_1","name":"cover.jpg","url":"https://ik.example.com/covers/cover.jpg"}`)),
				Header:     http.Header{},
			}
		})},
	}

	result, err := client.Upload(context.Background(), UploadParams{
		FileName: "cover.jpg",
		Folder:   "covers",
		Content:  strings.NewReader("jpeg-bytes"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.URL != "https://ik.example.com/covers/cover.jpg" {
		t.Fatalf("unexpected url %q", result.URL)
	}
	if result.FileID != "f_1" {
		t.Fatalf("unexpected file id %q", result.FileID)
	}
}

func TestUploadValidatesParams(t *testing.T) {
	t.Parallel()

	client := &Client{
		uploadEndpoint: "https://upload.example.com",
		privateKey:     "key",
		logger:         testLogger(),
		httpClient:     &http.Client{},
	}

	if _, err := client.Upload(context.Background(), UploadParams{Content: strings.NewReader("x")}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without file name, got %v", err)
	}
	if _, err := client.Upload(context.Background(), UploadParams{FileName: "cover.jpg"}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without content, got %v", err)
	}
}

func TestUploadMapsHostErrors(t *testing.T) {
	t.Parallel()

	client := &Client{
		uploadEndpoint: "https://upload.example.com",
		privateKey:     "key",
		logger:         testLogger(),
		httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusUnauthorized,
				Body:       io.NopCloser(strings.NewReader(`{"message":"bad key"}`)),
				Header:     http.Header{},
			}
		})},
	}

	_, err := client.Upload(context.Background(), UploadParams{FileName: "cover.jpg", Content: strings.NewReader("x")})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
