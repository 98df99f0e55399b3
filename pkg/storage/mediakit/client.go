package mediakit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bookhaven/bookhaven-backend/pkg/config"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

const defaultTimeout = 30 * time.Second

var (
	errPrivateKeyRequired = errors.New("media private key is required")
	errEndpointRequired   = errors.New("media upload endpoint is required")
	errLoggerRequired     = errors.New("media logger is required")
)

// UploadParams describe a single file upload to the media host.
type UploadParams struct {
	FileName string
	Folder   string
	Content  io.Reader
}

// UploadResult is the media host's record of a stored file.
type UploadResult struct {
	FileID   string `json:"fileId"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	FilePath string `json:"filePath"`
}

// Uploader stores media files remotely. Satisfied by *Client and test fakes.
type Uploader interface {
	Upload(ctx context.Context, params UploadParams) (*UploadResult, error)
}

// Client talks to the remote media host (book covers) over its HTTP API.
type Client struct {
	httpClient     *http.Client
	uploadEndpoint string
	urlEndpoint    string
	privateKey     string
	logger         *logger.Logger
}

// NewClient initializes the media wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MediaConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	endpoint := strings.TrimSpace(cfg.UploadEndpoint)
	if endpoint == "" {
		return nil, errEndpointRequired
	}

	privateKey := strings.TrimSpace(cfg.PrivateKey)
	if privateKey == "" {
		return nil, errPrivateKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		uploadEndpoint: endpoint,
		urlEndpoint:    strings.TrimSpace(cfg.URLEndpoint),
		privateKey:     privateKey,
		logger:         logg,
	}

	logg.Info(ctx, "media client initialized")
	return c, nil
}

// Upload stores a single file and returns the hosted URL.
func (c *Client) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	if c == nil || c.httpClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "media client not initialized")
	}

	fileName := strings.TrimSpace(params.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if params.Content == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file content is required")
	}

	body := &strings.Builder{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building upload form")
	}
	if _, err := io.Copy(part, params.Content); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading upload content")
	}
	if err := writer.WriteField("fileName", fileName); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building upload form")
	}
	if folder := strings.TrimSpace(params.Folder); folder != "" {
		if err := writer.WriteField("folder", folder); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building upload form")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadEndpoint, strings.NewReader(body.String()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building upload request")
	}
	// The media host authenticates with the private key as the basic-auth user.
	req.SetBasicAuth(c.privateKey, "")
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError(ctx, fileName, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "media upload failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		uploadErr := fmt.Errorf("media host returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		c.logError(ctx, fileName, uploadErr)
		return nil, pkgerrors.Wrap(codeForStatus(resp.StatusCode), uploadErr, "media upload failed")
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding upload response")
	}

	ctx = c.logger.WithFields(ctx, map[string]any{"file_name": fileName, "file_id": result.FileID})
	c.logger.Info(ctx, "media file uploaded")
	return &result, nil
}

// Ping verifies the media host accepts our credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("media client not initialized")
	}
	if c.urlEndpoint == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.urlEndpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.privateKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("media host rejected credentials: %s", resp.Status)
	}
	return nil
}

func (c *Client) logError(ctx context.Context, fileName string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{"file_name": fileName})
	c.logger.Error(ctx, "media upload", err)
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		return pkgerrors.CodeDependency
	}
}
