package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"qupload/internal/config"
	"qupload/internal/logging"
	"qupload/internal/queue"
	"qupload/internal/services"
)

// HTTPDoer describes the HTTP client used by the upload transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client uploads stimulus files to the study backend over HTTP multipart.
type Client struct {
	endpoint string
	token    string
	client   HTTPDoer
	logger   *slog.Logger
}

var _ Adapter = (*Client)(nil)

// NewClient constructs an HTTP transport from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClientWithDoer(cfg.Upload.Endpoint, cfg.Upload.Token, &http.Client{Timeout: cfg.RequestTimeout()}, logger)
}

// NewClientWithDoer constructs an HTTP transport with a custom HTTP client
// (used in tests).
func NewClientWithDoer(endpoint, token string, client HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		token:    strings.TrimSpace(token),
		client:   client,
		logger:   logging.NewComponentLogger(logger, "transport"),
	}
}

// apiError is the backend's error reply shape.
type apiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Upload sends one file as a multipart POST and reports progress from the
// bytes consumed off the local file. Failures are classified: network faults
// and 5xx replies are transient, 4xx replies are terminal rejections, and
// context cancellation is reported as cancellation, not failure.
func (c *Client) Upload(ctx context.Context, file queue.FileRef, progress ProgressFunc) (*Result, error) {
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, c.logger)

	source, err := os.Open(file.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrRejected, "transport", "open", fmt.Sprintf("cannot read %s", file.Name), err)
	}
	defer source.Close()

	body, contentType := multipartBody(file, newProgressReader(source, file.Size, progress))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transport", "build request", "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if services.IsCanceled(err) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, services.Wrap(services.ErrCanceled, "transport", "upload", file.Name, nil)
		}
		return nil, services.Wrap(services.ErrTransient, "transport", "upload", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.classifyResponse(resp, file)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, services.Wrap(services.ErrTransient, "transport", "decode response", "", err)
	}
	if result.URL == "" {
		return nil, services.Wrap(services.ErrTransient, "transport", "decode response", "reply missing url", nil)
	}

	logger.Debug("upload finished",
		logging.String("file", file.Name),
		logging.String(logging.FieldEventType, "transport_upload_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return &result, nil
}

// UploadBatch sends several files in a single bulk call. Partial failure is
// reported per file in the reply, never as an error.
func (c *Client) UploadBatch(ctx context.Context, files []queue.FileRef) (*BatchResult, error) {
	pipeReader, pipeWriter := io.Pipe()
	writer := multipart.NewWriter(pipeWriter)

	go func() {
		var failed error
		for _, file := range files {
			if failed = writeFilePart(writer, "files", file, nil); failed != nil {
				break
			}
		}
		if failed != nil {
			pipeWriter.CloseWithError(failed)
			return
		}
		pipeWriter.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/batch", pipeReader)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transport", "build request", "", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if services.IsCanceled(err) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, services.Wrap(services.ErrCanceled, "transport", "upload batch", "", nil)
		}
		return nil, services.Wrap(services.ErrTransient, "transport", "upload batch", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.classifyResponse(resp, queue.FileRef{Name: "batch"})
	}

	var result BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, services.Wrap(services.ErrTransient, "transport", "decode response", "", err)
	}
	return &result, nil
}

func (c *Client) classifyResponse(resp *http.Response, file queue.FileRef) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	var reply apiError
	message := ""
	if err := json.Unmarshal(payload, &reply); err == nil && reply.Message != "" {
		message = reply.Message
	} else if trimmed := strings.TrimSpace(string(payload)); trimmed != "" {
		message = trimmed
	} else {
		message = http.StatusText(resp.StatusCode)
	}

	marker := services.ErrRejected
	if resp.StatusCode >= http.StatusInternalServerError {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "transport", "upload",
		fmt.Sprintf("%s: server returned %d: %s", file.Name, resp.StatusCode, message), nil)
}

func multipartBody(file queue.FileRef, source io.Reader) (io.Reader, string) {
	pipeReader, pipeWriter := io.Pipe()
	writer := multipart.NewWriter(pipeWriter)

	go func() {
		if err := writeFilePart(writer, "file", file, source); err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		pipeWriter.CloseWithError(writer.Close())
	}()

	return pipeReader, writer.FormDataContentType()
}

// writeFilePart appends one file part. When source is nil the file is opened
// from its path (bulk uploads stream files sequentially).
func writeFilePart(writer *multipart.Writer, field string, file queue.FileRef, source io.Reader) error {
	part, err := writer.CreateFormFile(field, file.Name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if source == nil {
		handle, err := os.Open(file.Path)
		if err != nil {
			return fmt.Errorf("open %s: %w", file.Name, err)
		}
		defer handle.Close()
		source = handle
	}
	if _, err := io.Copy(part, source); err != nil {
		return fmt.Errorf("copy %s: %w", file.Name, err)
	}
	return nil
}
