package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"meetingrec/internal/audio"
	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
)

const maxErrorBody = 512

// formOverhead is reserved out of MaxUploadBytes for the multipart fields
// that travel with the audio file.
const formOverhead = 2048

// SupportedFormats lists the file extensions the API accepts.
var SupportedFormats = map[string]bool{
	".mp3":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".m4a":  true,
	".wav":  true,
	".webm": true,
}

// Options configures the transcription API client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	Temperature    float64
	AttemptTimeout time.Duration
	MaxUploadBytes int64
	ChunkSpan      time.Duration
	TempDir        string
	Retry          RetryConfig
}

// Client submits finalized audio to an OpenAI-compatible /audio/transcriptions
// endpoint and validates the verbose_json response.
type Client struct {
	http   *http.Client
	opts   Options
	logger *zap.Logger
}

func NewClient(httpClient *http.Client, opts Options, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Model == "" {
		opts.Model = "whisper-1"
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Minute
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if opts.ChunkSpan < time.Second {
		opts.ChunkSpan = 10 * time.Minute
	}
	opts.Retry = opts.Retry.normalized()
	if logger == nil {
		logger = logging.L("transcription")
	}
	return &Client{http: httpClient, opts: opts, logger: logger}
}

// Transcribe uploads the artifact, splitting oversized wav files into chunks
// and reassembling them by offset.
func (c *Client) Transcribe(ctx context.Context, artifact domain.AudioArtifact) (domain.Transcript, error) {
	if !artifact.Finalized {
		return domain.Transcript{}, domain.Errorf(domain.ErrorKindArtifactNotReady, "transcribe", "%s is still being written", artifact.Path)
	}
	ext := strings.ToLower(filepath.Ext(artifact.Path))
	if !SupportedFormats[ext] {
		return domain.Transcript{}, domain.Errorf(domain.ErrorKindTranscriptionPermanent, "transcribe", "unsupported audio format %q", ext)
	}
	info, err := os.Stat(artifact.Path)
	if err != nil {
		return domain.Transcript{}, domain.E(domain.ErrorKindArtifactNotReady, "transcribe", err)
	}

	if info.Size()+formOverhead <= c.opts.MaxUploadBytes {
		resp, err := c.submit(ctx, artifact.Path)
		if err != nil {
			return domain.Transcript{}, err
		}
		return buildTranscript(resp, c.opts.Model, artifact.Duration), nil
	}

	if ext != ".wav" {
		return domain.Transcript{}, domain.Errorf(domain.ErrorKindTranscriptionPermanent, "transcribe",
			"file too large: %d bytes exceeds %d byte upload limit", info.Size(), c.opts.MaxUploadBytes)
	}
	return c.transcribeChunked(ctx, artifact)
}

func (c *Client) transcribeChunked(ctx context.Context, artifact domain.AudioArtifact) (domain.Transcript, error) {
	dir, err := os.MkdirTemp(c.opts.TempDir, "meetingrec-chunks-")
	if err != nil {
		return domain.Transcript{}, domain.E(domain.ErrorKindIOFailure, "transcribe.chunk", err)
	}
	defer os.RemoveAll(dir)

	chunks, err := audio.SplitWAV(artifact.Path, dir, c.opts.ChunkSpan, c.opts.MaxUploadBytes-formOverhead)
	if err != nil {
		return domain.Transcript{}, domain.E(domain.ErrorKindTranscriptionPermanent, "transcribe.chunk", err)
	}
	c.logger.Info("transcribing in chunks", zap.String(logging.KeyPath, artifact.Path), zap.Int("chunks", len(chunks)))

	parts := make([]chunkResult, 0, len(chunks))
	for i, chunk := range chunks {
		resp, err := c.submit(ctx, chunk.Path)
		if err != nil {
			return domain.Transcript{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		parts = append(parts, chunkResult{
			offset:     chunk.Offset,
			transcript: buildTranscript(resp, c.opts.Model, 0),
		})
	}
	return mergeChunks(parts, c.opts.Model, artifact.Duration), nil
}

// submit uploads one file, retrying transient failures up to MaxAttempts total.
func (c *Client) submit(ctx context.Context, path string) (apiResponse, error) {
	retry := c.opts.Retry
	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := retry.backoff(attempt)
			c.logger.Debug("retrying transcription",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return apiResponse{}, domain.E(domain.ErrorKindTranscriptionPermanent, "transcribe", err)
			}
		}

		resp, err := c.attempt(ctx, path)
		if err == nil {
			return resp, nil
		}
		if domain.KindOf(err) != domain.ErrorKindTranscriptionTransient {
			return apiResponse{}, err
		}
		lastErr = err
		c.logger.Warn("transcription attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	return apiResponse{}, domain.E(domain.ErrorKindTranscriptionPermanent, "transcribe",
		fmt.Errorf("giving up after %d attempts: %w", retry.MaxAttempts, lastErr))
}

func (c *Client) attempt(ctx context.Context, path string) (apiResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
	defer cancel()

	body, contentType := c.form(path)
	defer body.Close()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.opts.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return apiResponse{}, domain.E(domain.ErrorKindTranscriptionPermanent, "transcribe.request", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apiResponse{}, domain.E(domain.ErrorKindTranscriptionPermanent, "transcribe.request", ctx.Err())
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return apiResponse{}, domain.E(domain.ErrorKindIOFailure, "transcribe.request", err)
		}
		return apiResponse{}, domain.E(domain.ErrorKindTranscriptionTransient, "transcribe.request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return apiResponse{}, domain.E(domain.ErrorKindTranscriptionPermanent, "transcribe.response", ctx.Err())
		}
		return apiResponse{}, domain.E(domain.ErrorKindTranscriptionTransient, "transcribe.response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodeResponse(data)
	case isRetryableStatus(resp.StatusCode):
		return apiResponse{}, domain.E(domain.ErrorKindTranscriptionTransient, "transcribe.response", statusError(resp.StatusCode, data))
	default:
		return apiResponse{}, domain.E(domain.ErrorKindTranscriptionPermanent, "transcribe.response", statusError(resp.StatusCode, data))
	}
}

// form streams the multipart body so the audio file is never held in memory.
func (c *Client) form(path string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(c.writeForm(writer, path))
	}()
	return pr, writer.FormDataContentType()
}

func (c *Client) writeForm(writer *multipart.Writer, path string) error {
	fields := [][2]string{
		{"model", c.opts.Model},
		{"response_format", "verbose_json"},
		{"temperature", strconv.FormatFloat(c.opts.Temperature, 'f', -1, 64)},
	}
	if c.opts.Language != "" {
		fields = append(fields, [2]string{"language", c.opts.Language})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	if err := writer.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return writer.Close()
}

func statusError(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		return fmt.Errorf("transcription API error (HTTP %d)", code)
	}
	return fmt.Errorf("transcription API error (HTTP %d): %s", code, msg)
}
