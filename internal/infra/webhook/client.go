// Package webhook talks to the external quiz generation workflow over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
)

const (
	// DefaultMaxErrorBody bounds how much of a failed response is kept for diagnostics.
	DefaultMaxErrorBody = 512
	requestTypeQuiz     = "generate_quiz"
	timestampLayout     = "2006-01-02T15:04:05.000Z07:00"
)

type Config struct {
	URL          string
	Timeout      time.Duration
	MaxErrorBody int
}

// Client implements app.GenerationTransport. It issues exactly one request
// per call and never retries.
type Client struct {
	http         *http.Client
	url          string
	maxErrorBody int
	now          func() time.Time
	log          zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	h := &http.Client{}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	maxBody := cfg.MaxErrorBody
	if maxBody <= 0 {
		maxBody = DefaultMaxErrorBody
	}
	return &Client{
		http:         h,
		url:          cfg.URL,
		maxErrorBody: maxBody,
		now:          time.Now,
		log:          log.With().Str("component", "webhook").Logger(),
	}
}

// SendFiles uploads every file in one multipart request together with the
// generation parameters as flat fields.
func (c *Client) SendFiles(ctx context.Context, files []app.SourceFile, params domain.GenerationParams) (app.GenerationStream, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(c.writeMultipart(mw, files, params))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json, text/event-stream")
	return c.do(req, len(files))
}

func (c *Client) writeMultipart(mw *multipart.Writer, files []app.SourceFile, params domain.GenerationParams) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(f.Name)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
		}
	}
	fields := [][2]string{
		{"fileCount", strconv.Itoa(len(files))},
		{"questionCount", strconv.Itoa(params.QuestionCount)},
		{"difficulty", string(params.Difficulty)},
		{"questionType", string(params.QuestionType)},
		{"timestamp", c.timestamp()},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}

type textRequest struct {
	Text          string `json:"text"`
	Filename      string `json:"filename"`
	Timestamp     string `json:"timestamp"`
	RequestType   string `json:"requestType"`
	QuestionCount int    `json:"questionCount"`
	Difficulty    string `json:"difficulty"`
	QuestionType  string `json:"questionType"`
}

// SendText posts already extracted text as JSON.
func (c *Client) SendText(ctx context.Context, text, filename string, params domain.GenerationParams) (app.GenerationStream, error) {
	body, err := json.Marshal(textRequest{
		Text:          text,
		Filename:      filename,
		Timestamp:     c.timestamp(),
		RequestType:   requestTypeQuiz,
		QuestionCount: params.QuestionCount,
		Difficulty:    string(params.Difficulty),
		QuestionType:  string(params.QuestionType),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	return c.do(req, 0)
}

func (c *Client) do(req *http.Request, files int) (app.GenerationStream, error) {
	start := c.now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.GenerationError{Kind: domain.TransportFailure, Err: err}
	}
	c.log.Info().
		Int("status", res.StatusCode).
		Int("files", files).
		Dur("elapsed", c.now().Sub(start)).
		Msg("generation response")

	if res.StatusCode/100 != 2 {
		defer res.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(res.Body, int64(c.maxErrorBody)))
		return nil, &domain.GenerationError{
			Kind:       domain.TransportFailure,
			StatusCode: res.StatusCode,
			Body:       string(raw),
		}
	}
	return newStream(res.Body, res.Header.Get("Content-Type")), nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(timestampLayout)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
