package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
)

func params() domain.GenerationParams {
	return domain.GenerationParams{QuestionCount: 5, Difficulty: domain.Hard, QuestionType: domain.TrueFalse}
}

func newTestClient(url string) *Client {
	c := New(Config{URL: url, Timeout: 5 * time.Second, MaxErrorBody: 16}, zerolog.Nop())
	c.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }
	return c
}

func drain(t *testing.T, s app.GenerationStream) (body string, progress []string) {
	t.Helper()
	defer s.Close()
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return body, progress
		}
		require.NoError(t, err)
		if chunk.Progress {
			progress = append(progress, string(chunk.Data))
			continue
		}
		body += string(chunk.Data)
	}
}

func TestSendFilesBuildsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		files := r.MultipartForm.File["file"]
		if !assert.Len(t, files, 2) {
			return
		}
		assert.Equal(t, "notes.pdf", files[0].Filename)
		assert.Equal(t, "application/pdf", files[0].Header.Get("Content-Type"))
		assert.Equal(t, "talk.mp3", files[1].Filename)
		f, err := files[0].Open()
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.7", string(content))

		assert.Equal(t, "2", r.FormValue("fileCount"))
		assert.Equal(t, "5", r.FormValue("questionCount"))
		assert.Equal(t, "hard", r.FormValue("difficulty"))
		assert.Equal(t, "true_false", r.FormValue("questionType"))
		assert.Equal(t, "2026-10-15T09:30:00.000Z", r.FormValue("timestamp"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"questions":[]}`))
	}))
	defer srv.Close()

	files := []app.SourceFile{
		{Name: "notes.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF-1.7")},
		{Name: "talk.mp3", ContentType: "audio/mpeg", Content: strings.NewReader("ID3")},
	}
	stream, err := newTestClient(srv.URL).SendFiles(context.Background(), files, params())
	require.NoError(t, err)

	body, progress := drain(t, stream)
	assert.Equal(t, `{"success":true,"questions":[]}`, body)
	assert.Empty(t, progress)
}

func TestSendTextPostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&got)) {
			return
		}
		assert.Equal(t, "photosynthesis", got["text"])
		assert.Equal(t, "bio.pdf", got["filename"])
		assert.Equal(t, "generate_quiz", got["requestType"])
		assert.Equal(t, float64(5), got["questionCount"])
		assert.Equal(t, "hard", got["difficulty"])
		assert.Equal(t, "true_false", got["questionType"])
		assert.Equal(t, "2026-10-15T09:30:00.000Z", got["timestamp"])
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	stream, err := newTestClient(srv.URL).SendText(context.Background(), "photosynthesis", "bio.pdf", params())
	require.NoError(t, err)
	body, _ := drain(t, stream)
	assert.Equal(t, `[]`, body)
}

func TestNon2xxIsTransportFailureWithTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendText(context.Background(), "t", "f.pdf", params())
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, domain.TransportFailure, genErr.Kind)
	assert.Equal(t, http.StatusBadGateway, genErr.StatusCode)
	assert.Len(t, genErr.Body, 16)
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestUnreachableServerIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).SendText(context.Background(), "t", "f.pdf", params())
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestEventStreamSeparatesProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, part := range []string{
			": keep-alive\n\n",
			"event: progress\ndata: extracting text\n\n",
			"event: progress\ndata: generating questions\n\n",
			"data: {\"success\":true,\n",
			"data: \"questions\":[]}\n\n",
		} {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	stream, err := newTestClient(srv.URL).SendText(context.Background(), "t", "f.pdf", params())
	require.NoError(t, err)
	body, progress := drain(t, stream)

	assert.Equal(t, []string{"extracting text", "generating questions"}, progress)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, true, decoded["success"])
}

func TestEmptyBodyYieldsNoChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stream, err := newTestClient(srv.URL).SendText(context.Background(), "t", "f.pdf", params())
	require.NoError(t, err)
	body, progress := drain(t, stream)
	assert.Empty(t, body)
	assert.Empty(t, progress)
}
