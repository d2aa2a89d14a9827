package webhook

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"mime"

	"quizgen-service/internal/app"
)

const (
	readChunkSize = 4096
	progressEvent = "progress"
)

// stream turns a response body into app.Chunks. Event-stream responses mark
// "progress" events as side-channel chunks; any other body is passed through
// as raw reads.
type stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	sse    bool
	event  string
	done   bool
}

func newStream(body io.ReadCloser, contentType string) *stream {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	return &stream{
		body:   body,
		reader: bufio.NewReaderSize(body, readChunkSize),
		sse:    mediaType == "text/event-stream",
	}
}

func (s *stream) Next() (app.Chunk, error) {
	if s.done {
		return app.Chunk{}, io.EOF
	}
	if s.sse {
		return s.nextEvent()
	}
	buf := make([]byte, readChunkSize)
	n, err := s.reader.Read(buf)
	if n > 0 {
		return app.Chunk{Data: buf[:n]}, nil
	}
	if errors.Is(err, io.EOF) {
		s.done = true
	}
	if err == nil {
		return s.Next()
	}
	return app.Chunk{}, err
}

// nextEvent returns the next data line. Data lines of progress events become
// progress chunks; all other data lines are body text.
func (s *stream) nextEvent() (app.Chunk, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
			}
			return app.Chunk{}, err
		}
		line = bytes.TrimRight(line, "\r\n")

		switch {
		case len(line) == 0:
			s.event = ""
		case line[0] == ':':
			// comment / keep-alive
		case bytes.HasPrefix(line, []byte("event:")):
			s.event = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := bytes.TrimPrefix(line[len("data:"):], []byte(" "))
			if s.event == progressEvent {
				return app.Chunk{Progress: true, Data: append([]byte(nil), data...)}, nil
			}
			out := make([]byte, 0, len(data)+1)
			out = append(out, data...)
			out = append(out, '\n')
			return app.Chunk{Data: out}, nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
			}
			return app.Chunk{}, err
		}
	}
}

func (s *stream) Close() error {
	return s.body.Close()
}
