package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"quizgen-service/internal/domain"
	"quizgen-service/internal/normalize"
)

// SourceFile is one uploaded document forwarded to the generation service.
type SourceFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Chunk is one unit delivered by a generation stream. Progress chunks are
// side-channel text and never part of the response body.
type Chunk struct {
	Progress bool
	Data     []byte
}

// GenerationStream yields chunks until io.EOF signals transport completion.
type GenerationStream interface {
	Next() (Chunk, error)
	Close() error
}

// GenerationTransport issues the single external generation call. Non-2xx
// responses are reported as *domain.GenerationError of kind TransportFailure.
type GenerationTransport interface {
	SendFiles(ctx context.Context, files []SourceFile, params domain.GenerationParams) (GenerationStream, error)
	SendText(ctx context.Context, text, filename string, params domain.GenerationParams) (GenerationStream, error)
}

// Generator orchestrates one generation request into an AssessmentDraft.
// It never retries; a failed request is a single reported failure.
type Generator struct {
	transport   GenerationTransport
	normalizer  *normalize.Normalizer
	validate    *validator.Validate
	allowedExts map[string]struct{}
	log         zerolog.Logger
}

// DefaultAllowedExtensions are accepted when no explicit list is configured.
// Audio uploads are admitted by content type regardless of extension.
var DefaultAllowedExtensions = []string{".pdf", ".pptx", ".docx"}

func NewGenerator(transport GenerationTransport, normalizer *normalize.Normalizer, allowedExts []string, log zerolog.Logger) *Generator {
	if len(allowedExts) == 0 {
		allowedExts = DefaultAllowedExtensions
	}
	exts := make(map[string]struct{}, len(allowedExts))
	for _, ext := range allowedExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &Generator{
		transport:   transport,
		normalizer:  normalizer,
		validate:    validator.New(),
		allowedExts: exts,
		log:         log.With().Str("component", "generator").Logger(),
	}
}

// GenerateFromFiles sends every file in a single multipart request.
func (g *Generator) GenerateFromFiles(ctx context.Context, files []SourceFile, params domain.GenerationParams, progress *ProgressLog) (domain.AssessmentDraft, error) {
	if err := g.checkParams(params); err != nil {
		return domain.AssessmentDraft{}, err
	}
	if len(files) == 0 {
		return domain.AssessmentDraft{}, domain.ErrNoSourceFiles
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if !g.admit(f) {
			return domain.AssessmentDraft{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFile, f.Name)
		}
		names = append(names, f.Name)
	}

	g.log.Info().
		Int("files", len(files)).
		Int("question_count", params.QuestionCount).
		Str("difficulty", string(params.Difficulty)).
		Str("question_type", string(params.QuestionType)).
		Msg("requesting generation")

	stream, err := g.transport.SendFiles(ctx, files, params)
	if err != nil {
		return domain.AssessmentDraft{}, g.transportError(ctx, err)
	}
	return g.finish(ctx, stream, params, names, progress)
}

// GenerateFromText is the lighter path for text that was already extracted.
func (g *Generator) GenerateFromText(ctx context.Context, text, filename string, params domain.GenerationParams, progress *ProgressLog) (domain.AssessmentDraft, error) {
	if err := g.checkParams(params); err != nil {
		return domain.AssessmentDraft{}, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.AssessmentDraft{}, fmt.Errorf("%w: text is empty", domain.ErrInvalidGenerationParams)
	}

	g.log.Info().
		Int("text_length", len(text)).
		Str("filename", filename).
		Str("question_type", string(params.QuestionType)).
		Msg("requesting generation from text")

	stream, err := g.transport.SendText(ctx, text, filename, params)
	if err != nil {
		return domain.AssessmentDraft{}, g.transportError(ctx, err)
	}
	return g.finish(ctx, stream, params, []string{filename}, progress)
}

func (g *Generator) finish(ctx context.Context, stream GenerationStream, params domain.GenerationParams, names []string, progress *ProgressLog) (domain.AssessmentDraft, error) {
	body, err := g.collect(ctx, stream, progress)
	if err != nil {
		return domain.AssessmentDraft{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		g.log.Warn().Msg("generation service returned an empty body")
		return domain.AssessmentDraft{}, &domain.GenerationError{Kind: domain.EmptyResponse}
	}

	questions, err := g.normalizer.NormalizeBody(body, params.QuestionType)
	if err != nil {
		g.log.Warn().Err(err).Int("body_bytes", len(body)).Msg("normalization failed")
		return domain.AssessmentDraft{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.AssessmentDraft{}, err
	}

	title, description := params.Title, params.Description
	if strings.TrimSpace(title) == "" {
		title = titleFromFilenames(names)
	}
	if strings.TrimSpace(description) == "" {
		description = descriptionFromFilenames(names)
	}
	g.log.Info().Int("questions", len(questions)).Msg("generation complete")
	return domain.AssessmentDraft{Title: title, Description: description, Questions: questions}, nil
}

// collect drains the stream in arrival order. Only a completed stream is
// returned; partial bodies are discarded on any error.
func (g *Generator) collect(ctx context.Context, stream GenerationStream, progress *ProgressLog) ([]byte, error) {
	defer stream.Close()

	var body bytes.Buffer
	chunks := 0
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, g.transportError(ctx, err)
		}
		chunks++
		progress.Append(string(chunk.Data))
		if !chunk.Progress {
			body.Write(chunk.Data)
		}
	}
	g.log.Debug().Int("chunks", chunks).Int("body_bytes", body.Len()).Msg("stream complete")
	return body.Bytes(), nil
}

func (g *Generator) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		g.log.Info().Msg("generation canceled")
		return ctxErr
	}
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		g.log.Warn().Int("status", genErr.StatusCode).Msg("generation transport failed")
		return genErr
	}
	g.log.Warn().Err(err).Msg("generation transport failed")
	return &domain.GenerationError{Kind: domain.TransportFailure, Err: err}
}

func (g *Generator) checkParams(params domain.GenerationParams) error {
	if err := g.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidGenerationParams, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidGenerationParams, err)
	}
	return nil
}

func (g *Generator) admit(f SourceFile) bool {
	if strings.HasPrefix(strings.ToLower(f.ContentType), "audio/") {
		return true
	}
	_, ok := g.allowedExts[strings.ToLower(filepath.Ext(f.Name))]
	return ok
}

func titleFromFilenames(names []string) string {
	if len(names) == 0 || strings.TrimSpace(names[0]) == "" {
		return "Untitled quiz"
	}
	base := filepath.Base(names[0])
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = "Untitled quiz"
	}
	r, size := utf8.DecodeRuneInString(base)
	title := string(unicode.ToUpper(r)) + base[size:]
	if len(names) > 1 {
		title = fmt.Sprintf("%s (+%d more)", title, len(names)-1)
	}
	return title
}

func descriptionFromFilenames(names []string) string {
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, filepath.Base(n))
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "Quiz generated from " + strings.Join(kept, ", ")
}
