package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
)

const defaultMaxUploadMB = 50

// Generator produces drafts from uploaded sources.
type Generator interface {
	GenerateFromFiles(ctx context.Context, files []app.SourceFile, params domain.GenerationParams, progress *app.ProgressLog) (domain.AssessmentDraft, error)
	GenerateFromText(ctx context.Context, text, filename string, params domain.GenerationParams, progress *app.ProgressLog) (domain.AssessmentDraft, error)
}

// Drafts saves validated drafts and resolves access codes.
type Drafts interface {
	Save(ctx context.Context, ownerID string, draft domain.AssessmentDraft) (domain.SavedQuiz, error)
	ResolveAccessCode(ctx context.Context, code string) (string, error)
}

// ResultReader lists stored results of a quiz.
type ResultReader interface {
	Results(ctx context.Context, quizID string) ([]domain.Result, error)
}

// API serves the REST endpoints.
type API struct {
	generator   Generator
	drafts      Drafts
	results     ResultReader
	validate    *validator.Validate
	maxUploadMB int
	log         zerolog.Logger
}

func NewAPI(generator Generator, drafts Drafts, results ResultReader, maxUploadMB int, log zerolog.Logger) *API {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	return &API{
		generator:   generator,
		drafts:      drafts,
		results:     results,
		validate:    validator.New(),
		maxUploadMB: maxUploadMB,
		log:         log.With().Str("component", "api").Logger(),
	}
}

// NewRouter mounts the REST and websocket handlers.
func NewRouter(api *API, attempts *WSHandler, monitor *MonitorHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/generate", api.GenerateFromFiles)
	mux.HandleFunc("POST /api/generate/text", api.GenerateFromText)
	mux.HandleFunc("POST /api/quizzes", api.SaveQuiz)
	mux.HandleFunc("GET /api/access/{code}", api.ResolveAccessCode)
	mux.HandleFunc("GET /api/quizzes/{id}/results", api.ListResults)
	mux.HandleFunc("GET /ws/attempt", attempts.ServeWS)
	mux.HandleFunc("GET /ws/monitor", monitor.ServeWS)
	return mux
}

type generateResponse struct {
	Draft    domain.AssessmentDraft `json:"draft"`
	Progress []string               `json:"progress"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// GenerateFromFiles accepts a multipart upload with one or more "file" parts.
func (a *API) GenerateFromFiles(w http.ResponseWriter, r *http.Request) {
	limit := int64(a.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: "invalid multipart body: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	params, err := paramsFromForm(r.MultipartForm)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: err.Error()})
		return
	}

	headers := r.MultipartForm.File["file"]
	files := make([]app.SourceFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: "unreadable file " + fh.Filename})
			return
		}
		defer f.Close()
		files = append(files, app.SourceFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}

	progress := app.NewProgressLog()
	draft, err := a.generator.GenerateFromFiles(r.Context(), files, params, progress)
	if err != nil {
		a.writeGenerationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Draft: draft, Progress: progress.Lines()})
}

type generateTextRequest struct {
	Text          string              `json:"text" validate:"required"`
	Filename      string              `json:"filename"`
	QuestionCount int                 `json:"questionCount"`
	Difficulty    domain.Difficulty   `json:"difficulty"`
	QuestionType  domain.QuestionType `json:"questionType"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
}

func (a *API) GenerateFromText(w http.ResponseWriter, r *http.Request) {
	var req generateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: "invalid JSON body"})
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: "text is required"})
		return
	}
	params := domain.GenerationParams{
		QuestionCount: req.QuestionCount,
		Difficulty:    req.Difficulty,
		QuestionType:  req.QuestionType,
		Title:         req.Title,
		Description:   req.Description,
	}

	progress := app.NewProgressLog()
	draft, err := a.generator.GenerateFromText(r.Context(), req.Text, req.Filename, params, progress)
	if err != nil {
		a.writeGenerationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Draft: draft, Progress: progress.Lines()})
}

type saveQuizRequest struct {
	OwnerID string                 `json:"ownerId" validate:"required"`
	Draft   domain.AssessmentDraft `json:"draft"`
}

type validationResponse struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// SaveQuiz runs the editor validation and stores the draft.
func (a *API) SaveQuiz(w http.ResponseWriter, r *http.Request) {
	var req saveQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: "invalid JSON body"})
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: "ownerId is required"})
		return
	}

	saved, err := a.drafts.Save(r.Context(), req.OwnerID, req.Draft)
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Index: verr.Index, Reason: verr.Reason})
	case err != nil:
		a.log.Error().Err(err).Msg("save quiz failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: "could not save quiz"})
	default:
		writeJSON(w, http.StatusCreated, saved)
	}
}

func (a *API) ResolveAccessCode(w http.ResponseWriter, r *http.Request) {
	id, err := a.drafts.ResolveAccessCode(r.Context(), r.PathValue("code"))
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Kind: "not_found", Message: "no quiz with that access code"})
	case err != nil:
		a.log.Error().Err(err).Msg("resolve access code failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: "lookup failed"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	}
}

func (a *API) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.results.Results(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Kind: "not_found", Message: err.Error()})
	case err != nil:
		a.log.Error().Err(err).Msg("list results failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: "could not load results"})
	default:
		if results == nil {
			results = []domain.Result{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func (a *API) writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	var genErr *domain.GenerationError
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		a.log.Info().Msg("client went away during generation")
	case errors.As(err, &genErr):
		status := http.StatusUnprocessableEntity
		if genErr.Kind == domain.TransportFailure {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Kind: string(genErr.Kind), Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidGenerationParams),
		errors.Is(err, domain.ErrNoSourceFiles),
		errors.Is(err, domain.ErrUnsupportedFile):
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Message: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Kind: string(domain.TransportFailure), Message: err.Error()})
	default:
		a.log.Error().Err(err).Msg("generation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: "generation failed"})
	}
}

func paramsFromForm(form *multipart.Form) (domain.GenerationParams, error) {
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}
	params := domain.GenerationParams{
		Difficulty:   domain.Difficulty(value("difficulty")),
		QuestionType: domain.QuestionType(value("questionType")),
		Title:        value("title"),
		Description:  value("description"),
	}
	if raw := value("questionCount"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return params, errors.New("questionCount must be a whole number")
		}
		params.QuestionCount = n
	}
	return params, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
