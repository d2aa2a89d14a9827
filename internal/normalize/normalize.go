// Package normalize turns the loosely-shaped payloads returned by the
// generation service into canonical questions.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"quizgen-service/internal/domain"
)

// naOption marks a wrapped-shape option slot that does not exist.
const naOption = "N/A"

// optionKeys is the order in which wrapped-shape named options are read.
var optionKeys = []string{"A", "B", "C", "D"}

// Normalizer converts decoded response bodies into canonical questions.
type Normalizer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log.With().Str("component", "normalizer").Logger()}
}

// rawQuestion holds the fields extracted from either shape before re-typing.
type rawQuestion struct {
	prompt      string
	options     []string
	optionsSent bool
	answer      string
	explanation string
	typeHint    string
}

// Decode parses a complete response body. Numbers are kept as json.Number so
// numeric answers keep their original spelling.
func Decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// NormalizeBody decodes body and normalizes it. A body that is not JSON is
// reported as an unrecognized shape.
func (n *Normalizer) NormalizeBody(body []byte, requested domain.QuestionType) ([]domain.Question, error) {
	decoded, err := Decode(body)
	if err != nil {
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: "body is not valid JSON", Err: err}
	}
	return n.Normalize(decoded, requested)
}

// Normalize maps a decoded body to canonical questions, falling back to
// requested whenever a question carries no usable type hint. Malformed
// questions are dropped; the call fails only if none survive.
func (n *Normalizer) Normalize(body any, requested domain.QuestionType) ([]domain.Question, error) {
	raws, err := extract(body)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Question, 0, len(raws))
	degraded := 0
	for i, raw := range raws {
		q := shape(raw, retype(raw.typeHint, requested))
		if !raw.optionsSent && isPlaceholder(q) {
			// Kept so the editor can flag it; validation blocks saving until options are filled.
			degraded++
			n.log.Info().Int("index", i).Msg("multiple choice question has no options, using blank template")
			out = append(out, q)
			continue
		}
		if err := q.Validate(); err != nil {
			n.log.Warn().Int("index", i).Str("type", string(q.Type)).Err(err).Msg("dropping malformed question")
			continue
		}
		out = append(out, q)
	}

	if len(out) == 0 {
		return nil, &domain.GenerationError{
			Kind:    domain.NoValidQuestions,
			Message: fmt.Sprintf("all %d questions were malformed", len(raws)),
		}
	}
	n.log.Debug().Int("received", len(raws)).Int("kept", len(out)).Int("degraded", degraded).Msg("normalized questions")
	return out, nil
}

// extract detects the payload shape structurally and pulls out raw fields.
func extract(body any) ([]rawQuestion, error) {
	switch v := body.(type) {
	case []any:
		return extractWrapped(v)
	case map[string]any:
		return extractDirect(v)
	default:
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: fmt.Sprintf("unexpected top-level %s", jsonKind(body))}
	}
}

func extractWrapped(arr []any) ([]rawQuestion, error) {
	if len(arr) == 0 {
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: "empty array"}
	}
	first, ok := arr[0].(map[string]any)
	if !ok {
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: "array element is not an object"}
	}
	output, ok := first["output"].(map[string]any)
	if !ok {
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: "missing output.questions"}
	}
	items, ok := output["questions"].([]any)
	if !ok {
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: "missing output.questions"}
	}

	raws := make([]rawQuestion, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			// Keep positional indices stable in logs; an empty raw is dropped later.
			raws = append(raws, rawQuestion{})
			continue
		}
		options, named, sent := readOptions(obj["options"])
		raws = append(raws, rawQuestion{
			prompt:      stringField(obj, "question"),
			options:     options,
			optionsSent: sent,
			answer:      resolveAnswer(obj["correct_answer"], named),
			explanation: stringField(obj, "explanation"),
			typeHint:    typeHint(obj),
		})
	}
	return raws, nil
}

func extractDirect(obj map[string]any) ([]rawQuestion, error) {
	items, hasQuestions := obj["questions"].([]any)
	if !truthy(obj["success"]) {
		msg := firstNonEmpty(stringField(obj, "error"), stringField(obj, "message"))
		if msg == "" {
			msg = "response is neither the direct nor the wrapped shape"
			if _, present := obj["success"]; present {
				msg = "service reported an unsuccessful response"
			}
		}
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: msg}
	}
	if !hasQuestions {
		return nil, &domain.GenerationError{Kind: domain.UnrecognizedShape, Message: "missing questions array"}
	}

	raws := make([]rawQuestion, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			raws = append(raws, rawQuestion{})
			continue
		}
		options, named, sent := readOptions(obj["options"])
		answer := resolveAnswer(obj["answer"], named)
		if answer == "" {
			answer = resolveAnswer(obj["correct_answer"], named)
		}
		raws = append(raws, rawQuestion{
			prompt:      stringField(obj, "question"),
			options:     options,
			optionsSent: sent,
			answer:      answer,
			explanation: stringField(obj, "explanation"),
			typeHint:    typeHint(obj),
		})
	}
	return raws, nil
}

// readOptions accepts either an ordered list or the A..D named map. Sent
// entries are kept after trimming, blanks included, so that a broken option
// list fails validation instead of being repaired. For the map form only
// absent keys and N/A slots are skipped, and the surviving key to text lookup
// is returned as well. sent reports whether the source supplied any option
// entries at all.
func readOptions(v any) (options []string, named map[string]string, sent bool) {
	switch opts := v.(type) {
	case []any:
		out := make([]string, 0, len(opts))
		for _, o := range opts {
			s, _ := scalarString(o)
			out = append(out, s)
		}
		return out, nil, len(opts) > 0
	case map[string]any:
		out := make([]string, 0, len(optionKeys))
		named := make(map[string]string, len(optionKeys))
		for _, key := range optionKeys {
			raw, ok := opts[key]
			if !ok || raw == nil {
				continue
			}
			s, _ := scalarString(raw)
			if s == naOption {
				continue
			}
			out = append(out, s)
			named[key] = s
		}
		return out, named, len(opts) > 0
	}
	return nil, nil, false
}

// resolveAnswer maps booleans to True/False, option letters to option text,
// and passes anything else through as a literal answer.
func resolveAnswer(v any, named map[string]string) string {
	switch a := v.(type) {
	case bool:
		if a {
			return domain.AnswerTrue
		}
		return domain.AnswerFalse
	case nil:
		return ""
	}
	s, _ := scalarString(v)
	if text, ok := named[s]; ok {
		return text
	}
	if text, ok := named[strings.ToUpper(s)]; ok && len(s) == 1 {
		return text
	}
	return s
}

func typeHint(obj map[string]any) string {
	for _, key := range []string{"type", "question_type", "questionType"} {
		if s := stringField(obj, key); s != "" {
			return s
		}
	}
	return ""
}

func stringField(obj map[string]any, key string) string {
	s, _ := scalarString(obj[key])
	return s
}

// scalarString renders strings, numbers and booleans as trimmed text.
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case json.Number:
		return s.String(), true
	case float64:
		return fmt.Sprint(s), true
	case bool:
		if s {
			return domain.AnswerTrue, true
		}
		return domain.AnswerFalse, true
	}
	return "", false
}

// truthy follows the loose truthiness the generation workflows rely on.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
