// Package answer holds the values exchanged with the recipe question-answering
// service and the text normalization applied before they are displayed.
package answer

import (
	"strconv"
	"strings"
)

// DefaultTopK is the number of results requested for every question.
const DefaultTopK = 3

// MaxQuestionLength is the longest question, in characters, sent to the service
const MaxQuestionLength = 1000

// Query is a single question submitted by the user
type Query struct {
	Question string `json:"question" validate:"required,max=1000"`
	TopK     int    `json:"top_k" validate:"min=1,max=10"`
}

// NewQuery builds a query with the fixed result count
func NewQuery(question string) Query {
	return Query{
		Question: strings.TrimSpace(question),
		TopK:     DefaultTopK,
	}
}

// RawResult is one entry of the service's result list as received.
// Pointer fields distinguish an absent value from an empty one.
type RawResult struct {
	Score        *float64 `json:"score,omitempty"`
	Text         *string  `json:"text,omitempty"`
	RecipeName   *string  `json:"recipe_name,omitempty"`
	Error        *string  `json:"error,omitempty"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

// IsError reports whether the result is an error placeholder
func (r RawResult) IsError() bool {
	return r.Error != nil
}

// IsStructured reports whether the result carries both ingredient and
// instruction sequences.
func (r RawResult) IsStructured() bool {
	return r.Ingredients != nil && r.Instructions != nil
}

// Markdown returns the display-ready Markdown body of the result
func (r RawResult) Markdown() string {
	if r.IsStructured() {
		return BuildStructured(r.Ingredients, r.Instructions)
	}
	return NormalizeOptional(r.Text)
}

// RawResponse is the body returned by POST /ask
type RawResponse struct {
	Answer     *string     `json:"answer,omitempty"`
	Results    []RawResult `json:"results,omitempty"`
	DebugError *string     `json:"debug_error,omitempty"`
}

// NotFound reports whether the response signals that nothing matched the
// question: no results at all, or a first result carrying an error.
func (r RawResponse) NotFound() bool {
	return len(r.Results) == 0 || r.Results[0].IsError()
}

// NormalizedResult is a result card ready to render
type NormalizedResult struct {
	Title      string   `json:"title"`
	Score      *float64 `json:"score,omitempty"`
	Markdown   string   `json:"markdown"`
	Structured bool     `json:"structured"`
}

// NormalizedAnswer is the display-ready answer with its result cards
type NormalizedAnswer struct {
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Results  []NormalizedResult `json:"results"`
}

// Normalized converts a raw response into its display form. Error
// placeholders inside the result list are skipped.
func Normalized(question string, raw RawResponse) NormalizedAnswer {
	out := NormalizedAnswer{
		Question: question,
		Answer:   NormalizeOptional(raw.Answer),
		Results:  make([]NormalizedResult, 0, len(raw.Results)),
	}

	for i, res := range raw.Results {
		if res.IsError() {
			continue
		}
		out.Results = append(out.Results, NormalizedResult{
			Title:      resultTitle(res, i),
			Score:      res.Score,
			Markdown:   res.Markdown(),
			Structured: res.IsStructured(),
		})
	}

	return out
}

func resultTitle(res RawResult, index int) string {
	if res.RecipeName != nil {
		if name := strings.TrimSpace(*res.RecipeName); name != "" {
			return name
		}
	}
	return "Resep #" + strconv.Itoa(index+1)
}
