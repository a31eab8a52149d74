package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildStructured(t *testing.T) {
	got := BuildStructured([]string{"flour", "sugar"}, []string{"mix", "bake"})

	want := "### 🛒 Bahan-bahan\n" +
		"- flour\n" +
		"- sugar\n" +
		"\n" +
		"### 🍳 Cara Memasak\n" +
		"1. mix\n" +
		"2. bake"
	assert.Equal(t, want, got)
}

func TestBuildStructured_ItemsVerbatim(t *testing.T) {
	got := BuildStructured([]string{"Flour  flour"}, []string{"Step\tStep"})

	assert.Contains(t, got, "- Flour  flour\n")
	assert.Contains(t, got, "1. Step\tStep")
}

func TestBuildStructured_Empty(t *testing.T) {
	got := BuildStructured([]string{}, []string{})
	assert.Equal(t, "### 🛒 Bahan-bahan\n\n### 🍳 Cara Memasak", got)
}

func TestRawResult_Markdown(t *testing.T) {
	text := "Ingredients:\ntepung tepung"

	t.Run("structured when both lists are present", func(t *testing.T) {
		r := RawResult{Text: &text, Ingredients: []string{"tepung"}, Instructions: []string{"aduk"}}
		assert.True(t, r.IsStructured())
		assert.Equal(t, BuildStructured(r.Ingredients, r.Instructions), r.Markdown())
	})

	t.Run("falls back to text when a list is absent", func(t *testing.T) {
		r := RawResult{Text: &text, Ingredients: []string{"tepung"}}
		assert.False(t, r.IsStructured())
		assert.Equal(t, "Bahan-bahan\n\ntepung", r.Markdown())
	})

	t.Run("empty without text", func(t *testing.T) {
		assert.Equal(t, "", RawResult{}.Markdown())
	})
}

func TestNormalized(t *testing.T) {
	answerText := "Cook Time: 20\nGoreng goreng sampai matang"
	name := "  Nasi Goreng "
	score := 0.87
	errText := "not in dataset"
	body := "aduk aduk"

	raw := RawResponse{
		Answer: &answerText,
		Results: []RawResult{
			{RecipeName: &name, Score: &score, Text: &body},
			{Error: &errText},
			{Ingredients: []string{"nasi"}, Instructions: []string{"goreng"}},
		},
	}

	got := Normalized("nasi goreng?", raw)

	assert.Equal(t, "nasi goreng?", got.Question)
	assert.Equal(t, "Waktu Memasak\n\nGoreng sampai matang", got.Answer)
	if assert.Len(t, got.Results, 2) {
		assert.Equal(t, "Nasi Goreng", got.Results[0].Title)
		assert.Equal(t, &score, got.Results[0].Score)
		assert.Equal(t, "aduk", got.Results[0].Markdown)
		assert.False(t, got.Results[0].Structured)

		assert.Equal(t, "Resep #3", got.Results[1].Title)
		assert.True(t, got.Results[1].Structured)
	}
}

func TestRawResponse_NotFound(t *testing.T) {
	errText := "not in dataset"
	text := "ok"

	assert.True(t, RawResponse{}.NotFound())
	assert.True(t, RawResponse{Results: []RawResult{}}.NotFound())
	assert.True(t, RawResponse{Results: []RawResult{{Error: &errText}, {Text: &text}}}.NotFound())
	assert.False(t, RawResponse{Results: []RawResult{{Text: &text}}}.NotFound())
}

func TestNewQuery(t *testing.T) {
	q := NewQuery("  resep rendang  ")
	assert.Equal(t, "resep rendang", q.Question)
	assert.Equal(t, 3, q.TopK)
}
