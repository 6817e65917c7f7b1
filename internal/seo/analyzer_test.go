package seo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountSyllables(t *testing.T) {
	cases := map[string]int{
		"hello":  2,
		"make":   1,
		"rhythm": 1,
		"молоко": 3,
		"txt":    1,
	}
	for word, want := range cases {
		assert.Equal(t, want, CountSyllables(word), word)
	}
}

func TestCountSentences(t *testing.T) {
	assert.Equal(t, 3, CountSentences("Привет. Как дела? Хорошо!"))
	assert.Equal(t, 1, CountSentences("без точки"))
	assert.Equal(t, 2, CountSentences("Wait... what"))
	assert.Equal(t, 0, CountSentences(""))
}

func TestFleschReadingEase(t *testing.T) {
	assert.Equal(t, 0.0, FleschReadingEase(0, 0, 0))
	assert.Equal(t, 100.0, FleschReadingEase(1, 1, 1))
	assert.InDelta(t, 59.64, FleschReadingEase(100, 5, 150), 0.011)
	assert.Equal(t, 0.0, FleschReadingEase(100, 1, 400))
}

func TestGrade(t *testing.T) {
	assert.Equal(t, "A", Grade(90))
	assert.Equal(t, "B", Grade(89))
	assert.Equal(t, "B", Grade(75))
	assert.Equal(t, "C", Grade(60))
	assert.Equal(t, "D", Grade(40))
	assert.Equal(t, "F", Grade(39))
}

func TestAnalyze_WithoutKeyword(t *testing.T) {
	r := Analyze(Input{Body: "Go is fun."})

	assert.Equal(t, 3, r.WordCount)
	assert.Equal(t, 1, r.SentenceCount)
	assert.Equal(t, 100.0, r.Readability)
	assert.Len(t, r.Checks, 5)
	assert.Equal(t, 17, r.Score)
	assert.Equal(t, "F", r.Grade)
	assert.Len(t, r.Suggestions, 4)
}

func TestAnalyze_KeywordChecks(t *testing.T) {
	r := Analyze(Input{
		Title:   "Why Golang",
		Body:    "# Intro\n\nGolang makes servers simple. Golang is fast.\n\nMore text here.",
		Keyword: "Golang",
	})

	assert.Equal(t, 10, r.WordCount)
	assert.Equal(t, 1, r.HeadingCount)
	assert.Equal(t, 2, r.KeywordCount)
	assert.Equal(t, 20.0, r.KeywordDensity)
	assert.True(t, r.KeywordInTitle)
	assert.True(t, r.KeywordInFirstParagraph)
	require.Len(t, r.Checks, 8)

	var density Check
	for _, c := range r.Checks {
		if c.Name == CheckKeywordDensity {
			density = c
		}
	}
	assert.False(t, density.Passed)
	assert.Contains(t, density.Message, "Снизьте")
}

func TestAnalyze_HTMLHeadingsAndPhrase(t *testing.T) {
	r := Analyze(Input{
		Body:    "<h2>Обзор</h2><p>Учёт времени помогает команде. Учёт времени прост.</p>",
		Keyword: "учёт времени",
	})

	assert.Equal(t, 1, r.HeadingCount)
	assert.Equal(t, 2, r.KeywordCount)
	assert.False(t, r.KeywordInTitle)
}

func TestTopKeywords(t *testing.T) {
	words := Words("server server server client client the the the the api")
	top := TopKeywords(words, 2)

	require.Len(t, top, 2)
	assert.Equal(t, "server", top[0].Word)
	assert.Equal(t, 3, top[0].Count)
	assert.Equal(t, 30.0, top[0].Density)
	assert.Equal(t, "client", top[1].Word)
}
