// Package seo считает метрики текста и оценивает его по набору правил.
package seo

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Идеальные диапазоны.
const (
	TitleMinLength = 50
	TitleMaxLength = 60
	MetaMinLength  = 120
	MetaMaxLength  = 160
	MinWordCount   = 300
	MinDensity     = 0.5
	MaxDensity     = 2.5
	GoodReadable   = 60.0
	topKeywords    = 10
)

// Названия проверок.
const (
	CheckTitleLength    = "title_length"
	CheckMetaLength     = "meta_length"
	CheckKeywordInTitle = "keyword_in_title"
	CheckKeywordInIntro = "keyword_in_first_paragraph"
	CheckKeywordDensity = "keyword_density"
	CheckHeadings       = "headings"
	CheckContentLength  = "content_length"
	CheckReadability    = "readability"
)

var (
	htmlHeading  = regexp.MustCompile(`(?i)<h[1-6][^>]*>`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
	blankLines   = regexp.MustCompile(`\n\s*\n`)
	sentenceEnds = regexp.MustCompile(`[.!?…]+`)
)

// Input анализируемый текст.
type Input struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	Body            string `json:"body"`
	Keyword         string `json:"keyword"`
}

// Check результат одной проверки.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Weight  int    `json:"weight"`
	Message string `json:"message"`
}

// Keyword частотное слово текста.
type Keyword struct {
	Word    string  `json:"word"`
	Count   int     `json:"count"`
	Density float64 `json:"density"`
}

// Report итог анализа.
type Report struct {
	WordCount               int       `json:"word_count"`
	SentenceCount           int       `json:"sentence_count"`
	SyllableCount           int       `json:"syllable_count"`
	Readability             float64   `json:"readability"`
	KeywordCount            int       `json:"keyword_count"`
	KeywordDensity          float64   `json:"keyword_density"`
	TitleLength             int       `json:"title_length"`
	MetaLength              int       `json:"meta_length"`
	HeadingCount            int       `json:"heading_count"`
	KeywordInTitle          bool      `json:"keyword_in_title"`
	KeywordInFirstParagraph bool      `json:"keyword_in_first_paragraph"`
	Score                   int       `json:"score"`
	Grade                   string    `json:"grade"`
	Checks                  []Check   `json:"checks"`
	Suggestions             []string  `json:"suggestions"`
	TopKeywords             []Keyword `json:"top_keywords"`
}

// Analyze оценивает текст. Без ключевого слова проверки по нему не
// учитываются, а балл нормируется по оставшимся.
func Analyze(in Input) *Report {
	body, headings, intro := parseBody(in.Body)
	words := Words(body)
	keyword := strings.ToLower(strings.TrimSpace(in.Keyword))

	r := &Report{
		WordCount:     len(words),
		SentenceCount: CountSentences(body),
		TitleLength:   len([]rune(strings.TrimSpace(in.Title))),
		MetaLength:    len([]rune(strings.TrimSpace(in.MetaDescription))),
		HeadingCount:  headings,
		Suggestions:   []string{},
	}
	for _, w := range words {
		r.SyllableCount += CountSyllables(w)
	}
	r.Readability = FleschReadingEase(r.WordCount, r.SentenceCount, r.SyllableCount)
	r.TopKeywords = TopKeywords(words, topKeywords)

	if keyword != "" {
		r.KeywordCount = countPhrase(words, Words(keyword))
		if r.WordCount > 0 {
			r.KeywordDensity = round2(float64(r.KeywordCount) / float64(r.WordCount) * 100)
		}
		r.KeywordInTitle = strings.Contains(strings.ToLower(in.Title), keyword)
		r.KeywordInFirstParagraph = strings.Contains(strings.ToLower(intro), keyword)
	}

	r.Checks = r.runChecks(keyword != "")
	r.Score = score(r.Checks)
	r.Grade = Grade(r.Score)
	for _, c := range r.Checks {
		if !c.Passed {
			r.Suggestions = append(r.Suggestions, c.Message)
		}
	}
	return r
}

func (r *Report) runChecks(withKeyword bool) []Check {
	checks := []Check{
		check(CheckTitleLength, 15, r.TitleLength >= TitleMinLength && r.TitleLength <= TitleMaxLength,
			"Сделайте заголовок длиной 50–60 символов"),
		check(CheckMetaLength, 15, r.MetaLength >= MetaMinLength && r.MetaLength <= MetaMaxLength,
			"Сделайте мета-описание длиной 120–160 символов"),
		check(CheckHeadings, 10, r.HeadingCount > 0, "Добавьте подзаголовки для структуры текста"),
		check(CheckContentLength, 10, r.WordCount >= MinWordCount, "Увеличьте объём текста хотя бы до 300 слов"),
		check(CheckReadability, 10, r.Readability >= GoodReadable, "Упростите текст: короче предложения и слова"),
	}
	if !withKeyword {
		return checks
	}
	return append(checks,
		check(CheckKeywordInTitle, 15, r.KeywordInTitle, "Добавьте ключевое слово в заголовок"),
		check(CheckKeywordInIntro, 10, r.KeywordInFirstParagraph, "Упомяните ключевое слово в первом абзаце"),
		check(CheckKeywordDensity, 15, r.KeywordDensity >= MinDensity && r.KeywordDensity <= MaxDensity,
			densityMessage(r.KeywordDensity)),
	)
}

func check(name string, weight int, passed bool, message string) Check {
	if passed {
		message = "ok"
	}
	return Check{Name: name, Passed: passed, Weight: weight, Message: message}
}

func densityMessage(density float64) string {
	if density > MaxDensity {
		return "Снизьте плотность ключевого слова до 0.5–2.5%"
	}
	return "Используйте ключевое слово чаще: плотность 0.5–2.5%"
}

func score(checks []Check) int {
	total, passed := 0, 0
	for _, c := range checks {
		total += c.Weight
		if c.Passed {
			passed += c.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(passed) / float64(total) * 100))
}

// Grade переводит балл в оценку.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

// FleschReadingEase индекс удобочитаемости Флеша, ограниченный 0–100.
func FleschReadingEase(words, sentences, syllables int) float64 {
	if words == 0 || sentences == 0 {
		return 0
	}
	v := 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
	return round2(math.Max(0, math.Min(100, v)))
}

// Words разбивает текст на слова в нижнем регистре.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// CountSentences считает предложения; текст без знаков конца считается одним.
func CountSentences(text string) int {
	n := 0
	for _, part := range sentenceEnds.Split(text, -1) {
		if strings.IndexFunc(part, unicode.IsLetter) >= 0 {
			n++
		}
	}
	return n
}

// CountSyllables оценивает число слогов по группам гласных.
func CountSyllables(word string) int {
	count := 0
	prevVowel := false
	runes := []rune(strings.ToLower(word))
	for _, r := range runes {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	// немая e в конце английских слов
	if count > 1 && len(runes) > 2 && runes[len(runes)-1] == 'e' && !isVowel(runes[len(runes)-2]) {
		count--
	}
	if count == 0 {
		return 1
	}
	return count
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiouyаеёиоуыэюя", r)
}

// TopKeywords возвращает самые частые значимые слова.
func TopKeywords(words []string, limit int) []Keyword {
	counts := map[string]int{}
	for _, w := range words {
		if len([]rune(w)) < 3 || stopWords[w] {
			continue
		}
		counts[w]++
	}

	out := make([]Keyword, 0, len(counts))
	for w, n := range counts {
		out = append(out, Keyword{Word: w, Count: n, Density: round2(float64(n) / float64(len(words)) * 100)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// parseBody убирает разметку и возвращает чистый текст, число заголовков
// и первый абзац.
func parseBody(raw string) (string, int, string) {
	headings := len(htmlHeading.FindAllString(raw, -1))
	text := htmlTag.ReplaceAllString(raw, "\n\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			headings++
			lines = append(lines, "")
			continue
		}
		lines = append(lines, trimmed)
	}
	text = strings.Join(lines, "\n")

	intro := ""
	for _, para := range blankLines.Split(text, -1) {
		if strings.TrimSpace(para) != "" {
			intro = para
			break
		}
	}
	return text, headings, intro
}

// countPhrase считает вхождения фразы в последовательность слов.
func countPhrase(words, phrase []string) int {
	if len(phrase) == 0 {
		return 0
	}
	n := 0
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j := range phrase {
			if words[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"all": true, "any": true, "can": true, "had": true, "her": true, "was": true, "one": true,
	"our": true, "out": true, "has": true, "his": true, "how": true, "its": true, "who": true,
	"this": true, "that": true, "with": true, "from": true, "they": true, "will": true, "have": true,
	"your": true, "what": true, "when": true, "which": true, "their": true, "there": true, "into": true,
	"это": true, "как": true, "для": true, "что": true, "или": true, "так": true, "его": true,
	"она": true, "они": true, "при": true, "все": true, "уже": true, "мы": true, "вы": true,
	"чтобы": true, "если": true, "только": true, "также": true, "тоже": true, "через": true,
}
