package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("  Hello, World!  "))
	assert.Equal(t, "privet-mir", Slugify("Привет мир"))
	assert.Equal(t, "go-1-22-release", Slugify("Go 1.22 release"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 4, CountWords("One two, three; four."))
	assert.Equal(t, 3, CountWords("Привет, дорогой мир"))
}

func TestNormalizePage(t *testing.T) {
	l, o := normalizePage(0, -5)
	assert.Equal(t, 20, l)
	assert.Equal(t, 0, o)
	l, _ = normalizePage(500, 0)
	assert.Equal(t, 20, l)
	l, o = normalizePage(50, 10)
	assert.Equal(t, 50, l)
	assert.Equal(t, 10, o)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.13, round2(10.125000001))
	assert.Equal(t, 0.1, round2(0.1))
}
