package media

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, sampleRate, channels int, frames int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 200) * 100
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestProbeWAV(t *testing.T) {
	data := writeWAV(t, 8000, 2, 12000)

	info, err := ProbeWAV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8000, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 16, info.BitDepth)
	assert.InDelta(t, 1.5, info.Duration.Seconds(), 0.01)
}

func TestProbeWAV_Invalid(t *testing.T) {
	_, err := ProbeWAV(bytes.NewReader([]byte("definitely not a wav file")))
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestIsWAV(t *testing.T) {
	assert.True(t, IsWAV("audio/wav"))
	assert.True(t, IsWAV("Audio/X-WAV"))
	assert.False(t, IsWAV("audio/mpeg"))
}
