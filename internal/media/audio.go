package media

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// ErrNotWAV файл не является корректным WAV.
var ErrNotWAV = errors.New("media: файл не является WAV")

// AudioInfo параметры аудиофайла из заголовка.
type AudioInfo struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	BitDepth   int
}

// IsWAV сообщает, что MIME-тип относится к WAV.
func IsWAV(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	}
	return false
}

// ProbeWAV читает заголовок WAV. Длительность считается по размеру
// PCM-чанка, поэтому достаточно начала файла.
func ProbeWAV(r io.ReadSeeker) (*AudioInfo, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrNotWAV
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("media: не удалось найти PCM-данные: %w", err)
	}
	frameBytes := int(d.NumChans) * int(d.BitDepth) / 8
	if d.SampleRate == 0 || frameBytes == 0 {
		return nil, ErrNotWAV
	}

	frames := d.PCMSize / frameBytes
	return &AudioInfo{
		Duration:   time.Duration(frames) * time.Second / time.Duration(d.SampleRate),
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}
