package audioconv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, sampleRate, samples int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestSniff(t *testing.T) {
	cases := []struct {
		in   []byte
		want Format
	}{
		{[]byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatWAV},
		{[]byte("OggS\x00\x02"), FormatVorbis},
		{[]byte("ID3\x04\x00"), FormatMP3},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
	}
	for _, tc := range cases {
		got, err := Sniff(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := Sniff([]byte("hello"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestProbe_WAV(t *testing.T) {
	data := writeWAV(t, 16000, 8000)

	info, err := Probe(data)
	require.NoError(t, err)
	assert.Equal(t, FormatWAV, info.Format)
	assert.Equal(t, "audio/wav", info.ContentType)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.InDelta(t, float64(500*time.Millisecond), float64(info.Duration), float64(5*time.Millisecond))
}

func TestProbe_Garbage(t *testing.T) {
	_, err := Probe([]byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentType(FormatMP3))
	assert.Equal(t, "audio/ogg", ContentType(FormatVorbis))
	assert.Equal(t, "application/octet-stream", ContentType("flac"))
}
