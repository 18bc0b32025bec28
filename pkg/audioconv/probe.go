package audioconv

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

type Format string

const (
	FormatWAV    Format = "wav"
	FormatMP3    Format = "mp3"
	FormatVorbis Format = "ogg"
)

// Info describes an encoded audio clip.
type Info struct {
	Format      Format
	ContentType string
	SampleRate  int
	Channels    int
	Duration    time.Duration
}

var ErrUnknownFormat = errors.New("unsupported audio format (supported: wav/mp3/ogg-vorbis)")

// Sniff guesses the container from the first bytes of data.
func Sniff(data []byte) (Format, error) {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV, nil
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return FormatVorbis, nil
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return FormatMP3, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}
	return "", ErrUnknownFormat
}

func ContentType(f Format) string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatVorbis:
		return "audio/ogg"
	}
	return "application/octet-stream"
}

// Probe decodes just enough of data to report its format and play length.
func Probe(data []byte) (Info, error) {
	f, err := Sniff(data)
	if err != nil {
		return Info{}, err
	}

	info := Info{Format: f, ContentType: ContentType(f)}
	switch f {
	case FormatWAV:
		err = probeWAV(data, &info)
	case FormatMP3:
		err = probeMP3(data, &info)
	case FormatVorbis:
		err = probeVorbis(data, &info)
	}
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", f, err)
	}
	return info, nil
}

func probeWAV(data []byte, info *Info) error {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return errors.New("invalid wav")
	}
	if err := dec.FwdToPCM(); err != nil {
		return err
	}
	frameBytes := int(dec.NumChans) * int(dec.BitDepth) / 8
	if frameBytes == 0 || dec.SampleRate == 0 {
		return errors.New("wav without format")
	}
	frames := dec.PCMSize / frameBytes
	info.SampleRate = int(dec.SampleRate)
	info.Channels = int(dec.NumChans)
	info.Duration = time.Duration(frames) * time.Second / time.Duration(dec.SampleRate)
	return nil
}

func probeMP3(data []byte, info *Info) error {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return err
	}
	sr := dec.SampleRate()
	if sr <= 0 {
		return errors.New("mp3 without sample rate")
	}
	// go-mp3 always decodes to 16-bit stereo
	const bytesPerFrame = 4
	frames := dec.Length() / bytesPerFrame
	info.SampleRate = sr
	info.Channels = 2
	info.Duration = time.Duration(frames) * time.Second / time.Duration(sr)
	return nil
}

func probeVorbis(data []byte, info *Info) error {
	n, format, err := oggvorbis.GetLength(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if format == nil || format.SampleRate <= 0 {
		return errors.New("invalid ogg/vorbis stream")
	}
	info.SampleRate = format.SampleRate
	info.Channels = format.Channels
	info.Duration = time.Duration(n) * time.Second / time.Duration(format.SampleRate)
	return nil
}
