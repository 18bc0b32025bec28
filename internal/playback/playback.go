// Package playback plays reply audio on the local output device.
package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Player owns the speaker. The device is opened on first use at the rate
// of the first clip; later clips are resampled to it.
type Player struct {
	once    sync.Once
	rate    beep.SampleRate
	initErr error
}

func NewPlayer() *Player {
	return &Player{}
}

func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
	}
	return streamer, format, nil
}

// Play blocks until the clip finished or ctx is done.
func (p *Player) Play(ctx context.Context, data []byte) error {
	streamer, format, err := decode(data)
	if err != nil {
		return err
	}
	defer streamer.Close()

	p.once.Do(func() {
		p.rate = format.SampleRate
		p.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if p.initErr != nil {
		return fmt.Errorf("init speaker: %w", p.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != p.rate {
		s = beep.Resample(4, format.SampleRate, p.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
