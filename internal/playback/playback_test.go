package playback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayRejectsGarbage(t *testing.T) {
	p := NewPlayer()

	err := p.Play(context.Background(), []byte("definitely not an mp3 stream"))
	assert.ErrorContains(t, err, "decode mp3")

	err = p.Play(context.Background(), nil)
	assert.Error(t, err)
}
