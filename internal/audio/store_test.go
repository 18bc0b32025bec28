package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet(t *testing.T) {
	s, err := NewStore(4, "/api/audio/")
	require.NoError(t, err)

	clip := s.Put([]byte("not really audio"))
	assert.NotEmpty(t, clip.ID)
	assert.Equal(t, "audio/mpeg", clip.ContentType)
	assert.Equal(t, "/api/audio/"+clip.ID, s.URL(clip))

	got, err := s.Get(clip.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("not really audio"), got.Data)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EvictsOldest(t *testing.T) {
	s, err := NewStore(2, "/a/")
	require.NoError(t, err)

	first := s.Put([]byte("1"))
	s.Put([]byte("2"))
	s.Put([]byte("3"))

	assert.Equal(t, 2, s.Len())
	_, err = s.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewStore_RejectsZeroSize(t *testing.T) {
	_, err := NewStore(0, "/a/")
	assert.Error(t, err)
}
