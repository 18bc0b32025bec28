// Package audio keeps synthesized speech clips in memory so clients can
// fetch them by URL after a command completes.
package audio

import (
	"errors"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"spai/pkg/audioconv"
)

// Clip is one stored piece of audio.
type Clip struct {
	ID          string
	Data        []byte
	ContentType string
	Duration    time.Duration
	CreatedAt   time.Time
}

var ErrNotFound = errors.New("audio clip not found")

// Store is a bounded clip cache. The oldest clips are evicted first once
// the size limit is reached.
type Store struct {
	clips  *lru.Cache[string, Clip]
	prefix string
}

// NewStore keeps at most size clips. URLs are built as prefix + id.
func NewStore(size int, prefix string) (*Store, error) {
	c, err := lru.New[string, Clip](size)
	if err != nil {
		return nil, err
	}
	return &Store{clips: c, prefix: prefix}, nil
}

// Put stores data and returns the clip. The format and duration are probed
// from the bytes; unknown formats are kept as opaque mpeg audio.
func (s *Store) Put(data []byte) Clip {
	clip := Clip{
		ID:          uuid.NewString(),
		Data:        data,
		ContentType: "audio/mpeg",
		CreatedAt:   time.Now(),
	}
	if info, err := audioconv.Probe(data); err == nil {
		clip.ContentType = info.ContentType
		clip.Duration = info.Duration
	}
	s.clips.Add(clip.ID, clip)
	return clip
}

func (s *Store) Get(id string) (Clip, error) {
	clip, ok := s.clips.Get(id)
	if !ok {
		return Clip{}, ErrNotFound
	}
	return clip, nil
}

func (s *Store) URL(c Clip) string {
	return s.prefix + c.ID
}

func (s *Store) Len() int {
	return s.clips.Len()
}
