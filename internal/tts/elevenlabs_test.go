package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/text-to-speech/"+DefaultVoice, r.URL.Path)
		assert.Equal(t, "el-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	el := New(Config{BaseURL: srv.URL, Stability: 0.5, Similarity: 0.5}, srv.Client())
	audio, err := el.Synthesize(context.Background(), "Hello there", "el-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
	assert.Equal(t, "Hello there", got.Text)
	assert.Equal(t, DefaultModel, got.ModelID)
	assert.Equal(t, 0.5, got.VoiceSettings.Stability)
}

func TestSynthesize_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	el := New(Config{BaseURL: srv.URL}, srv.Client())
	_, err := el.Synthesize(context.Background(), "Hello", "el-key")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "ElevenLabs API error: 429", err.Error())
}

func TestSynthesize_NoKey(t *testing.T) {
	_, err := New(Config{}, nil).Synthesize(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestCheckKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voices", r.URL.Path)
		if r.Header.Get("xi-api-key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"voices":[]}`))
	}))
	defer srv.Close()

	el := New(Config{BaseURL: srv.URL + "/"}, srv.Client())
	assert.NoError(t, el.CheckKey(context.Background(), "good"))

	err := el.CheckKey(context.Background(), "bad")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
