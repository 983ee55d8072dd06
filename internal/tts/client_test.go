package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasVoice(t *testing.T) {
	assert.True(t, HasVoice("hi-IN"))
	assert.True(t, HasVoice("en-IN"))
	assert.False(t, HasVoice("as-IN"))
	assert.False(t, HasVoice("fr-FR"))
	assert.False(t, HasVoice(""))
	assert.False(t, HasVoice("not a language"))
}

func TestClient_Speak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speakRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "namaste", req.Text)
		assert.Equal(t, "hi-IN", req.TargetLanguageCode)
		assert.Equal(t, "shubh", req.Speaker)
		assert.Equal(t, "mp3", req.OutputAudioCodec)

		_ = json.NewEncoder(w).Encode(map[string]any{"audios": []string{"bXAzZGF0YQ=="}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "bulbul:v3", 5)
	audios, err := client.Speak(context.Background(), "namaste", "hi-IN", "shubh")
	require.NoError(t, err)
	require.Len(t, audios, 1)
	assert.Equal(t, "bXAzZGF0YQ==", audios[0])
}

func TestClient_Speak_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "unsupported speaker"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "bulbul:v3", 5)
	_, err := client.Speak(context.Background(), "namaste", "hi-IN", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported speaker")
}
