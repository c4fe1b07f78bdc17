package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewClient()
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestNewClient_APIKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	client, err := NewClient()
	require.NoError(t, err)
	assert.Equal(t, "env-key", client.apiKey)
}

func TestNewClient_OptionOverridesEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	client, err := NewClient(WithAPIKey("explicit-key"), WithModel("gemini-1.5-pro"))
	require.NoError(t, err)
	assert.Equal(t, "explicit-key", client.apiKey)
	assert.Equal(t, "gemini-1.5-pro", client.model)
}

func TestGenerateText_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "models/gemini-2.0-flash:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "describe this", req.Contents[0].Parts[0].Text)
		assert.Equal(t, "image/png", req.Contents[0].Parts[1].InlineData.MimeType)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"A hand-thrown "},{"text":"terracotta bowl."}]}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	text, err := client.GenerateText(context.Background(), "describe this", &Image{
		Data:     []byte{0x89, 0x50, 0x4e, 0x47},
		MimeType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "A hand-thrown terracotta bowl.", text)
}

func TestGenerateText_NoImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents[0].Parts, 1)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	text, err := client.GenerateText(context.Background(), "plain prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerateText_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.GenerateText(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateText_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.GenerateText(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGenerateText_ErrorBodyWith200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.GenerateText(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
