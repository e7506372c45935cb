package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/whatsapp-bridge-go/internal/errors"
)

func ndjsonServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}))
}

func TestGenerateStreamAggregatesChunksInOrder(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"response":"Hel","done":false}`,
		``,
		`{"response":"lo ","done":false}`,
		`{"response":"world","done":true}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)

	var chunks []string
	reply, err := c.GenerateStream(context.Background(), "greet", func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", reply)
	assert.Equal(t, []string{"Hel", "lo ", "world"}, chunks)
}

func TestGenerateWithoutCallback(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"response":"hi","done":true}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	reply, err := c.Generate(context.Background(), "greet")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
}

func TestGenerateStreamStopsAtDone(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"response":"first","done":true}`,
		`{"response":"ignored","done":false}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	reply, err := c.Generate(context.Background(), "greet")
	require.NoError(t, err)
	assert.Equal(t, "first", reply)
}

func TestGenerateStreamBackendError(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"response":"partial","done":false}`,
		`{"error":"model not found"}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.Generate(context.Background(), "greet")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGeneration, apperrors.GetCode(err))
}

func TestGenerateStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.Generate(context.Background(), "greet")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
}

func TestGenerateStreamUnreachableHost(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "test-model", 200*time.Millisecond)
	_, err := c.Generate(context.Background(), "greet")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
}

func TestGenerateStreamMalformedChunk(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"response":"ok","done":false}`,
		`this is not json`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.Generate(context.Background(), "greet")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGeneration, apperrors.GetCode(err))
}
