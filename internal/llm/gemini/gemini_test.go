package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jo-hoe/wastewise/internal/config"
)

const pngMagic = "\x89PNG\r\n\x1a\n"

type seenRequest struct {
	path   string
	apiKey string
	body   map[string]any
}

func fakeGemini(t *testing.T, status int, reply string, seen *seenRequest) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen.path = r.URL.Path
			seen.apiKey = r.Header.Get("x-goog-api-key")
			_ = json.NewDecoder(r.Body).Decode(&seen.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(context.Background(), config.GeminiSettings{
		Model:   "gemini-2.0-flash",
		APIKey:  "test-key",
		BaseURL: baseURL,
	})
	require.NoError(t, err)
	return c
}

// inlineImage pulls the base64 payload of the inline image part out of a generateContent body.
func inlineImage(t *testing.T, body map[string]any) (mime string, data []byte) {
	t.Helper()
	contents, ok := body["contents"].([]any)
	require.True(t, ok, "contents missing: %#v", body)
	require.Len(t, contents, 1)
	parts, ok := contents[0].(map[string]any)["parts"].([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	for _, key := range []string{"inlineData", "inline_data"} {
		blob, ok := parts[1].(map[string]any)[key].(map[string]any)
		if !ok {
			continue
		}
		enc, _ := blob["data"].(string)
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			raw, err = base64.URLEncoding.DecodeString(enc)
		}
		require.NoError(t, err)
		m, _ := blob["mimeType"].(string)
		if m == "" {
			m, _ = blob["mime_type"].(string)
		}
		return m, raw
	}
	t.Fatalf("second part carries no inline data: %#v", parts[1])
	return "", nil
}

func TestGemini_InterpretImage_Success(t *testing.T) {
	var seen seenRequest
	ts := fakeGemini(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Category: hazardous. Explanation: ..."}]},"finishReason":"STOP","index":0}]}`,
		&seen)
	c := newTestClient(t, ts.URL)

	img := []byte(pngMagic + "rest-of-png")
	out, err := c.InterpretImage(context.Background(), "Classify this e-waste image", bytes.NewReader(img), "image/png")
	require.NoError(t, err)
	require.Equal(t, "Category: hazardous. Explanation: ...", out)

	require.True(t, strings.HasSuffix(seen.path, "models/gemini-2.0-flash:generateContent"), "path %q", seen.path)
	require.Equal(t, "test-key", seen.apiKey)

	contents := seen.body["contents"].([]any)
	first := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)
	require.Equal(t, "Classify this e-waste image", first["text"])

	mime, data := inlineImage(t, seen.body)
	require.Equal(t, "image/png", mime)
	require.Equal(t, img, data)
}

func TestGemini_InterpretImage_APIError(t *testing.T) {
	ts := fakeGemini(t, http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`, nil)
	c := newTestClient(t, ts.URL)

	_, err := c.InterpretImage(context.Background(), "p", bytes.NewBufferString("img"), "image/png")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to generate content")
}

func TestGemini_InterpretImage_EmptyResponse(t *testing.T) {
	ts := fakeGemini(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"SAFETY","index":0}]}`, nil)
	c := newTestClient(t, ts.URL)

	_, err := c.InterpretImage(context.Background(), "p", bytes.NewBufferString("img"), "image/png")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty response")
}

func TestGemini_InterpretImage_EmptyImageSkipsNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()
	c := newTestClient(t, ts.URL)

	_, err := c.InterpretImage(context.Background(), "p", bytes.NewBuffer(nil), "image/png")
	require.Error(t, err)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestGemini_InterpretImage_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c, err := New(context.Background(), config.GeminiSettings{
		Model:   "gemini-2.0-flash",
		APIKey:  "test-key",
		BaseURL: ts.URL,
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.InterpretImage(context.Background(), "p", bytes.NewBufferString("img"), "image/png")
	require.Error(t, err)
}

func TestClientConfig_APIKeySelectsGeminiAPI(t *testing.T) {
	cc, err := clientConfig(context.Background(), config.GeminiSettings{APIKey: "k", BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	require.Equal(t, genai.BackendGeminiAPI, cc.Backend)
	require.Equal(t, "k", cc.APIKey)
	require.Equal(t, "http://localhost:1", cc.HTTPOptions.BaseURL)
	require.Nil(t, cc.Credentials)
}

func TestClientConfig_MissingCredentialsFile(t *testing.T) {
	_, err := clientConfig(context.Background(), config.GeminiSettings{
		CredentialsFile: filepath.Join(t.TempDir(), "e-waste-api.json"),
		APIKey:          "ignored-when-file-is-set",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "load credentials file")
}

func TestClientConfig_NothingConfigured(t *testing.T) {
	_, err := clientConfig(context.Background(), config.GeminiSettings{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "llm.gemini needs credentialsFile")
}
