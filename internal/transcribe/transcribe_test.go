package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenAI(t *testing.T, transcript, content string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "fake-audio", string(data))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": transcript})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		format, _ := req["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	})
	return httptest.NewServer(mux)
}

func TestDictate(t *testing.T) {
	srv := fakeOpenAI(t, "fever for two days, paracetamol twice daily for three days",
		`{"symptoms":"fever for two days","medicines":[{"name":"Paracetamol","consumption_days":"3","time":"twice daily","instruction":"after food"},{"name":" "}],"overall_instruction":"rest"}`)
	defer srv.Close()

	client, err := New(Options{APIKey: "test", BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()}, nil)
	require.NoError(t, err)

	draft, err := client.Dictate(context.Background(), "note.webm", strings.NewReader("fake-audio"))
	require.NoError(t, err)
	assert.Equal(t, "fever for two days", draft.Symptoms)
	require.Len(t, draft.Medicines, 1)
	assert.Equal(t, "Paracetamol", draft.Medicines[0].Name)
	assert.Equal(t, "twice daily", draft.Medicines[0].Time)
	assert.Equal(t, "rest", draft.OverallInstruction)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Options{}, nil)
	assert.Error(t, err)
}

func TestParseStructuredRejectsGarbage(t *testing.T) {
	_, err := parseStructured("not json")
	assert.Error(t, err)

	p, err := parseStructured("```json\n{\"symptoms\":\"cough\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "cough", p.Symptoms)
	assert.Empty(t, p.Medicines)
}
