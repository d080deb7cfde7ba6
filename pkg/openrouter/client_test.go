package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    string
		wantStatus int
		wantText   string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"id": "gen-123",
				"model": "meta-llama/llama-3.2-3b-instruct:free",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"status\":\"REJECT\"}"}}],
				"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
			}`,
			wantText: `{"status":"REJECT"}`,
		},
		{
			name:       "rate_limit",
			status:     http.StatusTooManyRequests,
			body:       `{"error": "rate limit exceeded"}`,
			wantErr:    "unexpected status 429",
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "server_error",
			status:     http.StatusInternalServerError,
			body:       `{"error": "internal server error"}`,
			wantErr:    "unexpected status 500",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
		{
			name:    "no_choices",
			status:  http.StatusOK,
			body:    `{"id": "gen-1", "choices": []}`,
			wantErr: "no choices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				assert.Equal(t, "http://localhost:3000", r.Header.Get("HTTP-Referer"))
				assert.Equal(t, "Food Donation Platform", r.Header.Get("X-Title"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key",
				WithBaseURL(srv.URL),
				WithAppInfo("http://localhost:3000", "Food Donation Platform"),
			)

			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Model:    "meta-llama/llama-3.2-3b-instruct:free",
				Messages: []Message{{Role: "user", Content: "Hi"}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				if tt.wantStatus != 0 {
					var apiErr *APIError
					require.True(t, errors.As(err, &apiErr))
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text())
			assert.Equal(t, 30, resp.Usage.CompletionTokens)
		})
	}
}

func TestChatCompletion_RequiresModel(t *testing.T) {
	client := NewClient("k", WithBaseURL("http://127.0.0.1:0"))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")
}

func TestChatCompletion_MultimodalBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "google/gemini-2.0-flash-exp:free", body.Model)
		assert.InDelta(t, 0.2, body.Temperature, 1e-9)
		assert.Equal(t, 500, body.MaxTokens)
		require.Len(t, body.Messages, 2)
		assert.JSONEq(t, `"be careful"`, string(body.Messages[0].Content))
		assert.JSONEq(t, `[
			{"type": "text", "text": "look"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,AQID"}}
		]`, string(body.Messages[1].Content))

		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	temp := 0.2
	maxTokens := 500
	client := NewClient("k", WithBaseURL(srv.URL))
	resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Model: "google/gemini-2.0-flash-exp:free",
		Messages: []Message{
			{Role: "system", Content: "be careful"},
			{Role: "user", Parts: []ContentPart{TextPart("look"), ImagePart([]byte{1, 2, 3}, "image/png")}},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
}

func TestChatCompletion_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient("k", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(ctx, ChatCompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChatCompletion_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	// One token, refilled every 10s: the second call cannot proceed before the deadline.
	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0.1, 1))

	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.ChatCompletion(ctx, ChatCompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, int32(1), calls.Load())
}

func TestMessage_UnmarshalParts(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`), &m))
	assert.Equal(t, "ab", m.Text())

	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":null}`), &m))
	assert.Equal(t, "", m.Text())
}
