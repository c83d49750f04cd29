package advice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buemura/rook/pkg/types"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *types.ScanRecord {
	rec := types.NewScanRecord("example.com")
	_ = rec.Set(types.StageFTP, types.Success(types.StageFTP, "Anonymous FTP login allowed!"))
	_ = rec.Set(types.StageSMB, types.Failure(types.StageSMB, "timeout", ""))
	return rec
}

func TestClient_Advise(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Try the anonymous FTP login.  "}}]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "sk-test", Endpoint: srv.URL})
	text, err := c.Advise(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "Try the anonymous FTP login.", text)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "suggest possible attack points/vectors")
	assert.Contains(t, got.Messages[1].Content, "Anonymous FTP login allowed!")
	assert.Contains(t, got.Messages[1].Content, "stage failed: timeout")
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := New(Config{APIKey: "bad", Endpoint: srv.URL}).Advise(context.Background(), sampleRecord())
	require.Error(t, err)
	var ae *types.AdviceError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "example.com", ae.Target)
	assert.Contains(t, err.Error(), "Incorrect API key")

	var apiErr *openai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}

func TestClient_FullEndpointURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	text, err := New(Config{APIKey: "k", Endpoint: srv.URL + "/v1/chat/completions"}).Advise(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{APIKey: "k", Endpoint: srv.URL}).Advise(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestClient_NoAPIKey(t *testing.T) {
	_, err := New(Config{}).Advise(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestSummarize(t *testing.T) {
	rec := sampleRecord()
	_ = rec.AddCommand(types.CommandOutput{Command: "whois example.com", Result: types.Success(types.StageExtraCommand, "registrar")})

	s := Summarize(rec)
	assert.Contains(t, s, "Target: example.com")
	assert.Contains(t, s, "Anonymous FTP:\nAnonymous FTP login allowed!")
	assert.Contains(t, s, "whois example.com:\nregistrar")
}
