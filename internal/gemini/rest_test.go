package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestVerifyKeyValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer server.Close()

	client := NewRESTClientForBase(server.URL, nil, testLogger())
	result := client.VerifyKey(context.Background(), "test-key")

	assert.True(t, result.Valid)
	assert.Empty(t, result.Error)
}

func TestVerifyKeyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewRESTClientForBase(server.URL, nil, testLogger())
	result := client.VerifyKey(context.Background(), "bad-key")

	assert.False(t, result.Valid)
	assert.Equal(t, "HTTP 403", result.Error)
}

func TestVerifyKeyNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // force a connection error

	client := NewRESTClientForBase(server.URL, nil, testLogger())
	result := client.VerifyKey(context.Background(), "any-key")

	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Error)
}

const modelListingBody = `{
  "models": [
    {"name": "models/gemini-2.5-pro", "displayName": "Gemini 2.5 Pro", "description": "Strong reasoning", "version": "2.5", "inputTokenLimit": 2097152},
    {"name": "models/gemini-2.5-flash", "displayName": "Gemini 2.5 Flash", "version": "2.5", "inputTokenLimit": 1048576},
    {"name": "models/gemini-2.5-flash-001", "displayName": "Pinned revision", "version": "2.5"},
    {"name": "models/gemini-2.5-flash-image-generation", "displayName": "Image model", "version": "2.5"},
    {"name": "models/gemini-1.5-pro", "displayName": "Old generation", "version": "1.5"},
    {"name": "models/text-embedding-004", "displayName": "Embedding", "version": "004"}
  ]
}`

func TestListModelsFiltersListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelListingBody)
	}))
	defer server.Close()

	client := NewRESTClientForBase(server.URL, nil, testLogger())
	list, err := client.ListModels(context.Background(), "test-key")
	require.NoError(t, err)

	require.Len(t, list.Models, 2)

	pro := list.Models[0]
	assert.Equal(t, "gemini-2.5-pro", pro.ID)
	assert.Equal(t, "pro", pro.Tier)
	assert.True(t, pro.Default)
	assert.Equal(t, 2097152, pro.ContextLength)

	flash := list.Models[1]
	assert.Equal(t, "gemini-2.5-flash", flash.ID)
	assert.Equal(t, "flash", flash.Tier)
	assert.False(t, flash.Default)

	assert.NotEmpty(t, list.Version)
	assert.NotEmpty(t, list.LastUpdated)
}

func TestListModelsDefaultFallsBackToFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","version":"2.5"}]}`)
	}))
	defer server.Close()

	client := NewRESTClientForBase(server.URL, nil, testLogger())
	list, err := client.ListModels(context.Background(), "test-key")
	require.NoError(t, err)
	require.Len(t, list.Models, 1)
	assert.True(t, list.Models[0].Default)
}

func TestListModelsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewRESTClientForBase(server.URL, nil, testLogger())
	_, err := client.ListModels(context.Background(), "bad-key")
	assert.Error(t, err)
}

func TestSelectableModel(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"gemini-2.5-pro", true},
		{"gemini-2.0-flash", true},
		{"gemini-3-flash-preview", true},
		{"gemini-1.5-pro", false},
		{"gemini-2.5-flash-001", false},
		{"gemini-2.5-flash-tts", false},
		{"gemini-2.5-computer-use", false},
		{"text-embedding-004", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, selectableModel(tc.id), tc.id)
	}
}
