package library

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSubmitDocument(t *testing.T) {
	var got Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "v-1:doc-9", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"lib-42","status":"ARCHIVED"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", "key-1", time.Second)
	require.NoError(t, err)

	receipt, err := client.SubmitDocument(context.Background(), Submission{
		CandidateID: "c-1",
		DocumentRef: "doc-9",
		VerdictID:   "v-1",
		Mention:     "GOOD",
	})
	require.NoError(t, err)
	assert.Equal(t, "lib-42", receipt.ExternalID)
	assert.Equal(t, "ARCHIVED", receipt.Status)
	assert.Equal(t, "c-1", got.CandidateID)
	assert.False(t, got.Active)
}

func TestClientSubmitDocumentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"message":"document unreadable"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "", time.Second)
	require.NoError(t, err)

	_, err = client.SubmitDocument(context.Background(), Submission{CandidateID: "c-1", DocumentRef: "doc-9", VerdictID: "v-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document unreadable")
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ", "", 0)
	assert.Error(t, err)
}
