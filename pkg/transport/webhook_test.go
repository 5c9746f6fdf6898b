package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formrunner/pkg/transport"
)

func TestWebhookSendReturnsReference(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"reference": "FRM-001"}`))
	}))
	defer server.Close()

	client := transport.NewWebhookClient()
	ref, err := client.Send(context.Background(), server.URL, map[string]any{"name": "licence"}, "")
	require.NoError(t, err)
	assert.Equal(t, "FRM-001", ref)
	assert.Equal(t, "licence", gotBody["name"])
}

func TestWebhookSendDegradesToUnknown(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "no reference in response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ok": true}`))
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("accepted"))
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client := transport.NewWebhookClient()
			ref, err := client.Send(context.Background(), server.URL, map[string]any{}, "")
			require.NoError(t, err, "delivery failures must not fail the submission")
			assert.Equal(t, transport.UnknownReference, ref)
		})
	}
}

func TestWebhookSendUnreachableTarget(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := transport.NewWebhookClient()
	ref, err := client.Send(context.Background(), server.URL, map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, transport.UnknownReference, ref)
}

func TestWebhookSendHonoursMethod(t *testing.T) {
	t.Parallel()

	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Write([]byte(`{"reference": "FRM-002"}`))
	}))
	defer server.Close()

	client := transport.NewWebhookClient()
	_, err := client.Send(context.Background(), server.URL, map[string]any{}, http.MethodPut)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
}
