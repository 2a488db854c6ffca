package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWebhookPostsCategoryAndPayload(t *testing.T) {
	var got webhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	err := n.Notify(context.Background(), CategoryAppDeleted, Payload{
		AppID:       "com.example.game",
		DisplayName: "Example Game",
		OwnerID:     "owner1",
	})
	require.NoError(t, err)
	require.Equal(t, CategoryAppDeleted, got.Category)
	require.Equal(t, "com.example.game", got.Payload.AppID)
	require.Equal(t, "owner1", got.Payload.OwnerID)
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	err := n.Notify(context.Background(), CategoryNewAppDetected, Payload{AppID: "A"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}

func TestNewSelectsByURL(t *testing.T) {
	log := zerolog.Nop()
	require.IsType(t, &WebhookNotifier{}, New("http://localhost:9000/hook", log))
	require.IsType(t, &LogNotifier{}, New("", log))
}
