package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSocial(t *testing.T, h http.Handler) *SocialClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSocialClient(config.SocialConfig{BaseURL: srv.URL, APIKey: "k", Host: "h"}, zap.NewNop())
}

func TestSocialClient_FetchProfile(t *testing.T) {
	social := newTestSocial(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screenname.php", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-rapidapi-key"))
		if r.URL.Query().Get("screenname") == "ghost" {
			writeJSON(w, map[string]string{"status": "notfound"})
			return
		}
		writeJSON(w, map[string]string{"avatar": "https://pbs/img_normal.jpg", "name": "Alice", "desc": "hi"})
	}))

	p, err := social.FetchProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://pbs/img_normal.jpg", p.AvatarURL)
	assert.Equal(t, "https://pbs/img_400x400.jpg", p.Avatar400URL)
	assert.Equal(t, "Alice", p.Name)

	_, err = social.FetchProfile(context.Background(), "ghost")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSocialClient_FetchPostAndRecent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tweet.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123", r.URL.Query().Get("id"))
		writeJSON(w, map[string]string{"text": "gm"})
	})
	mux.HandleFunc("/timeline.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"timeline": []map[string]string{{"text": "a"}, {"text": " "}, {"text": "b"}, {"text": "c"}}})
	})
	social := newTestSocial(t, mux)

	text, err := social.FetchPost(context.Background(), "https://x.com/alice/status/123?s=20")
	require.NoError(t, err)
	assert.Equal(t, "gm", text)

	posts, err := social.FetchRecentPosts(context.Background(), "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, posts)

	_, err = social.FetchPost(context.Background(), "https://x.com/alice")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestPostIDFromURL(t *testing.T) {
	assert.Equal(t, "42", PostIDFromURL("https://x.com/a/status/42"))
	assert.Equal(t, "", PostIDFromURL("https://x.com/a"))
}
