package clients

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore 记录转存调用
type fakeStore struct {
	rehosted []string
	uploaded [][]byte
	err      error
}

func (f *fakeStore) Rehost(_ context.Context, sourceURL, kind string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rehosted = append(f.rehosted, sourceURL)
	return "https://oss/" + kind + "/1", nil
}

func (f *fakeStore) UploadBytes(_ context.Context, data []byte, kind, ext string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, data)
	return "https://oss/" + kind + "/1" + ext, nil
}

type fakeText struct {
	answer string
	err    error
	prompt string
}

func (f *fakeText) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

type fakePosts struct {
	recent []string
	post   string
}

func (f *fakePosts) FetchRecentPosts(context.Context, string, int) ([]string, error) {
	return f.recent, nil
}

func (f *fakePosts) FetchPost(context.Context, string) (string, error) {
	return f.post, nil
}

func TestExtractImageURLs(t *testing.T) {
	content := "here ![img](https://a.com/1.png) and ![](http://b.com/2.jpg) and [link](https://c.com)"
	assert.Equal(t, []string{"https://a.com/1.png", "http://b.com/2.jpg"}, ExtractImageURLs(content))
	assert.Empty(t, ExtractImageURLs("no images"))
}

func TestParseLyrics(t *testing.T) {
	got := ParseLyrics("sure!\n```json\n{\"title\": \"GM\", \"lyrics\": \"wake up\\nto the sun\"}\n```")
	assert.Equal(t, "GM", got.Title)
	assert.Equal(t, "wake up\nto the sun", got.Lyrics)

	plain := ParseLyrics("  just words  ")
	assert.Equal(t, "", plain.Title)
	assert.Equal(t, "just words", plain.Lyrics)
}

func TestLyricsGenerator_Generate(t *testing.T) {
	text := &fakeText{answer: `{"title":"T","lyrics":"L"}`}
	g := NewLyricsGenerator(&fakePosts{recent: []string{"post one"}}, text, zap.NewNop())

	res, err := g.Generate(context.Background(), "https://x.com/alice", "rock")
	require.NoError(t, err)
	assert.Equal(t, "L", res.Lyrics)
	assert.Contains(t, text.prompt, "@alice")
	assert.Contains(t, text.prompt, "rock")
	assert.Contains(t, text.prompt, "post one")

	text.answer = "   "
	_, err = g.Generate(context.Background(), "https://x.com/alice", "")
	assert.True(t, errors.Is(err, models.ErrExternalFailure))
}

func TestVideoGenerator_Rehosts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"request_id": "r"})
	})
	mux.HandleFunc("GET /v/requests/r/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("GET /v/requests/r", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"video": map[string]string{"url": "https://fal/v.mp4"}})
	})
	store := &fakeStore{}
	g := NewVideoGenerator(newTestFal(t, mux), "v", store, zap.NewNop())

	res, err := g.Generate(context.Background(), "https://oss/first.png", "turn around")
	require.NoError(t, err)
	assert.Equal(t, "https://oss/video/1", res.ViewURL)
	assert.Equal(t, "r", res.OutID)
	assert.Equal(t, []string{"https://fal/v.mp4"}, store.rehosted)
}

func TestCloneSpeaker_DownloadsAudio(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /clone", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"request_id": "r"})
	})
	mux.HandleFunc("GET /clone/requests/r/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("GET /clone/requests/r", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"audio": map[string]string{"url": srvURL + "/audio.mp3"}})
	})
	mux.HandleFunc("GET /audio.mp3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	fal := NewFalClient(config.FalConfig{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond, Timeout: time.Second}, zap.NewNop())
	speaker := NewCloneSpeaker(fal, "clone", zap.NewNop())

	b64, err := speaker.TextToSpeechBase64(context.Background(), "hello", CloneSpeechParams{VoiceID: "Abbess"})
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("ID3")), b64)
}

func TestOpenAISpeaker_IgnoresCloneParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = srv.URL
	speaker := NewOpenAISpeaker(openai.NewClientWithConfig(cfg), zap.NewNop())

	data, err := speaker.TextToSpeech(context.Background(), "hi", CloneSpeechParams{VoiceID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
}

func TestNewSpeaker_SelectsProvider(t *testing.T) {
	fal := NewFalClient(config.FalConfig{}, zap.NewNop())

	s, err := NewSpeaker(config.TTSConfig{Provider: config.TTSProviderVoiceClone}, fal, config.FalConfig{APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &CloneSpeaker{}, s)

	s, err = NewSpeaker(config.TTSConfig{Provider: config.TTSProviderVoiceClone}, fal, config.FalConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAISpeaker{}, s)

	_, err = NewSpeaker(config.TTSConfig{Provider: config.TTSProviderOpenAI}, fal, config.FalConfig{}, zap.NewNop())
	assert.Error(t, err)
}

type fakeSpeaker struct {
	text   string
	params SpeechParams
}

func (f *fakeSpeaker) TextToSpeech(_ context.Context, text string, params SpeechParams) ([]byte, error) {
	f.text, f.params = text, params
	return []byte("audio"), nil
}

func (f *fakeSpeaker) TextToSpeechBase64(ctx context.Context, text string, params SpeechParams) (string, error) {
	return toBase64(f.TextToSpeech(ctx, text, params))
}

func TestVoiceCloner_UsesPostText(t *testing.T) {
	speaker := &fakeSpeaker{}
	store := &fakeStore{}
	cloner := NewVoiceCloner(speaker, &fakePosts{post: "tweet body"}, store, "Abbess", zap.NewNop())

	clip, err := cloner.Clone(context.Background(), CloneJob{TaskID: "t1", TwitterURL: "https://x.com/a/status/1", ReferenceAudioURL: "https://ref"})
	require.NoError(t, err)
	assert.Equal(t, "tweet body", speaker.text)
	assert.Equal(t, CloneSpeechParams{VoiceID: "Abbess", AudioURL: "https://ref"}, speaker.params)
	assert.Equal(t, "https://oss/audio/1.mp3", clip.AudioURL)
	assert.Equal(t, "t1", clip.TaskID)

	_, err = cloner.Clone(context.Background(), CloneJob{TaskID: "t1"})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestObjectNameAndContentType(t *testing.T) {
	name := ObjectName(MediaImage, "png", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^image/2024/05/01/[0-9a-f-]{36}\.png$`, name)
	assert.Equal(t, "image/png", ContentType(name))
	assert.Equal(t, "audio/mpeg", ContentType("a/b.mp3"))
	assert.Equal(t, ".jpg", extFromURL("https://cdn/x.jpg?sig=1", MediaImage))
	assert.Equal(t, ".mp4", extFromURL("https://cdn/noext", MediaVideo))
}
