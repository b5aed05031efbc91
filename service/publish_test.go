package service_test

import (
	"context"
	"testing"

	"DigitalHuman-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPublish_FreshRecord(t *testing.T) {
	h := newHarness(t)
	h.tasks.Put(readyTask("t1", "alice"))

	dh, err := h.svc.Publish(context.Background(), models.PublishRequest{TaskID: "t1", WalletAddress: "0xabc"})
	require.NoError(t, err)
	assert.NotEmpty(t, dh.ID)
	assert.Equal(t, "alice", dh.DigitalName)
	assert.Equal(t, "t1", dh.FromTaskID)
	assert.Equal(t, "0xabc", dh.WalletAddress)
	assert.Equal(t, "https://oss/first.png", dh.CoverImgURL)
	assert.Equal(t, "https://oss/first.png", dh.FirstFrameImgURL)
	assert.Equal(t, "https://oss/dance.png", dh.DanceImgURL)
	assert.Equal(t, "https://oss/sing.png", dh.SingImgURL)
	assert.Empty(t, dh.FigureImgURL)
	assert.Equal(t, "gm", dh.Slogan)
	require.Len(t, dh.Videos, 1)
	assert.Equal(t, models.VideoKeyTurn, dh.Videos[0].Key)
	require.Len(t, dh.Songs, 1)
	assert.Equal(t, "GM", dh.Songs[0].LyricsTitle)
	assert.Equal(t, "https://oss/music.mp3", dh.Songs[0].MusicAudioURL)
	assert.Len(t, dh.Audios, 1)
	require.Len(t, dh.Fee, 1)
	assert.InDelta(t, 5.702, dh.FeeSum(), 1e-9)

	stored, err := h.svc.GetDigitalHuman(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, dh.ID, stored.ID)
}

func TestPublish_RepublishUpdatesInPlaceWithDeltaFee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.Put(readyTask("t1", "alice"))

	first, err := h.svc.Publish(ctx, models.PublishRequest{TaskID: "t1"})
	require.NoError(t, err)

	h.video.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.VideoResult{OutID: "v2", ViewURL: "https://oss/turn2.mp4"}, nil)
	_, err = h.svc.RequestVideo(ctx, models.VideoRequest{TaskID: "t1", Key: models.VideoKeyTurn})
	require.NoError(t, err)
	h.dispatcher.Wait()

	second, err := h.svc.Publish(ctx, models.PublishRequest{TaskID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	require.Len(t, second.Fee, 2)
	assert.InDelta(t, 3.0, second.Fee[1].Total(), 1e-9)
	assert.InDelta(t, 8.702, second.FeeSum(), 1e-9)
	assert.Equal(t, "https://oss/turn2.mp4", second.Videos[0].ViewURL)
}

func TestPublish_KeepsAdoptionOnUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.Put(readyTask("t1", "alice"))

	dh, err := h.svc.Publish(ctx, models.PublishRequest{TaskID: "t1"})
	require.NoError(t, err)
	dh.Adopted = true
	dh.ChatCount = 7
	require.NoError(t, h.humans.SaveDigitalHuman(ctx, dh))

	again, err := h.svc.Publish(ctx, models.PublishRequest{TaskID: "t1"})
	require.NoError(t, err)
	assert.True(t, again.Adopted)
	assert.Equal(t, 7, again.ChatCount)
	assert.InDelta(t, 0, again.Fee[1].Total(), 1e-9)
}

func TestPublish_NamingCollision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.Put(readyTask("t1", "alice"))
	h.tasks.Put(readyTask("t2", "alice"))

	_, err := h.svc.Publish(ctx, models.PublishRequest{TaskID: "t1"})
	require.NoError(t, err)

	_, err = h.svc.Publish(ctx, models.PublishRequest{TaskID: "t2"})
	assert.ErrorIs(t, err, models.ErrNamingCollision)

	stored, err := h.svc.GetDigitalHuman(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "t1", stored.FromTaskID)
}

func TestPublish_NotReady(t *testing.T) {
	h := newHarness(t)
	task := readyTask("t1", "alice")
	task.Music.Fail()
	h.tasks.Put(task)

	_, err := h.svc.Publish(context.Background(), models.PublishRequest{TaskID: "t1"})
	var nr *models.NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, models.StageMusic, nr.Stage)

	_, err = h.svc.GetDigitalHuman(context.Background(), "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPublish_AudioFailedWithHistoryStillPublishes(t *testing.T) {
	h := newHarness(t)
	task := readyTask("t1", "alice")
	task.Audio.Regenerate(t0)
	task.Audio.Fail()
	h.tasks.Put(task)

	dh, err := h.svc.Publish(context.Background(), models.PublishRequest{TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, dh.Audios, 1)
	assert.Equal(t, "https://oss/a1.mp3", dh.Audios[0].AudioURL)
}

func TestPublish_StoreRejectsSecondFreshRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.Put(readyTask("t1", "alice"))

	dh, err := h.svc.Publish(ctx, models.PublishRequest{TaskID: "t1"})
	require.NoError(t, err)

	// 另一个任务在查重之后抢先写入同名记录
	other := *dh
	other.ID = "other-id"
	other.FromTaskID = "t2"
	err = h.humans.CreateDigitalHuman(ctx, &other)
	assert.ErrorIs(t, err, models.ErrNamingCollision)

	stored, err := h.svc.GetDigitalHuman(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "t1", stored.FromTaskID)
}
