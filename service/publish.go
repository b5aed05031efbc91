package service

import (
	"context"
	"errors"
	"fmt"

	"DigitalHuman-server/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publish 把全部就绪的 Task 发布为 DigitalHuman。
// 同名记录来自同一个 Task 时原地更新，只记录新增费用；来自其他 Task 时拒绝
func (s *Service) Publish(ctx context.Context, req models.PublishRequest) (*models.DigitalHuman, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if err := task.CheckAllReady(); err != nil {
		return nil, err
	}
	name := task.DigitalName()
	if name == "" {
		return nil, &models.NotReadyError{Stage: models.StageCover, Reason: "missing username"}
	}

	org, err := s.humans.GetDigitalHuman(ctx, name)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if org != nil && org.FromTaskID != task.TaskID {
		return nil, fmt.Errorf("%w: %s", models.ErrNamingCollision, name)
	}

	now := s.now()
	dh := buildDigitalHuman(task, req.WalletAddress)
	dh.UpdatedAt = now
	if org != nil {
		dh.ID = org.ID
		dh.CreatedAt = org.CreatedAt
		dh.Adopted = org.Adopted
		dh.ChatCount = org.ChatCount
		delta := task.FeeSum() - org.FeeSum()
		dh.Fee = append(org.Fee.Clone(), models.TotalFee(models.ItemFee(delta)))
	} else {
		dh.ID = uuid.NewString()
		dh.CreatedAt = now
		dh.Fee = models.FeeList{models.TotalFee(models.ItemFee(task.FeeSum()))}
	}

	save := s.humans.SaveDigitalHuman
	if org == nil {
		save = s.humans.CreateDigitalHuman
	}
	if err := save(ctx, dh); err != nil {
		return nil, err
	}
	s.log.Info("数字人已发布",
		zap.String("task_id", task.TaskID),
		zap.String("digital_name", name),
		zap.Bool("update", org != nil),
		zap.Float64("fee", dh.FeeSum()))
	return dh, nil
}

func buildDigitalHuman(task *models.Task, wallet string) *models.DigitalHuman {
	cover := task.Cover.Output
	lyrics := task.Lyrics.Output
	music := task.Music.Output

	videos := models.DigitalVideos{}
	for _, v := range task.Videos {
		if v.IsDone() && v.Output.ViewURL != "" {
			videos = append(videos, models.DigitalVideo{
				Key:         v.Input.Key,
				OutID:       v.Output.OutID,
				ViewURL:     v.Output.ViewURL,
				DownloadURL: v.Output.DownloadURL,
			})
		}
	}

	return &models.DigitalHuman{
		DigitalName:      task.DigitalName(),
		FromTaskID:       task.TaskID,
		TenantID:         task.TenantID,
		WalletAddress:    wallet,
		Profile:          task.Profile,
		CoverImgURL:      cover.CoverImgURL,
		FirstFrameImgURL: cover.FirstFrameImgURL,
		DanceImgURL:      cover.DanceFirstFrameImgURL,
		SingImgURL:       cover.SingFirstFrameImgURL,
		FigureImgURL:     cover.FigureFirstFrameImgURL,
		Videos:           videos,
		Songs: models.Songs{{
			Lyrics:              lyrics.Lyrics,
			LyricsTitle:         lyrics.Title,
			MusicAudioURL:       music.AudioURL,
			MusicStyle:          music.Style,
			MusicModel:          music.Model,
			MusicVoice:          music.Voice,
			MusicResponseFormat: music.ResponseFormat,
			MusicSpeed:          music.Speed,
		}},
		Audios: task.AudioClips(),
	}
}
