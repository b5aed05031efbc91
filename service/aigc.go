package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"DigitalHuman-server/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// 音乐生成接口对歌词长度有限制，超出部分直接截断
const maxMusicLyricsRunes = 550

// Service 同步入口：校验、限额、建立/重置阶段槽位，然后交给后台执行
type Service struct {
	tasks      TaskStore
	humans     DigitalHumanStore
	limiter    Limiter
	profiles   ProfileFetcher
	dispatcher Dispatcher
	validate   *validator.Validate
	log        *zap.Logger
	now        func() time.Time
}

func NewService(tasks TaskStore, humans DigitalHumanStore, limiter Limiter, profiles ProfileFetcher, dispatcher Dispatcher, log *zap.Logger) *Service {
	return &Service{
		tasks:      tasks,
		humans:     humans,
		limiter:    limiter,
		profiles:   profiles,
		dispatcher: dispatcher,
		validate:   validator.New(),
		log:        log.Named("aigc"),
		now:        time.Now,
	}
}

func (s *Service) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, tenantID string) (*models.Task, error) {
	task := models.NewTask(tenantID, s.now())
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	s.log.Info("任务已创建", zap.String("task_id", task.TaskID), zap.String("tenant_id", tenantID))
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return s.tasks.GetTask(ctx, taskID)
}

func (s *Service) GetDigitalHuman(ctx context.Context, digitalName string) (*models.DigitalHuman, error) {
	return s.humans.GetDigitalHuman(ctx, digitalName)
}

// loadOrCreate 任务不存在且带了租户时按给定 id 新建
func (s *Service) loadOrCreate(ctx context.Context, taskID, tenantID string) (*models.Task, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, models.ErrNotFound) || tenantID == "" {
		return nil, err
	}
	task = models.NewTask(tenantID, s.now())
	task.TaskID = taskID
	return task, nil
}

// SaveBasicInfo 覆盖性别、口号、参考音色和语言
func (s *Service) SaveBasicInfo(ctx context.Context, req models.BasicInfoRequest) (*models.Task, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	task, err := s.loadOrCreate(ctx, req.TaskID, req.TenantID)
	if err != nil {
		return nil, err
	}
	task.Gender = req.Gender
	task.Slogan = req.Slogan
	task.VoiceCloneURL = req.VoiceCloneURL
	task.Lang = req.Lang
	if task.Lang == "" {
		task.Lang = models.LanguageEnglish
	}
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) RequestCover(ctx context.Context, req models.CoverRequest) (*models.Task, error) {
	req = req.WithDefaults()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if _, ok := StyleName(req.StyleID); !ok {
		return nil, fmt.Errorf("%w: unknown style_id %d", models.ErrInvalidInput, req.StyleID)
	}
	username := models.UsernameFromLink(req.XLink)
	if username == "" {
		return nil, fmt.Errorf("%w: bad x_link %q", models.ErrInvalidInput, req.XLink)
	}
	profile, err := s.profiles.FetchProfile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", username, err)
	}

	task, err := s.loadOrCreate(ctx, req.TaskID, req.TenantID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.CheckAndRecord(ctx, quotaClient(task.TaskID), resourceImage); err != nil {
		return nil, err
	}

	task.XLink = req.XLink
	task.TwitterUsername = username
	task.AvatarURL = profile.AvatarURL
	task.Avatar400URL = profile.Avatar400URL

	req.TenantID = task.TenantID
	req.Bio = profile.Description
	req.BaseImgURL = req.ImgURL
	if req.BaseImgURL == "" {
		req.BaseImgURL = profile.Avatar400URL
	}
	if req.BaseImgURL == "" {
		req.BaseImgURL = profile.AvatarURL
	}

	now := s.now()
	if task.Cover != nil {
		task.Cover.Restart(req, now)
	} else {
		task.Cover = models.NewSubTask[models.CoverRequest, models.CoverResult](req, now)
	}
	return s.schedule(ctx, task, StageJob{Stage: models.StageCover, SubTaskID: task.Cover.SubTaskID})
}

func (s *Service) RequestLyrics(ctx context.Context, req models.LyricsRequest) (*models.Task, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if task.Cover == nil || task.XLink == "" {
		return nil, &models.NotReadyError{Stage: models.StageCover, Reason: "missing"}
	}
	if err := s.limiter.CheckAndRecord(ctx, quotaClient(task.TaskID), resourceLyrics); err != nil {
		return nil, err
	}

	now := s.now()
	if task.Lyrics != nil {
		task.Lyrics.Restart(req, now)
	} else {
		task.Lyrics = models.NewSubTask[models.LyricsRequest, models.LyricsResult](req, now)
	}
	return s.schedule(ctx, task, StageJob{Stage: models.StageLyrics, SubTaskID: task.Lyrics.SubTaskID})
}

func (s *Service) RequestMusic(ctx context.Context, req models.MusicRequest) (*models.Task, error) {
	req = req.WithDefaults()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.CheckAndRecord(ctx, quotaClient(task.TaskID), resourceMusic); err != nil {
		return nil, err
	}
	req.Lyrics = truncateRunes(req.Lyrics, maxMusicLyricsRunes)

	now := s.now()
	if task.Music != nil {
		task.Music.Restart(req, now)
	} else {
		task.Music = models.NewSubTask[models.MusicRequest, models.MusicResult](req, now)
	}
	return s.schedule(ctx, task, StageJob{Stage: models.StageMusic, SubTaskID: task.Music.SubTaskID})
}

func (s *Service) RequestAudioBatch(ctx context.Context, req models.AudioRequest) (*models.Task, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if task.Audio != nil {
		task.Audio.Restart(req, now)
	} else {
		task.Audio = models.NewSubTask[models.AudioRequest, models.VoiceClips](req, now)
	}
	return s.schedule(ctx, task, StageJob{Stage: models.StageAudio, SubTaskID: task.Audio.SubTaskID})
}

// RequestVideo 每个 key 一个独立槽位，需要封面已完成
func (s *Service) RequestVideo(ctx context.Context, req models.VideoRequest) (*models.Task, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if !req.Key.Valid() {
		return nil, fmt.Errorf("%w: unknown video key %q", models.ErrInvalidInput, req.Key)
	}
	task, err := s.tasks.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.Cover.IsDone() {
		return nil, &models.NotReadyError{Stage: models.StageCover, Reason: "cover img not found"}
	}
	if err := s.limiter.CheckAndRecord(ctx, quotaClient(task.TaskID), resourceVideo(req.Key)); err != nil {
		return nil, err
	}

	now := s.now()
	video := task.VideoByKey(req.Key)
	if video != nil {
		video.Restart(req, now)
	} else {
		video = models.NewSubTask[models.VideoRequest, models.VideoResult](req, now)
		task.PutVideo(video)
	}
	return s.schedule(ctx, task, StageJob{Stage: models.StageVideo, SubTaskID: video.SubTaskID, Key: string(req.Key)})
}

// RequestCloneAudio 纯后台；名称或文本为空时什么都不做
func (s *Service) RequestCloneAudio(ctx context.Context, req models.CloneAudioRequest) error {
	if req.DigitalName == "" || req.Text == "" {
		return nil
	}
	stageRequestsTotal.WithLabelValues(models.StageCloneAudio).Inc()
	return s.dispatcher.Dispatch(ctx, StageJob{
		Stage:       models.StageCloneAudio,
		DigitalName: req.DigitalName,
		Text:        req.Text,
	})
}

// schedule 保存 IN_PROGRESS 状态后提交后台任务；提交失败时把槽位标记为失败
func (s *Service) schedule(ctx context.Context, task *models.Task, job StageJob) (*models.Task, error) {
	job.TaskID = task.TaskID
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	stageRequestsTotal.WithLabelValues(job.Stage).Inc()

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.log.Error("提交后台任务失败", append(job.fields(), zap.Error(err))...)
		if sl := stageSlot(task, job.Stage, job.Key); sl != nil {
			sl.Fail()
			if saveErr := s.tasks.SaveTask(ctx, task); saveErr != nil {
				s.log.Error("标记失败状态失败", append(job.fields(), zap.Error(saveErr))...)
			}
		}
		return nil, fmt.Errorf("dispatch %s: %w", job.Stage, err)
	}
	s.log.Info("阶段任务已提交", job.fields()...)
	return task, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
