package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"DigitalHuman-server/clients"
	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Processor 执行后台阶段任务，结果写回最新的 Task
type Processor struct {
	tasks     TaskStore
	humans    DigitalHumanStore
	gen       Generators
	templates config.TemplatesConfig
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time
}

func NewProcessor(tasks TaskStore, humans DigitalHumanStore, gen Generators, templates config.TemplatesConfig, notifier Notifier, log *zap.Logger) *Processor {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Processor{
		tasks:     tasks,
		humans:    humans,
		gen:       gen,
		templates: templates,
		notifier:  notifier,
		log:       log.Named("processor"),
		now:       time.Now,
	}
}

// HandleStageTask asynq 入口
func (p *Processor) HandleStageTask(ctx context.Context, t *asynq.Task) error {
	var job StageJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return p.Process(ctx, job)
}

func (p *Processor) Process(ctx context.Context, job StageJob) error {
	start := time.Now()
	defer func() {
		stageDuration.WithLabelValues(job.Stage).Observe(time.Since(start).Seconds())
	}()
	p.log.Info("开始处理阶段任务", job.fields()...)

	switch job.Stage {
	case models.StageCover:
		return p.runCover(ctx, job)
	case models.StageLyrics:
		return p.runLyrics(ctx, job)
	case models.StageMusic:
		return p.runMusic(ctx, job)
	case models.StageAudio:
		return p.runAudio(ctx, job)
	case models.StageVideo:
		return p.runVideo(ctx, job)
	case models.StageCloneAudio:
		return p.runCloneAudio(ctx, job)
	default:
		return fmt.Errorf("%w: unknown stage %q", models.ErrInvalidInput, job.Stage)
	}
}

// slot 各阶段 SubTask 的公共操作
type slot interface {
	Fail()
	Owns(subTaskID string) bool
}

// stageSlot 取 Task 上的阶段槽位，不存在返回 nil
func stageSlot(t *models.Task, stage, key string) slot {
	switch stage {
	case models.StageCover:
		if t.Cover != nil {
			return t.Cover
		}
	case models.StageLyrics:
		if t.Lyrics != nil {
			return t.Lyrics
		}
	case models.StageMusic:
		if t.Music != nil {
			return t.Music
		}
	case models.StageAudio:
		if t.Audio != nil {
			return t.Audio
		}
	case models.StageVideo:
		if v := t.VideoByKey(models.VideoKey(key)); v != nil {
			return v
		}
	}
	return nil
}

type outcome struct {
	status models.SubTaskStatus
	fee    float64
}

func succeeded(fee models.Fee) outcome {
	return outcome{status: models.SubTaskDone, fee: fee.Total()}
}

var failed = outcome{status: models.SubTaskFailed}

// live 读取 Task 并确认槽位仍属于这个任务；过期返回 nil
func (p *Processor) live(ctx context.Context, job StageJob) (*models.Task, error) {
	task, err := p.tasks.GetTask(ctx, job.TaskID)
	if err != nil {
		return nil, err
	}
	s := stageSlot(task, job.Stage, job.Key)
	if s == nil || !s.Owns(job.SubTaskID) {
		p.log.Warn("槽位已被重新生成，跳过", job.fields()...)
		return nil, nil
	}
	return task, nil
}

// commit 重新读取最新的 Task，只在槽位仍属于该任务时写回
func (p *Processor) commit(ctx context.Context, job StageJob, apply func(t *models.Task) outcome) error {
	task, err := p.tasks.GetTask(ctx, job.TaskID)
	if err != nil {
		return fmt.Errorf("reload task: %w", err)
	}
	s := stageSlot(task, job.Stage, job.Key)
	if s == nil || !s.Owns(job.SubTaskID) {
		p.log.Warn("结果已过期，丢弃", job.fields()...)
		return nil
	}
	out := apply(task)
	if err := p.tasks.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}

	stageResultsTotal.WithLabelValues(job.Stage, string(out.status)).Inc()
	if out.fee > 0 {
		feeUSDTotal.WithLabelValues(job.Stage).Add(out.fee)
	}
	p.log.Info("阶段任务结束", append(job.fields(), zap.String("status", string(out.status)))...)
	p.notify(ctx, job, out.status)
	return nil
}

func (p *Processor) notify(ctx context.Context, job StageJob, status models.SubTaskStatus) {
	event := StageEvent{
		TaskID:     job.TaskID,
		Stage:      job.Stage,
		Key:        job.Key,
		SubTaskID:  job.SubTaskID,
		Status:     status,
		FinishedAt: p.now(),
	}
	if err := p.notifier.StageFinished(ctx, event); err != nil {
		p.log.Warn("阶段事件发布失败", append(job.fields(), zap.Error(err))...)
	}
}

func (p *Processor) failJob(job StageJob, err error) {
	p.log.Error("阶段生成失败", append(job.fields(), zap.Error(err))...)
}

// ---- Cover ----

func (p *Processor) runCover(ctx context.Context, job StageJob) error {
	task, err := p.live(ctx, job)
	if err != nil || task == nil {
		return err
	}
	req := task.Cover.Input

	var slogan SloganResult
	needSlogan := task.Slogan == ""
	if needSlogan {
		slogan = GenerateSlogan(ctx, p.gen.Text, task.TwitterUsername, req.Bio, p.log)
		if !slogan.OK {
			// 口号失败不影响封面
			p.log.Warn("口号生成放弃", append(job.fields(), zap.Error(slogan.Err))...)
		}
	}

	result, genErr := p.coverImages(ctx, req)
	if genErr != nil {
		p.failJob(job, genErr)
	}

	return p.commit(ctx, job, func(t *models.Task) outcome {
		if slogan.OK && t.Slogan == "" {
			t.Slogan = slogan.Value.Slogan
			t.Description = slogan.Value.Description
		}
		if genErr != nil {
			t.Cover.Fail()
			return failed
		}
		items := []models.Fee{models.ImgFee(), models.ImgFee(), models.ImgFee()}
		if needSlogan {
			items = append(items, models.LLMFee())
		}
		fee := models.TotalFee(items...)
		t.Cover.Complete(*result, fee, p.now())
		return succeeded(fee)
	})
}

// coverImages 并发生成首帧、舞蹈、唱歌三张图，全部成功才算成功
func (p *Processor) coverImages(ctx context.Context, req models.CoverRequest) (*models.CoverResult, error) {
	style, _ := StyleName(req.StyleID)
	base := req.BaseImgURL

	var (
		urls [3]string
		errs [3]error
		g    errgroup.Group
	)
	jobs := []struct {
		refs   []string
		prompt string
	}{
		{refs: []string{base}, prompt: firstFramePrompt(style)},
		{refs: withTemplate(p.templates.DanceURL, base), prompt: danceImagePrompt},
		{refs: withTemplate(p.templates.SingURL, base), prompt: singImagePrompt},
	}
	for i, j := range jobs {
		g.Go(func() error {
			urls[i], errs[i] = p.gen.Image.Generate(ctx, j.refs, j.prompt)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	for _, u := range urls {
		if u == "" {
			return nil, fmt.Errorf("%w: empty image url", models.ErrExternalFailure)
		}
	}
	return &models.CoverResult{
		FirstFrameImgURL:      urls[0],
		CoverImgURL:           urls[0],
		DanceFirstFrameImgURL: urls[1],
		SingFirstFrameImgURL:  urls[2],
	}, nil
}

func withTemplate(template, base string) []string {
	if template == "" {
		return []string{base}
	}
	return []string{template, base}
}

// ---- Lyrics ----

func (p *Processor) runLyrics(ctx context.Context, job StageJob) error {
	task, err := p.live(ctx, job)
	if err != nil || task == nil {
		return err
	}
	xLink := task.XLink
	if xLink == "" && task.Cover != nil {
		xLink = task.Cover.Input.XLink
	}
	result, genErr := p.gen.Lyrics.Generate(ctx, xLink, task.Lyrics.Input.Style)
	if genErr != nil {
		p.failJob(job, genErr)
	}

	return p.commit(ctx, job, func(t *models.Task) outcome {
		if genErr != nil || result == nil {
			t.Lyrics.Fail()
			return failed
		}
		fee := models.TotalFee(models.LLMFee())
		t.Lyrics.Complete(*result, fee, p.now())
		return succeeded(fee)
	})
}

// ---- Music ----

func (p *Processor) runMusic(ctx context.Context, job StageJob) error {
	task, err := p.live(ctx, job)
	if err != nil || task == nil {
		return err
	}
	req := task.Music.Input
	audioURL, genErr := p.gen.Music.Generate(ctx, req)
	if genErr == nil && audioURL == "" {
		genErr = fmt.Errorf("%w: empty music url", models.ErrExternalFailure)
	}
	if genErr != nil {
		p.failJob(job, genErr)
	}

	return p.commit(ctx, job, func(t *models.Task) outcome {
		if genErr != nil {
			t.Music.Fail()
			return failed
		}
		fee := models.TotalFee(models.MusicFee())
		t.Music.Complete(models.MusicResult{
			AudioURL:       audioURL,
			Lyrics:         req.Lyrics,
			Style:          req.Style,
			Voice:          req.Voice,
			Model:          req.Model,
			ResponseFormat: req.ResponseFormat,
			Speed:          req.Speed,
		}, fee, p.now())
		return succeeded(fee)
	})
}

// ---- Audio ----

// runAudio 先克隆口号语音（如果还没有），再并发克隆每条帖子；
// 口号语音存在且每条都成功才算成功
func (p *Processor) runAudio(ctx context.Context, job StageJob) error {
	task, err := p.live(ctx, job)
	if err != nil || task == nil {
		return err
	}
	urls := task.Audio.Input.XTTSURLs

	voiceURL := task.SloganVoiceURL
	if voiceURL == "" {
		clip, err := p.gen.Voice.Clone(ctx, clients.CloneJob{
			TaskID:            job.SubTaskID,
			Text:              task.Slogan,
			ReferenceAudioURL: task.VoiceCloneURL,
			Username:          task.TwitterUsername,
		})
		if err != nil {
			p.failJob(job, fmt.Errorf("slogan voice: %w", err))
		} else {
			voiceURL = clip.AudioURL
		}
	}

	clips := make([]*models.VoiceClip, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			clip, err := p.gen.Voice.Clone(ctx, clients.CloneJob{
				TaskID:            job.SubTaskID,
				TwitterURL:        u,
				ReferenceAudioURL: task.VoiceCloneURL,
				Username:          task.TwitterUsername,
			})
			if err != nil {
				p.log.Error("克隆语音失败", append(job.fields(), zap.String("twitter_url", u), zap.Error(err))...)
				return nil
			}
			clips[i] = clip
			return nil
		})
	}
	_ = g.Wait()

	results := models.VoiceClips{}
	for _, c := range clips {
		if c != nil && c.AudioURL != "" {
			results = append(results, *c)
		}
	}
	ok := voiceURL != "" && len(results) == len(urls)

	return p.commit(ctx, job, func(t *models.Task) outcome {
		if !ok {
			t.Audio.Fail()
			return failed
		}
		items := make([]models.Fee, 0, len(urls))
		for range urls {
			items = append(items, models.CloneFee())
		}
		fee := models.TotalFee(items...)
		t.Audio.Complete(results, fee, p.now())
		t.SloganVoiceURL = voiceURL
		return succeeded(fee)
	})
}

// ---- Video ----

func (p *Processor) runVideo(ctx context.Context, job StageJob) error {
	task, err := p.live(ctx, job)
	if err != nil || task == nil {
		return err
	}
	key := models.VideoKey(job.Key)

	var (
		result *models.VideoResult
		genErr error
	)
	if !task.Cover.IsDone() {
		genErr = &models.NotReadyError{Stage: models.StageCover, Reason: "cover regenerated"}
	} else {
		result, genErr = p.gen.Video.Generate(ctx, videoSourceImage(key, task.Cover.Output), videoPrompt(key))
	}
	if genErr == nil && (result == nil || result.ViewURL == "") {
		genErr = fmt.Errorf("%w: empty video url", models.ErrExternalFailure)
	}
	if genErr != nil {
		p.failJob(job, genErr)
	}

	return p.commit(ctx, job, func(t *models.Task) outcome {
		v := t.VideoByKey(key)
		if genErr != nil {
			v.Fail()
			return failed
		}
		fee := models.TotalFee(models.VideoFee())
		v.Complete(*result, fee, p.now())
		return succeeded(fee)
	})
}

// ---- Clone audio for a published digital human ----

// runCloneAudio 用发布记录的口号语音朗读 Text，追加到发布记录和原 Task 的语音列表
func (p *Processor) runCloneAudio(ctx context.Context, job StageJob) error {
	if job.DigitalName == "" || job.Text == "" {
		return nil
	}
	dh, err := p.humans.GetDigitalHuman(ctx, job.DigitalName)
	if errors.Is(err, models.ErrNotFound) {
		p.log.Info("数字人不存在，跳过克隆", zap.String("digital_name", job.DigitalName))
		return nil
	}
	if err != nil {
		return err
	}
	if dh.SloganVoiceURL == "" {
		p.log.Warn("数字人没有口号语音，跳过克隆", zap.String("digital_name", job.DigitalName))
		return nil
	}

	clip, err := p.gen.Voice.Clone(ctx, clients.CloneJob{
		TaskID:            uuid.NewString(),
		Text:              job.Text,
		ReferenceAudioURL: dh.SloganVoiceURL,
		Username:          dh.DigitalName,
	})
	if err != nil {
		stageResultsTotal.WithLabelValues(job.Stage, string(models.SubTaskFailed)).Inc()
		p.log.Error("克隆语音失败", zap.String("digital_name", job.DigitalName), zap.Error(err))
		return nil
	}

	dh.Audios = append(dh.Audios, *clip)
	dh.UpdatedAt = p.now()
	if err := p.humans.SaveDigitalHuman(ctx, dh); err != nil {
		return fmt.Errorf("save digital human: %w", err)
	}

	task, err := p.tasks.GetTask(ctx, dh.FromTaskID)
	if err != nil {
		p.log.Warn("原任务读取失败", zap.String("task_id", dh.FromTaskID), zap.Error(err))
	} else if task.Audio != nil && task.Audio.Output != nil {
		*task.Audio.Output = append(*task.Audio.Output, *clip)
		if err := p.tasks.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("save task: %w", err)
		}
	}

	stageResultsTotal.WithLabelValues(job.Stage, string(models.SubTaskDone)).Inc()
	feeUSDTotal.WithLabelValues(job.Stage).Add(models.CloneFee().Total())
	p.log.Info("数字人克隆语音完成", zap.String("digital_name", job.DigitalName), zap.String("audio_url", clip.AudioURL))
	return nil
}
