package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 阶段名称，同时用作指标标签和队列任务类型
const (
	StageCover      = "cover"
	StageLyrics     = "lyrics"
	StageMusic      = "music"
	StageAudio      = "audio"
	StageVideo      = "video"
	StageCloneAudio = "clone_audio"
)

type Gender string

const (
	GenderMale   Gender = "0"
	GenderFemale Gender = "1"
)

type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageChinese  Language = "zh"
	LanguageJapanese Language = "ja"
	LanguageKorean   Language = "ko"
)

// VideoKey 视频场景
type VideoKey string

const (
	VideoKeyTurn    VideoKey = "turn"
	VideoKeySaying  VideoKey = "saying"
	VideoKeyGogo    VideoKey = "gogo"
	VideoKeyDance   VideoKey = "dance"
	VideoKeyAngry   VideoKey = "angry"
	VideoKeyDefault VideoKey = "default"
	VideoKeyThink   VideoKey = "think"
	VideoKeySing    VideoKey = "sing"
	VideoKeySpeech  VideoKey = "speech"
	VideoKeyFigure  VideoKey = "figure"
)

func (k VideoKey) Valid() bool {
	switch k {
	case VideoKeyTurn, VideoKeySaying, VideoKeyGogo, VideoKeyDance, VideoKeyAngry,
		VideoKeyDefault, VideoKeyThink, VideoKeySing, VideoKeySpeech, VideoKeyFigure:
		return true
	}
	return false
}

// ---- Cover ----

type CoverRequest struct {
	TaskID   string `json:"task_id" validate:"required"`
	TenantID string `json:"tenant_id,omitempty"`
	XLink    string `json:"x_link" validate:"required"`
	ImgURL   string `json:"img_url"`
	StyleID  int    `json:"style_id"`
	// BaseImgURL 在同步阶段确定：ImgURL 或头像 400x400
	BaseImgURL string `json:"base_img_url,omitempty"`
	// Bio 账号简介，生成口号时使用
	Bio string `json:"bio,omitempty"`
}

// DefaultStyleID 未指定风格时使用 1
const DefaultStyleID = 1

func (r CoverRequest) WithDefaults() CoverRequest {
	if r.StyleID == 0 {
		r.StyleID = DefaultStyleID
	}
	return r
}

type CoverResult struct {
	FirstFrameImgURL       string `json:"first_frame_img_url"`
	CoverImgURL            string `json:"cover_img_url"`
	DanceFirstFrameImgURL  string `json:"dance_first_frame_img_url"`
	SingFirstFrameImgURL   string `json:"sing_first_frame_img_url"`
	FigureFirstFrameImgURL string `json:"figure_first_frame_img_url"`
}

type Cover = SubTask[CoverRequest, CoverResult]

// ---- Lyrics ----

type LyricsRequest struct {
	TaskID string `json:"task_id" validate:"required"`
	Style  string `json:"style,omitempty"`
}

type LyricsResult struct {
	Lyrics string `json:"lyrics"`
	Title  string `json:"title"`
}

type Lyrics = SubTask[LyricsRequest, LyricsResult]

// ---- Music ----

type MusicRequest struct {
	TaskID            string  `json:"task_id" validate:"required"`
	Lyrics            string  `json:"lyrics" validate:"required"`
	Style             string  `json:"style" validate:"required"`
	ReferenceAudioURL string  `json:"reference_audio_url"`
	Voice             string  `json:"voice"`
	Model             string  `json:"model"`
	ResponseFormat    string  `json:"response_format"`
	Speed             float64 `json:"speed" validate:"gte=0.25,lte=4"`
}

// WithDefaults 补齐未填写的 TTS 参数
func (r MusicRequest) WithDefaults() MusicRequest {
	if r.Voice == "" {
		r.Voice = "alloy"
	}
	if r.Model == "" {
		r.Model = "tts-1"
	}
	if r.ResponseFormat == "" {
		r.ResponseFormat = "mp3"
	}
	if r.Speed == 0 {
		r.Speed = 1.0
	}
	return r
}

type MusicResult struct {
	AudioURL       string  `json:"audio_url"`
	Lyrics         string  `json:"lyrics"`
	Style          string  `json:"style"`
	Voice          string  `json:"voice"`
	Model          string  `json:"model"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

type Music = SubTask[MusicRequest, MusicResult]

// ---- Audio (voice clone batch) ----

type AudioRequest struct {
	TaskID   string   `json:"task_id" validate:"required"`
	XTTSURLs []string `json:"x_tts_urls" validate:"required,min=1,dive,required,url"`
}

// VoiceClip 一段克隆语音
type VoiceClip struct {
	TaskID     string    `json:"task_id"`
	AudioURL   string    `json:"audio_url"`
	Text       string    `json:"text"`
	TwitterURL string    `json:"twitter_url,omitempty"`
	Username   string    `json:"username,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type VoiceClips []VoiceClip

type Audio = SubTask[AudioRequest, VoiceClips]

// ---- Video ----

type VideoRequest struct {
	TaskID string   `json:"task_id" validate:"required"`
	Key    VideoKey `json:"key" validate:"required"`
}

type VideoResult struct {
	OutID       string `json:"out_id"`
	ViewURL     string `json:"view_url"`
	DownloadURL string `json:"download_url"`
}

type Video = SubTask[VideoRequest, VideoResult]

// ---- 其他请求 ----

type BasicInfoRequest struct {
	TaskID        string   `json:"task_id" validate:"required"`
	TenantID      string   `json:"tenant_id,omitempty"`
	Gender        Gender   `json:"gender" validate:"omitempty,oneof=0 1"`
	Slogan        string   `json:"slogan"`
	VoiceCloneURL string   `json:"voice_clone_url" validate:"omitempty,url"`
	Lang          Language `json:"lang" validate:"omitempty,oneof=en zh ja ko"`
}

type PublishRequest struct {
	TaskID        string `json:"task_id" validate:"required"`
	WalletAddress string `json:"wallet_address"`
}

type CloneAudioRequest struct {
	DigitalName string `json:"digital_name"`
	Text        string `json:"text"`
}

func (c VoiceClips) Value() (driver.Value, error) {
	if c == nil {
		c = VoiceClips{}
	}
	return json.Marshal(c)
}

func (c *VoiceClips) Scan(value interface{}) error {
	if value == nil {
		*c = VoiceClips{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, c)
}
