package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DigitalVideo 发布后的视频
type DigitalVideo struct {
	Key         VideoKey `json:"key"`
	OutID       string   `json:"out_id"`
	ViewURL     string   `json:"view_url"`
	DownloadURL string   `json:"download_url"`
}

type DigitalVideos []DigitalVideo

// Song 歌词 + 音乐参数
type Song struct {
	Lyrics              string  `json:"lyrics"`
	LyricsTitle         string  `json:"lyrics_title"`
	MusicAudioURL       string  `json:"music_audio_url"`
	MusicStyle          string  `json:"music_style"`
	MusicModel          string  `json:"music_model"`
	MusicVoice          string  `json:"music_voice"`
	MusicResponseFormat string  `json:"music_response_format"`
	MusicSpeed          float64 `json:"music_speed"`
}

type Songs []Song

// DigitalHuman 发布后的公开记录，digital_name 唯一
type DigitalHuman struct {
	ID            string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DigitalName   string `gorm:"uniqueIndex;type:varchar(128)" json:"digital_name"`
	FromTaskID    string `gorm:"index;type:varchar(64)" json:"from_task_id"`
	TenantID      string `gorm:"type:varchar(64)" json:"tenant_id"`
	WalletAddress string `gorm:"type:varchar(128)" json:"wallet_address"`

	Profile `gorm:"embedded"`

	CoverImgURL      string `json:"cover_img_url"`
	FirstFrameImgURL string `json:"first_frame_img_url"`
	DanceImgURL      string `json:"dance_img_url"`
	SingImgURL       string `json:"sing_img_url"`
	FigureImgURL     string `json:"figure_img_url"`

	Videos DigitalVideos `gorm:"type:json" json:"videos"`
	Songs  Songs         `gorm:"type:json" json:"songs"`
	Audios VoiceClips    `gorm:"type:json" json:"audios"`
	Fee    FeeList       `gorm:"type:json" json:"fee"`

	Adopted   bool      `json:"adopted"`
	ChatCount int       `json:"chat_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DigitalHuman) TableName() string {
	return "digital_human"
}

// FeeSum 已记录的发布费用
func (d *DigitalHuman) FeeSum() float64 {
	return d.Fee.Sum()
}

func (v DigitalVideos) Value() (driver.Value, error) {
	if v == nil {
		v = DigitalVideos{}
	}
	return json.Marshal(v)
}

func (v *DigitalVideos) Scan(value interface{}) error {
	if value == nil {
		*v = DigitalVideos{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, v)
}

func (s Songs) Value() (driver.Value, error) {
	if s == nil {
		s = Songs{}
	}
	return json.Marshal(s)
}

func (s *Songs) Scan(value interface{}) error {
	if value == nil {
		*s = Songs{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, s)
}
