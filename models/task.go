package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Profile 生成对象的基本信息，发布时原样带到 DigitalHuman
type Profile struct {
	XLink           string   `json:"x_link"`
	TwitterUsername string   `json:"twitter_username" gorm:"type:varchar(128)"`
	AvatarURL       string   `json:"avatar_url"`
	Avatar400URL    string   `json:"avatar_url_400x400"`
	Gender          Gender   `json:"gender" gorm:"type:varchar(8)"`
	Slogan          string   `json:"slogan"`
	Description     string   `json:"description" gorm:"type:text"`
	Lang            Language `json:"lang" gorm:"type:varchar(8)"`
	// VoiceCloneURL 用户上传的参考音色
	VoiceCloneURL string `json:"voice_clone_url"`
	// SloganVoiceURL 用参考音色克隆出来的口号语音，之后的克隆都复用它
	SloganVoiceURL string `json:"slogan_voice_url"`
}

// Task 一个生成对象的完整流水线，整体作为 JSON 文档存储
type Task struct {
	TaskID   string `json:"task_id"`
	TenantID string `json:"tenant_id"`
	Profile

	Cover  *Cover   `json:"cover"`
	Lyrics *Lyrics  `json:"lyrics"`
	Music  *Music   `json:"music"`
	Audio  *Audio   `json:"audio"`
	Videos []*Video `json:"videos"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewTask(tenantID string, now time.Time) *Task {
	return &Task{
		TaskID:    uuid.NewString(),
		TenantID:  tenantID,
		Profile:   Profile{Lang: LanguageEnglish},
		Videos:    []*Video{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UsernameFromLink https://x.com/foo -> foo
func UsernameFromLink(xLink string) string {
	name := strings.TrimSpace(xLink)
	for _, prefix := range []string{"https://x.com/", "https://twitter.com/", "http://x.com/", "x.com/"} {
		name = strings.TrimPrefix(name, prefix)
	}
	name = strings.Trim(name, "/")
	if i := strings.IndexAny(name, "/?"); i >= 0 {
		name = name[:i]
	}
	return name
}

// DigitalName 发布后的唯一名称
func (t *Task) DigitalName() string {
	return t.TwitterUsername
}

func (t *Task) VideoByKey(key VideoKey) *Video {
	for _, v := range t.Videos {
		if v != nil && v.Input.Key == key {
			return v
		}
	}
	return nil
}

// PutVideo 同一个 key 只保留一个槽位
func (t *Task) PutVideo(video *Video) {
	for i, v := range t.Videos {
		if v != nil && v.Input.Key == video.Input.Key {
			t.Videos[i] = video
			return
		}
	}
	t.Videos = append(t.Videos, video)
}

// CheckAllReady 按顺序检查，返回第一个阻塞发布的阶段
func (t *Task) CheckAllReady() error {
	if t.Cover == nil {
		return notReady(StageCover, "missing")
	}
	if !t.Cover.IsDone() {
		return notReady(StageCover, string(t.Cover.Status))
	}
	if t.Lyrics == nil {
		return notReady(StageLyrics, "missing")
	}
	if !t.Lyrics.IsDone() {
		return notReady(StageLyrics, string(t.Lyrics.Status))
	}
	if t.Music == nil {
		return notReady(StageMusic, "missing")
	}
	if !t.Music.IsDone() {
		return notReady(StageMusic, string(t.Music.Status))
	}
	if t.Audio == nil {
		return notReady(StageAudio, "missing")
	}
	// 最近一次失败但之前成功过，仍可发布
	if t.Audio.Status == SubTaskFailed && len(t.Audio.History) == 0 {
		return notReady(StageAudio, string(t.Audio.Status))
	}
	if len(t.Videos) == 0 {
		return notReady(StageVideo, "no video")
	}
	for _, v := range t.Videos {
		if v == nil {
			return notReady(StageVideo, "missing")
		}
		if !v.IsDone() {
			return notReady(StageVideo, string(v.Input.Key)+" "+string(v.Status))
		}
	}
	return nil
}

// FeeSum 当前所有阶段槽位上的费用合计
func (t *Task) FeeSum() float64 {
	sum := 0.0
	if t.Cover != nil {
		sum += t.Cover.Fee.Sum()
	}
	if t.Lyrics != nil {
		sum += t.Lyrics.Fee.Sum()
	}
	if t.Music != nil {
		sum += t.Music.Fee.Sum()
	}
	if t.Audio != nil {
		sum += t.Audio.Fee.Sum()
	}
	for _, v := range t.Videos {
		if v != nil {
			sum += v.Fee.Sum()
		}
	}
	return sum
}

// AudioClips 当前产出 + 历史产出，展开成一个列表
func (t *Task) AudioClips() VoiceClips {
	clips := VoiceClips{}
	if t.Audio == nil {
		return clips
	}
	if t.Audio.Output != nil {
		clips = append(clips, (*t.Audio.Output)...)
	}
	for _, h := range t.Audio.History {
		if h.Output != nil {
			clips = append(clips, (*h.Output)...)
		}
	}
	return clips
}

// TaskRecord Task 的存储形态
type TaskRecord struct {
	ID        string                  `gorm:"primaryKey;type:varchar(64)"`
	TenantID  string                  `gorm:"index;type:varchar(64)"`
	Document  datatypes.JSONType[Task] `gorm:"type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// 强制指定表名为 "task"
func (TaskRecord) TableName() string {
	return "task"
}

func NewTaskRecord(t *Task) *TaskRecord {
	return &TaskRecord{
		ID:        t.TaskID,
		TenantID:  t.TenantID,
		Document:  datatypes.NewJSONType(*t),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r *TaskRecord) Task() *Task {
	t := r.Document.Data()
	if t.Videos == nil {
		t.Videos = []*Video{}
	}
	return &t
}
