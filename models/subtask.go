package models

import (
	"time"

	"github.com/google/uuid"
)

// 子任务状态
type SubTaskStatus string

const (
	SubTaskInProgress SubTaskStatus = "in_progress"
	SubTaskDone       SubTaskStatus = "done"
	SubTaskFailed     SubTaskStatus = "failed"
)

// Attempt 是某个阶段一次生成尝试的完整状态，History 中保存的也是它
type Attempt[In any, Out any] struct {
	SubTaskID string        `json:"sub_task_id"`
	Status    SubTaskStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	DoneAt    *time.Time    `json:"done_at"`
	Input     In            `json:"input"`
	Output    *Out          `json:"output"`
	Fee       FeeList       `json:"fee"`
}

// SubTask 当前（最近一次）尝试 + 已归档的成功尝试，最新的在前
type SubTask[In any, Out any] struct {
	Attempt[In, Out]
	History []Attempt[In, Out] `json:"history"`
}

func NewSubTask[In any, Out any](input In, now time.Time) *SubTask[In, Out] {
	return &SubTask[In, Out]{
		Attempt: Attempt[In, Out]{
			SubTaskID: uuid.NewString(),
			Status:    SubTaskInProgress,
			CreatedAt: now,
			Input:     input,
			Fee:       FeeList{},
		},
		History: []Attempt[In, Out]{},
	}
}

// Regenerate 只有 DONE 状态会被归档；FAILED / IN_PROGRESS 直接覆盖。
// 产出清空，费用保留累计
func (s *SubTask[In, Out]) Regenerate(now time.Time) {
	if s.Status == SubTaskDone {
		snapshot := s.Attempt.snapshot()
		s.History = append([]Attempt[In, Out]{snapshot}, s.History...)
	}
	s.Status = SubTaskInProgress
	s.CreatedAt = now
	s.DoneAt = nil
	s.Output = nil
	s.SubTaskID = uuid.NewString()
}

// Restart 重新生成并换上新的请求参数
func (s *SubTask[In, Out]) Restart(input In, now time.Time) {
	s.Regenerate(now)
	s.Input = input
}

func (s *SubTask[In, Out]) Complete(output Out, fee Fee, now time.Time) {
	s.Output = &output
	s.Status = SubTaskDone
	s.DoneAt = &now
	s.Fee = append(s.Fee, fee)
}

func (s *SubTask[In, Out]) Fail() {
	s.Status = SubTaskFailed
	s.Output = nil
}

// IsDone 状态为 DONE 且有产出
func (s *SubTask[In, Out]) IsDone() bool {
	return s != nil && s.Status == SubTaskDone && s.Output != nil
}

// Owns 判断后台结果是否仍属于当前这次尝试
func (s *SubTask[In, Out]) Owns(subTaskID string) bool {
	return s != nil && s.SubTaskID == subTaskID
}

func (a Attempt[In, Out]) snapshot() Attempt[In, Out] {
	c := a
	if a.DoneAt != nil {
		doneAt := *a.DoneAt
		c.DoneAt = &doneAt
	}
	if a.Output != nil {
		out := *a.Output
		c.Output = &out
	}
	c.Fee = a.Fee.Clone()
	return c
}
