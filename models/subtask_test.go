package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newDoneLyrics(t *testing.T) *Lyrics {
	t.Helper()
	s := NewSubTask[LyricsRequest, LyricsResult](LyricsRequest{TaskID: "t1"}, t0)
	s.Complete(LyricsResult{Lyrics: "la la", Title: "song"}, LLMFee(), t0.Add(time.Minute))
	return s
}

func TestSubTask_NewIsInProgress(t *testing.T) {
	s := NewSubTask[LyricsRequest, LyricsResult](LyricsRequest{TaskID: "t1"}, t0)
	assert.Equal(t, SubTaskInProgress, s.Status)
	assert.NotEmpty(t, s.SubTaskID)
	assert.Nil(t, s.Output)
	assert.Nil(t, s.DoneAt)
	assert.Empty(t, s.History)
	assert.False(t, s.IsDone())
}

func TestSubTask_CompleteSetsOutput(t *testing.T) {
	s := newDoneLyrics(t)
	assert.True(t, s.IsDone())
	require.NotNil(t, s.DoneAt)
	assert.Equal(t, t0.Add(time.Minute), *s.DoneAt)
	assert.Len(t, s.Fee, 1)
}

func TestSubTask_RegenerateDoneArchives(t *testing.T) {
	s := newDoneLyrics(t)
	oldID := s.SubTaskID

	s.Regenerate(t0.Add(time.Hour))

	assert.NotEqual(t, oldID, s.SubTaskID)
	assert.Equal(t, SubTaskInProgress, s.Status)
	assert.Equal(t, t0.Add(time.Hour), s.CreatedAt)
	assert.Nil(t, s.DoneAt)
	require.Len(t, s.History, 1)
	assert.Equal(t, oldID, s.History[0].SubTaskID)
	assert.Equal(t, SubTaskDone, s.History[0].Status)
	require.NotNil(t, s.History[0].Output)
	assert.Equal(t, "la la", s.History[0].Output.Lyrics)

	assert.Nil(t, s.Output)
	// 费用在槽位上累计
	assert.Len(t, s.Fee, 1)
}

func TestSubTask_RegenerateNewestFirst(t *testing.T) {
	s := newDoneLyrics(t)
	first := s.SubTaskID
	s.Regenerate(t0.Add(time.Hour))
	second := s.SubTaskID
	s.Complete(LyricsResult{Lyrics: "v2"}, LLMFee(), t0.Add(2*time.Hour))
	s.Regenerate(t0.Add(3 * time.Hour))

	require.Len(t, s.History, 2)
	assert.Equal(t, second, s.History[0].SubTaskID)
	assert.Equal(t, first, s.History[1].SubTaskID)
}

func TestSubTask_RegenerateFailedOrInProgressDoesNotArchive(t *testing.T) {
	s := newDoneLyrics(t)
	s.Regenerate(t0.Add(time.Hour))
	require.Len(t, s.History, 1)

	// in_progress
	id := s.SubTaskID
	s.Regenerate(t0.Add(2 * time.Hour))
	assert.Len(t, s.History, 1)
	assert.NotEqual(t, id, s.SubTaskID)

	// failed
	s.Fail()
	assert.Nil(t, s.Output)
	s.Regenerate(t0.Add(3 * time.Hour))
	assert.Len(t, s.History, 1)
}

func TestSubTask_OutputIffDone(t *testing.T) {
	s := newDoneLyrics(t)
	assert.Equal(t, s.Output != nil, s.Status == SubTaskDone)
	s.Fail()
	assert.Equal(t, s.Output != nil, s.Status == SubTaskDone)
	s.Restart(LyricsRequest{TaskID: "t1", Style: "pop"}, t0)
	assert.Equal(t, s.Output != nil, s.Status == SubTaskDone)
	assert.Equal(t, "pop", s.Input.Style)
}

func TestSubTask_Owns(t *testing.T) {
	s := newDoneLyrics(t)
	id := s.SubTaskID
	assert.True(t, s.Owns(id))
	s.Regenerate(t0)
	assert.False(t, s.Owns(id))

	var nilSub *Lyrics
	assert.False(t, nilSub.Owns(id))
}

func TestSubTask_JSONShape(t *testing.T) {
	s := newDoneLyrics(t)
	s.Regenerate(t0.Add(time.Hour))

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, k := range []string{"sub_task_id", "status", "created_at", "done_at", "input", "output", "fee", "history"} {
		assert.Contains(t, raw, k)
	}
	hist := raw["history"].([]interface{})
	require.Len(t, hist, 1)
	assert.NotContains(t, hist[0].(map[string]interface{}), "history")
}
