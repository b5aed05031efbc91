package service_test

import (
	"context"
	"errors"
	"testing"

	"DigitalHuman-server/service"
	"DigitalHuman-server/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestParseSlogan(t *testing.T) {
	cases := []struct {
		name string
		text string
		ok   bool
	}{
		{"plain", `{"slogan": "gm", "description": "d"}`, true},
		{"wrapped", "Sure!\n```json\n{\"slogan\": \"gm\",\n \"description\": \"d\"}\n```", true},
		{"no json", "I cannot help with that", false},
		{"missing description", `{"slogan": "gm"}`, false},
		{"broken json", `{"slogan": gm}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := service.ParseSlogan(tc.text)
			assert.Equal(t, tc.ok, res.OK)
			if tc.ok {
				assert.Equal(t, "gm", res.Value.Slogan)
				assert.NoError(t, res.Err)
			} else {
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestGenerateSlogan_RetriesUntilParsed(t *testing.T) {
	text := &mocks.TextGenerator{}
	text.On("GenerateText", mock.Anything, mock.Anything).Return("", errors.New("429")).Once()
	text.On("GenerateText", mock.Anything, mock.Anything).Return("nope", nil).Once()
	text.On("GenerateText", mock.Anything, mock.Anything).Return(`{"slogan":"gm","description":"d"}`, nil).Once()

	res := service.GenerateSlogan(context.Background(), text, "alice", "bio", zap.NewNop())
	assert.True(t, res.OK)
	text.AssertNumberOfCalls(t, "GenerateText", 3)
}

func TestGenerateSlogan_GivesUpAfterTenAttempts(t *testing.T) {
	text := &mocks.TextGenerator{}
	text.On("GenerateText", mock.Anything, mock.Anything).Return("still no json", nil)

	res := service.GenerateSlogan(context.Background(), text, "alice", "", zap.NewNop())
	assert.False(t, res.OK)
	assert.Error(t, res.Err)
	text.AssertNumberOfCalls(t, "GenerateText", 10)
}

func TestStyleName(t *testing.T) {
	name, ok := service.StyleName(8)
	assert.True(t, ok)
	assert.Equal(t, "Bored Ape Yacht Club", name)
	_, ok = service.StyleName(0)
	assert.False(t, ok)
}
