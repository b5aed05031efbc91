package service

import (
	"fmt"

	"DigitalHuman-server/models"
)

// 画风表，style_id -> 名称
var styleNames = map[int]string{
	1:  "Simpsons cartoon",
	2:  "Pixar 3D cinematic",
	3:  "Futurama cartoon",
	4:  "Pixiv-CG realistic",
	5:  "Japanese 2D anime",
	6:  "pepe",
	7:  "cartoon illustration",
	8:  "Bored Ape Yacht Club",
	9:  "Pixel art",
	10: "Abstract geometric",
	11: "Cyber goth",
	12: "Doll-like anime",
}

func StyleName(styleID int) (string, bool) {
	name, ok := styleNames[styleID]
	return name, ok
}

const (
	firstFrameImagePrompt = "Redraw the person in the reference image as a full-body character in %s style. " +
		"Keep the facial features recognizable, plain light background, character centered and facing the camera."
	danceImagePrompt = "Put the character from the second image into the exact dance pose of the first image. " +
		"Keep the character's style, face and outfit. Plain light background."
	singImagePrompt = "Put the character from the second image into the exact singing pose of the first image, " +
		"holding a microphone. Keep the character's style, face and outfit. Plain light background."

	sloganPrompt = `Write a short personal slogan and a one-paragraph character description for the social media account @%s.
Bio: %s
Answer only with a JSON object: {"slogan": "...", "description": "..."}`
)

func firstFramePrompt(style string) string {
	return fmt.Sprintf(firstFrameImagePrompt, style)
}

func sloganPromptFor(account, bio string) string {
	return fmt.Sprintf(sloganPrompt, account, bio)
}

// 每个视频场景的动作提示词
var videoPrompts = map[models.VideoKey]string{
	models.VideoKeyTurn:    "The character slowly turns around 360 degrees in place and faces the camera again.",
	models.VideoKeySaying:  "The character talks to the camera with natural lip movement and small hand gestures.",
	models.VideoKeyGogo:    "The character cheers energetically, pumping a fist in the air.",
	models.VideoKeyDance:   "The character dances rhythmically following the pose, smooth full-body motion.",
	models.VideoKeyAngry:   "The character frowns and crosses their arms, visibly annoyed.",
	models.VideoKeyDefault: "The character stands naturally, blinking and breathing, subtle idle motion.",
	models.VideoKeyThink:   "The character puts a hand on the chin and looks up, thinking.",
	models.VideoKeySing:    "The character sings into the microphone with expressive face and body movement.",
	models.VideoKeySpeech:  "The character gives a confident speech to the camera with open hand gestures.",
	models.VideoKeyFigure:  "The character poses like a collectible figure on a display stand, camera slowly orbiting.",
}

func videoPrompt(key models.VideoKey) string {
	if p, ok := videoPrompts[key]; ok {
		return p
	}
	return videoPrompts[models.VideoKeyDefault]
}

// videoSourceImage dance/sing/figure 用各自的首帧，其余用通用首帧
func videoSourceImage(key models.VideoKey, cover *models.CoverResult) string {
	switch key {
	case models.VideoKeyDance:
		return cover.DanceFirstFrameImgURL
	case models.VideoKeySing:
		return cover.SingFirstFrameImgURL
	case models.VideoKeyFigure:
		if cover.FigureFirstFrameImgURL != "" {
			return cover.FigureFirstFrameImgURL
		}
	}
	return cover.FirstFrameImgURL
}
