package service

import "strings"

// inputKind is the command family a user input routes to.
type inputKind int

const (
	kindChat inputKind = iota
	kindImage
	kindSpeech
)

// Command families matched by case-insensitive prefix, in priority order.
var (
	imagePrefixes  = []string{"generate image", "draw", "create an image"}
	speechPrefixes = []string{"speak", "say"}
)

// classifyInput routes raw input text to a command family. The first matching
// family wins: image generation, then speech synthesis, else plain chat. For
// speech the returned remainder is the literal utterance with the leading
// verb stripped; for the other kinds it is the full trimmed text.
func classifyInput(text string) (inputKind, string) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	for _, prefix := range imagePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return kindImage, trimmed
		}
	}
	for _, prefix := range speechPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return kindSpeech, strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return kindChat, trimmed
}
