package translate

import (
	"fmt"
	"sort"
)

// DefaultLanguage is used when a requested language is not in the supported set.
const DefaultLanguage = "English"

// defaultVoice is used when a requested gender is not in the supported set.
const defaultVoice = "Leda"

// languages maps display names to speech locale codes.
var languages = map[string]string{
	"English":    "en-US",
	"Spanish":    "es-ES",
	"French":     "fr-FR",
	"German":     "de-DE",
	"Italian":    "it-IT",
	"Portuguese": "pt-BR",
	"Hindi":      "hi-IN",
	"Chinese":    "zh-CN",
	"Japanese":   "ja-JP",
	"Korean":     "ko-KR",
	"Arabic":     "ar-SA",
	"Russian":    "ru-RU",
	"Tamil":      "ta-IN",
}

// voices maps a voice gender to a prebuilt provider voice.
var voices = map[string]string{
	"male":   "Fenrir",
	"female": "Leda",
}

// SupportedLanguage reports whether the display name is in the supported set.
func SupportedLanguage(name string) bool {
	_, ok := languages[name]
	return ok
}

// SupportedGender reports whether the voice gender is in the supported set.
func SupportedGender(gender string) bool {
	_, ok := voices[gender]
	return ok
}

// LocaleFor resolves a display name to its locale code, falling back to the
// default language when unrecognized.
func LocaleFor(name string) string {
	if code, ok := languages[name]; ok {
		return code
	}
	return languages[DefaultLanguage]
}

// VoiceFor resolves a gender to a provider voice, falling back to the default
// voice when unrecognized.
func VoiceFor(gender string) string {
	if voice, ok := voices[gender]; ok {
		return voice
	}
	return defaultVoice
}

// LanguageNames returns the supported display names in sorted order.
func LanguageNames() []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VoiceGenders returns the supported voice genders in sorted order.
func VoiceGenders() []string {
	genders := make([]string, 0, len(voices))
	for g := range voices {
		genders = append(genders, g)
	}
	sort.Strings(genders)
	return genders
}

// SystemInstruction constrains the remote model to pure speech translation.
func SystemInstruction(targetLanguage string) string {
	return fmt.Sprintf("You are a speech translator. Listen to the incoming audio, "+
		"automatically detect the source language, and translate the speech into "+
		"colloquial %s. Speak only the translated utterance. Do not transcribe the "+
		"original, do not add commentary, and do not speak again until new user "+
		"speech arrives.", targetLanguage)
}
