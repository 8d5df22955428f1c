package config

// DefaultVoice is used whenever a requested voice is not in the catalogue.
const DefaultVoice = "en-US-AriaNeural"

type Voice struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Locale string `json:"locale"`
}

var voiceCatalogue = []Voice{
	{Name: "en-US-AriaNeural", Label: "English (US) - Aria (Female)", Locale: "en-US"},
	{Name: "en-US-GuyNeural", Label: "English (US) - Guy (Male)", Locale: "en-US"},
	{Name: "en-US-JennyNeural", Label: "English (US) - Jenny (Female)", Locale: "en-US"},
	{Name: "en-GB-RyanNeural", Label: "English (UK) - Ryan (Male)", Locale: "en-GB"},
	{Name: "en-GB-SoniaNeural", Label: "English (UK) - Sonia (Female)", Locale: "en-GB"},
	{Name: "es-ES-ElviraNeural", Label: "Spanish (Spain) - Elvira (Female)", Locale: "es-ES"},
	{Name: "fr-FR-DeniseNeural", Label: "French (France) - Denise (Female)", Locale: "fr-FR"},
	{Name: "de-DE-KatjaNeural", Label: "German (Germany) - Katja (Female)", Locale: "de-DE"},
}

// DefaultVoices returns a copy of the voice catalogue in display order.
func DefaultVoices() []Voice {
	return append([]Voice(nil), voiceCatalogue...)
}
