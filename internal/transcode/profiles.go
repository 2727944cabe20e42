package transcode

import (
	"fmt"
	"sort"
	"strings"
)

// Profile describes how to produce one target format.
type Profile struct {
	Format string
	// AudioOnly drops video streams.
	AudioOnly bool
	Codec     []string
	// Presets maps quality names to extra arguments.
	Presets map[string][]string
	// DefaultPreset applies when the request names no quality.
	DefaultPreset string
}

// Quality presets shared by the profiles.
const (
	QualityBest   = "best"
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Channel layout modifiers usable with any audio profile.
var audioModifiers = map[string][]string{
	"stereo48k": {"-ac", "2", "-ar", "48000"},
	"voice":     {"-ac", "1", "-ar", "24000"},
}

var profiles = map[string]Profile{
	"mp3": {
		Format: "mp3", AudioOnly: true,
		Codec: []string{"-c:a", "libmp3lame"},
		Presets: map[string][]string{
			QualityBest: {"-q:a", "0"}, QualityHigh: {"-q:a", "2"},
			QualityMedium: {"-q:a", "4"}, QualityLow: {"-q:a", "7"},
		},
		DefaultPreset: QualityHigh,
	},
	"m4a": aacProfile("m4a"),
	"aac": aacProfile("aac"),
	"opus": {
		Format: "opus", AudioOnly: true,
		Codec: []string{"-c:a", "libopus"},
		Presets: map[string][]string{
			QualityBest: {"-b:a", "192k"}, QualityHigh: {"-b:a", "160k"},
			QualityMedium: {"-b:a", "96k"}, QualityLow: {"-b:a", "64k"},
		},
		DefaultPreset: QualityHigh,
	},
	"ogg": {
		Format: "ogg", AudioOnly: true,
		Codec: []string{"-c:a", "libvorbis"},
		Presets: map[string][]string{
			QualityBest: {"-q:a", "8"}, QualityHigh: {"-q:a", "6"},
			QualityMedium: {"-q:a", "4"}, QualityLow: {"-q:a", "2"},
		},
		DefaultPreset: QualityHigh,
	},
	"flac": {Format: "flac", AudioOnly: true, Codec: []string{"-c:a", "flac"}},
	"wav":  {Format: "wav", AudioOnly: true, Codec: []string{"-c:a", "pcm_s16le"}},
	"mp4": {
		Format: "mp4",
		Codec:  []string{"-c:v", "libx264", "-preset", "medium", "-c:a", "aac", "-movflags", "+faststart"},
		Presets: map[string][]string{
			QualityBest: {"-crf", "18"}, QualityHigh: {"-crf", "21"},
			QualityMedium: {"-crf", "23"}, QualityLow: {"-crf", "28"},
		},
		DefaultPreset: QualityMedium,
	},
	"webm": {
		Format: "webm",
		Codec:  []string{"-c:v", "libvpx-vp9", "-b:v", "0", "-c:a", "libopus"},
		Presets: map[string][]string{
			QualityBest: {"-crf", "24"}, QualityHigh: {"-crf", "30"},
			QualityMedium: {"-crf", "34"}, QualityLow: {"-crf", "40"},
		},
		DefaultPreset: QualityHigh,
	},
	"mkv": {Format: "mkv", Codec: []string{"-c", "copy"}},
}

func aacProfile(format string) Profile {
	return Profile{
		Format: format, AudioOnly: true,
		Codec: []string{"-c:a", "aac"},
		Presets: map[string][]string{
			QualityBest: {"-b:a", "256k"}, QualityHigh: {"-b:a", "192k"},
			QualityMedium: {"-b:a", "128k"}, QualityLow: {"-b:a", "96k"},
		},
		DefaultPreset: QualityHigh,
	}
}

// Lookup returns the profile for format. Unknown formats get a bare profile
// that lets the transcoder infer codecs from the output extension.
func Lookup(format string) (Profile, bool) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if p, ok := profiles[format]; ok {
		return p, true
	}
	return Profile{Format: format}, false
}

// Formats lists the formats with a dedicated profile.
func Formats() []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks that quality is meaningful for format.
func Validate(format, quality string) error {
	quality = strings.ToLower(strings.TrimSpace(quality))
	if quality == "" {
		return nil
	}
	profile, _ := Lookup(format)
	if _, ok := profile.Presets[quality]; ok {
		return nil
	}
	if _, ok := audioModifiers[quality]; ok && profile.AudioOnly {
		return nil
	}
	return fmt.Errorf("quality %q is not supported for format %q", quality, profile.Format)
}

// QualityArgs returns the arguments for quality, falling back to the
// profile's default preset for an empty quality.
func (p Profile) QualityArgs(quality string) []string {
	quality = strings.ToLower(strings.TrimSpace(quality))
	if quality == "" {
		quality = p.DefaultPreset
	}
	if args, ok := p.Presets[quality]; ok {
		return args
	}
	if mod, ok := audioModifiers[quality]; ok && p.AudioOnly {
		return append(append([]string(nil), p.Presets[p.DefaultPreset]...), mod...)
	}
	return nil
}
