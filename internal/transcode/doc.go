// Package transcode converts downloaded media with an external ffmpeg-compatible
// transcoder.
//
// A Profile maps each supported target format to codec arguments and named
// quality presets. When the downloaded container already matches the target
// and no quality preset was requested, Stage skips the transcoder entirely
// and reports the input as its output; this is an explicit decision recorded
// in StageResult.Skipped. Otherwise the transcoder writes into a fresh path
// inside the job workspace and the result is verified on disk.
package transcode
