package media

// Encoding presets for course videos. Both target low bandwidth playback on
// modest offline devices.

// webmLowArgs re-encodes to VP8/Vorbis at roughly 300k video.
func webmLowArgs() []string {
	return []string{
		"-codec:v", "libvpx",
		"-quality", "best",
		"-cpu-used", "0",
		"-b:v", "300k",
		"-qmin", "30",
		"-qmax", "42",
		"-maxrate", "300k",
		"-bufsize", "1000k",
		"-vf", "scale='480:trunc(ow/a/2)*2'",
		"-codec:a", "libvorbis",
		"-b:a", "48k",
	}
}

// mp4LowArgs re-encodes to baseline H.264/AAC with faststart for progressive playback.
func mp4LowArgs() []string {
	return []string{
		"-codec:v", "h264",
		"-movflags", "+faststart",
		"-b:v", "300k",
		"-maxrate", "300k",
		"-bufsize", "1000k",
		"-profile:v", "baseline",
		"-vf", "scale='480:trunc(ow/a/2)*2'",
		"-codec:a", "aac",
		"-ar", "44100",
		"-b:a", "48k",
	}
}

// PresetArgs returns the ffmpeg arguments for the given target format.
func PresetArgs(format string) []string {
	if format == "webm" {
		return webmLowArgs()
	}
	return mp4LowArgs()
}
