// Package ffmpeg shells out to ffmpeg and ffprobe to render drawtext
// watermarks onto images and video. Images are re-encoded with -q:v while
// video uses -crf and copies the audio stream untouched.
package ffmpeg
