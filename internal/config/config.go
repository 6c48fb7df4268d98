// Package config holds runtime configuration: viper-backed environment
// settings for the worker loop and the named quality presets resolved into
// each job at enqueue time.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/plexify-media/plexify/internal/job"
)

// EnvPrefix is the environment variable prefix, e.g. PLEXIFY_FFMPEG_CRF.
const EnvPrefix = "PLEXIFY"

// Config holds the settings a worker process reads once at startup.
// Encoding parameters are resolved into each Job at creation; the executor
// never reads this struct.
type Config struct {
	// Encoder defaults applied to newly created jobs when no preset is
	// named.
	FFmpegPreset       string
	FFmpegCRF          string
	FFmpegAudioBitrate string

	// SleepInterval is the idle wait between claim attempts when the
	// queue is empty.
	SleepInterval time.Duration

	// JobCooldown is the fixed delay after a failed job, so a
	// consistently failing job does not hot-loop.
	JobCooldown time.Duration

	// StaleJobTimeout controls the startup sweep that requeues
	// in_progress records abandoned by crashed workers. Zero disables
	// the sweep.
	StaleJobTimeout time.Duration
}

// Load reads configuration from the environment with defaults matching the
// original worker behavior.
func Load() *Config {
	v := viper.New()
	v.SetDefault("ffmpeg_preset", "veryfast")
	v.SetDefault("ffmpeg_crf", "23")
	v.SetDefault("ffmpeg_audio_bitrate", "128k")
	v.SetDefault("sleep_interval", "60s")
	v.SetDefault("job_cooldown", "10s")
	v.SetDefault("stale_job_timeout", "12h")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	return &Config{
		FFmpegPreset:       v.GetString("ffmpeg_preset"),
		FFmpegCRF:          v.GetString("ffmpeg_crf"),
		FFmpegAudioBitrate: v.GetString("ffmpeg_audio_bitrate"),
		SleepInterval:      v.GetDuration("sleep_interval"),
		JobCooldown:        v.GetDuration("job_cooldown"),
		StaleJobTimeout:    v.GetDuration("stale_job_timeout"),
	}
}

// QualitySettings returns the environment-derived encoder settings.
func (c *Config) QualitySettings() job.QualitySettings {
	return job.QualitySettings{
		Preset:       c.FFmpegPreset,
		CRF:          c.FFmpegCRF,
		AudioBitrate: c.FFmpegAudioBitrate,
	}
}

// quality presets by name. Resolved once at enqueue time and written into
// the job record.
var presets = map[string]job.QualitySettings{
	"fast":     {Preset: "ultrafast", CRF: "28", AudioBitrate: "96k"},
	"balanced": {Preset: "veryfast", CRF: "23", AudioBitrate: "128k"},
	"quality":  {Preset: "slow", CRF: "19", AudioBitrate: "192k"},
}

// QualityPreset resolves a named preset. An unknown name is an error so a
// typo never silently falls back to defaults.
func QualityPreset(name string) (job.QualitySettings, error) {
	qs, ok := presets[name]
	if !ok {
		return job.QualitySettings{}, fmt.Errorf("unknown quality preset %q (use 'fast', 'balanced' or 'quality')", name)
	}
	return qs, nil
}
