package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/talkbox/internal/chat"
	"github.com/dgnsrekt/talkbox/reveal"
	"github.com/spf13/viper"
)

// options are the settings resolved from flags, environment and the config
// file.
type options struct {
	NPC     string
	NPCDir  string
	Model   string
	BaseURL string
	Tools   bool
	Mock    bool
	Mouse   bool

	Interval time.Duration
	Delays   reveal.DelayTable

	TypingSound bool
	Volume      float64
	Sample      string
	MusicTrack  string
	MusicVolume float64

	HistoryWindow int
	RateLimit     float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("npc", "")
	v.SetDefault("npc_dir", "")
	v.SetDefault("model", chat.DefaultModel)
	v.SetDefault("base_url", "")
	v.SetDefault("tools", true)
	v.SetDefault("mock", false)
	v.SetDefault("typing.interval", reveal.DefaultInterval)
	v.SetDefault("sound.typing", true)
	v.SetDefault("sound.volume", 0.5)
	v.SetDefault("sound.sample", "")
	v.SetDefault("music.track", "")
	v.SetDefault("music.volume", 0.3)
	v.SetDefault("history.window", chat.DefaultWindow)
	v.SetDefault("rate_limit", 0.5)
}

func loadOptions() (options, error) {
	if configFile != "" && configFile != viper.ConfigFileUsed() {
		viper.SetConfigFile(expandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return options{}, fmt.Errorf("unable to read config file: %w", err)
		}
	}
	return optionsFrom(viper.GetViper())
}

func optionsFrom(v *viper.Viper) (options, error) {
	o := options{
		NPC:           v.GetString("npc"),
		NPCDir:        expandPath(v.GetString("npc_dir")),
		Model:         v.GetString("model"),
		BaseURL:       v.GetString("base_url"),
		Tools:         v.GetBool("tools"),
		Mock:          v.GetBool("mock"),
		Mouse:         v.GetBool("mouse"),
		Interval:      v.GetDuration("typing.interval"),
		TypingSound:   v.GetBool("sound.typing") && !v.GetBool("no_sound"),
		Volume:        v.GetFloat64("sound.volume"),
		Sample:        expandPath(v.GetString("sound.sample")),
		MusicTrack:    expandPath(v.GetString("music.track")),
		MusicVolume:   v.GetFloat64("music.volume"),
		HistoryWindow: v.GetInt("history.window"),
		RateLimit:     v.GetFloat64("rate_limit"),
	}

	if o.Interval <= 0 {
		return o, fmt.Errorf("typing.interval must be positive, got %s", o.Interval)
	}
	if err := checkVolume("sound.volume", o.Volume); err != nil {
		return o, err
	}
	if err := checkVolume("music.volume", o.MusicVolume); err != nil {
		return o, err
	}
	if o.HistoryWindow < 1 {
		return o, fmt.Errorf("history.window must be at least 1, got %d", o.HistoryWindow)
	}
	if o.RateLimit <= 0 {
		return o, fmt.Errorf("rate_limit must be positive, got %v", o.RateLimit)
	}
	for _, p := range []string{o.Sample, o.MusicTrack} {
		if ext := strings.ToLower(filepath.Ext(p)); p != "" && ext != ".wav" && ext != ".mp3" {
			return o, fmt.Errorf("'%s' is not a supported audio file: use '.wav' or '.mp3'", p)
		}
	}

	if v.IsSet("typing.delays") {
		var ms map[string]float64
		if err := v.UnmarshalKey("typing.delays", &ms); err != nil {
			return o, fmt.Errorf("typing.delays: %w", err)
		}
		delays, skipped := reveal.DelaysFromMillis(ms)
		for _, k := range skipped {
			log.Warn("ignoring typing delay, keys must be a single character", "key", k)
		}
		o.Delays = delays
	}

	return o, nil
}

func checkVolume(key string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %.2f", key, v)
	}
	return nil
}
