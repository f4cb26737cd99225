// Package main provides the entry point for the talkbox CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/talkbox/internal/audio"
	"github.com/dgnsrekt/talkbox/internal/chat"
	"github.com/dgnsrekt/talkbox/internal/npc"
	"github.com/dgnsrekt/talkbox/ui"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	opts       options

	rootCmd = &cobra.Command{
		Use:   "talkbox [NPC]",
		Short: "Chat with characters who type their replies out",
		Long: paragraph(
			fmt.Sprintf("\nChat with NPCs who %s, one character at a time.", keyword("type their replies out")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			roster, err := loadRoster(viper.GetString("npc_dir"))
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			var ids []string
			for _, n := range roster.Find(toComplete) {
				ids = append(ids, n.ID)
			}
			return ids, cobra.ShellCompDirectiveNoFileComp
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// environment holds settings that only come from the environment.
type environment struct {
	APIKey string `env:"OPENAI_API_KEY"`
}

func validateOptions(cmd *cobra.Command) error {
	o, err := loadOptions()
	if err != nil {
		return err
	}
	opts = o

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	// The chat itself needs a terminal; subcommands don't.
	if !cmd.HasParent() && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("talkbox needs a terminal to run")
	}
	return nil
}

func execute(_ *cobra.Command, args []string) error {
	if len(args) == 1 {
		opts.NPC = args[0]
	}

	e, err := env.ParseAs[environment]()
	if err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}

	roster, err := loadRoster(opts.NPCDir)
	if err != nil {
		return err
	}
	if opts.NPC != "" {
		if _, err := roster.Resolve(opts.NPC); err != nil {
			return err
		}
	}

	provider, err := newProvider(opts, e.APIKey)
	if err != nil {
		return err
	}
	session := chat.NewSession(provider, chat.SessionConfig{
		Window:    opts.HistoryWindow,
		RateLimit: rate.Limit(opts.RateLimit),
	})

	typing, music := setupAudio(opts)
	defer func() {
		_ = typing.Close()
		if music != nil {
			_ = music.Close()
		}
	}()

	return runTUI(roster, session, typing, music)
}

func runTUI(roster *npc.Roster, session *chat.Session, typing *audio.TypingSound, music *audio.Music) error {
	// Read environment to get display settings
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	if _, ok := styles.DefaultStyles[cfg.GlamourStyle]; !ok && cfg.GlamourStyle != styles.AutoStyle {
		log.Warn("unknown glamour style, using auto", "style", cfg.GlamourStyle)
		cfg.GlamourStyle = styles.AutoStyle
	}

	cfg.NPC = opts.NPC
	cfg.Interval = opts.Interval
	cfg.Delays = opts.Delays
	cfg.EnableMouse = opts.Mouse

	p := ui.NewProgram(cfg, ui.Deps{
		Roster:  roster,
		Session: session,
		Typing:  typing,
		Music:   music,
	})

	if opts.NPCDir != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			err := npc.Watch(ctx, opts.NPCDir, func(r *npc.Roster, err error) {
				p.Send(ui.RosterReloaded(r, err))
			})
			if err != nil {
				log.Warn("not watching npc directory", "dir", opts.NPCDir, "error", err)
			}
		}()
	}

	// Run Bubble Tea program
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// loadRoster reads the roster from dir, or the built-in one when dir is
// empty.
func loadRoster(dir string) (*npc.Roster, error) {
	if dir == "" {
		return npc.Builtin()
	}
	r, err := npc.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to load npcs from %s: %w", dir, err)
	}
	return r, nil
}

// newProvider picks the chat backend. Without an API key talkbox still runs,
// with offline replies.
func newProvider(o options, apiKey string) (chat.Provider, error) {
	if o.Mock {
		return chat.NewMockProvider(), nil
	}
	p, err := chat.NewOpenAI(chat.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: o.BaseURL,
		Model:   o.Model,
		Tools:   o.Tools,
	})
	if errors.Is(err, chat.ErrNoAPIKey) {
		log.Warn("OPENAI_API_KEY is not set, using offline replies")
		return chat.NewMockProvider(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to create chat client: %w", err)
	}
	return p, nil
}

// setupAudio prepares the typing sound and, if configured, the music track.
// Missing devices or unreadable files degrade to silence.
func setupAudio(o options) (*audio.TypingSound, *audio.Music) {
	out := audio.OpenOutput()

	clip := audio.SynthesizeTyping(3*time.Second, time.Now().UnixNano())
	if o.Sample != "" {
		c, err := audio.LoadClip(o.Sample)
		if err != nil {
			log.Warn("unable to load typing sample, using the built-in one", "path", o.Sample, "error", err)
		} else {
			clip = c
		}
	}
	typing := audio.NewTypingSound(out, clip, audio.TypingConfig{
		Enabled: o.TypingSound,
		Volume:  o.Volume,
	})

	if o.MusicTrack == "" {
		return typing, nil
	}
	track, err := audio.LoadClip(o.MusicTrack)
	if err != nil {
		log.Warn("unable to load music track", "path", o.MusicTrack, "error", err)
		return typing, nil
	}
	return typing, audio.NewMusic(out, track, o.MusicVolume)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("npc-dir", "", "directory of npc folders (default: built-in roster)")
	rootCmd.Flags().String("model", chat.DefaultModel, "chat model")
	rootCmd.Flags().String("base-url", "", "OpenAI-compatible API base URL")
	rootCmd.Flags().Bool("mock", false, "use offline scripted replies")
	rootCmd.Flags().Bool("no-sound", false, "start with the typing sound off")
	rootCmd.Flags().Bool("debug", false, "log at debug level")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("npc_dir", rootCmd.PersistentFlags().Lookup("npc-dir"))
	_ = viper.BindPFlag("model", rootCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("base_url", rootCmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("mock", rootCmd.Flags().Lookup("mock"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("no_sound", rootCmd.Flags().Lookup("no-sound"))

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, npcsCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "talkbox")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find the configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "talkbox")}, dirs...)
	}

	if c := os.Getenv("TALKBOX_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("talkbox")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("talkbox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "talkbox.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	p, err := homedir.Expand(path)
	if err != nil {
		log.Debug("unable to expand path", "path", path, "error", err)
		return path
	}
	return p
}
