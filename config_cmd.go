package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# npc to talk to first, by id or name (default: first in the roster)
npc: ""
# directory of npc folders, each with a character.md and optional portrait.txt
# (default: built-in roster)
npc_dir: ""
# chat model and OpenAI-compatible endpoint; the key is read from OPENAI_API_KEY
model: "gpt-4o-mini"
base_url: ""
# let npcs look up the weather
tools: true
# offline scripted replies, no API key needed
mock: false
# requests per second
rate_limit: 0.5

typing:
  # base delay between characters
  interval: "40ms"
  # extra pause in milliseconds after these characters
  delays:
    ".": 300
    "!": 300
    "?": 300
    ":": 200
    ";": 200
    ",": 150

sound:
  # typing sound while replies are typed out
  typing: true
  # 0.0 to 1.0
  volume: 0.5
  # wav or mp3 to use instead of the built-in clicks
  sample: ""

music:
  # wav or mp3 to loop in the background
  track: ""
  volume: 0.3

history:
  # past messages sent along with each new one
  window: 10
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the talkbox config file",
	Long:    paragraph(fmt.Sprintf("\n%s the talkbox config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("talkbox config\ntalkbox config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// A broken config file must still be editable.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		configFile = expandPath(configFile)
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Talkbox", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
