// Package config resolves settings from defaults, TOML files, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ldi/todo/internal/logging"
)

const (
	DefaultDir          = ".todo"
	DefaultDBPath       = ".todo/todo.db"
	DefaultSnapshotPath = ".todo/snapshot.jsonl"
	DefaultLogFile      = ".todo/todo.log"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultWebAddr      = "localhost:8080"
	FileName            = "todo.toml"
)

type Config struct {
	DBPath       string `toml:"db_path"`
	SnapshotPath string `toml:"snapshot_path"`
	AutoSnapshot bool   `toml:"auto_snapshot"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
	LogFile      string `toml:"log_file"`
	WebAddr      string `toml:"web_addr"`

	// Files lists the config files that were applied, lowest precedence first.
	Files []string `toml:"-"`
}

func setDefaults(cfg *Config) {
	cfg.DBPath = DefaultDBPath
	cfg.SnapshotPath = DefaultSnapshotPath
	cfg.LogFile = DefaultLogFile
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.WebAddr = DefaultWebAddr
}

// Load registers the global flags on fs, parses args and layers:
// 1. Defaults
// 2. User config file ($XDG_CONFIG_HOME/todo/todo.toml)
// 3. Project config file (todo.toml or .todo/todo.toml), or --config
// 4. Environment variables (TODO_*)
// 5. Flags set on the command line
// The remaining arguments are left in fs.Args().
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("todo", flag.ContinueOnError)
	}

	var flags Config
	var configFile string
	fs.StringVar(&flags.DBPath, "db-path", DefaultDBPath, "Path to database file")
	fs.StringVar(&flags.SnapshotPath, "snapshot-path", DefaultSnapshotPath, "Path to snapshot file")
	fs.BoolVar(&flags.AutoSnapshot, "auto-snapshot", false, "Export a snapshot after every change")
	fs.StringVar(&flags.LogLevel, "log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&flags.LogFormat, "log-format", DefaultLogFormat, "Log format (text, json, logfmt)")
	fs.StringVar(&flags.LogFile, "log-file", DefaultLogFile, "Log file used while the terminal UI is running")
	fs.StringVar(&configFile, "config", "", "Path to a config file (replaces the project config file)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{}
	setDefaults(cfg)

	if path := findUserConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load user config file %s: %w", path, err)
		}
	}

	projectFile := configFile
	if projectFile == "" {
		projectFile = findProjectConfigFile()
	}
	if projectFile != "" {
		if err := loadConfigFile(cfg, projectFile); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", projectFile, err)
		}
	}

	loadFromEnv(cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db-path":
			cfg.DBPath = flags.DBPath
		case "snapshot-path":
			cfg.SnapshotPath = flags.SnapshotPath
		case "auto-snapshot":
			cfg.AutoSnapshot = flags.AutoSnapshot
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		case "log-file":
			cfg.LogFile = flags.LogFile
		}
	})

	if err := finalizeConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile decodes path over cfg. Keys the file sets replace the
// current values; unknown keys are rejected.
func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	cfg.Files = append(cfg.Files, path)
	return nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TODO_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TODO_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("TODO_AUTO_SNAPSHOT"); v != "" {
		cfg.AutoSnapshot = boolFromString(v)
	}
	if v := os.Getenv("TODO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TODO_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TODO_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TODO_WEB_ADDR"); v != "" {
		cfg.WebAddr = v
	}
}

func boolFromString(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func finalizeConfig(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if _, err := logging.ParseFormatter(cfg.LogFormat); err != nil {
		return err
	}
	cfg.DBPath = expandPath(cfg.DBPath)
	cfg.SnapshotPath = expandPath(cfg.SnapshotPath)
	cfg.LogFile = expandPath(cfg.LogFile)
	return nil
}

func findUserConfigFile() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	path := filepath.Join(dir, "todo", FileName)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func findProjectConfigFile() string {
	for _, name := range []string{FileName, filepath.Join(DefaultDir, FileName)} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func expandPath(p string) string {
	if p == ":memory:" || p == "" {
		return p
	}
	expanded := os.ExpandEnv(p)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		return filepath.Join(home, strings.TrimPrefix(expanded[1:], "/"))
	}
	return expanded
}
