// Package config loads the watcher daemon's configuration from a
// watcher.conf INI file with CLI flag overrides, following the teacher's
// INI-plus-flags convention (lnd.go's loadConfig, reconstructed here
// against the go-flags fork the teacher's go.mod actually pins:
// jessevdk/go-flags).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "watcher.conf"
	defaultIntervalSecs   = int64(5)
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "watcher.log"
	defaultMaxLogFileSize = 10
	defaultMaxLogFiles    = 3
)

// ChainEndpoint describes one contract the watcher talks to: its name
// (used as the store/task-registry key), its home domain id, and the RPC
// endpoint an adapter dials to reach it.
type ChainEndpoint struct {
	Name     string `long:"name" description:"contract name, used as the store and task-registry key"`
	Domain   uint32 `long:"domain" description:"home domain id this contract enforces updates for"`
	Endpoint string `long:"endpoint" description:"RPC endpoint the chain adapter dials"`
}

// UnmarshalFlag parses a name:domain:endpoint replica descriptor.
func (e *ChainEndpoint) UnmarshalFlag(value string) error {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("config: replica %q is not name:domain:endpoint", value)
	}
	domain, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("config: replica %q domain: %w", value, err)
	}
	*e = ChainEndpoint{Name: parts[0], Domain: uint32(domain), Endpoint: parts[2]}
	return nil
}

// Config is the watcher daemon's full configuration surface (spec.md §6
// "Configuration surface"): the polling interval, signer key material,
// the connection-manager endpoint list, and the home/replica chain
// descriptors consumed by AgentCore.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"path to configuration file"`
	DataDir    string `long:"datadir" description:"directory to store the persistent update store"`

	LogDir         string `long:"logdir" description:"directory to store log files"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"maximum log file size in MB before rotation"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"maximum number of rotated log files to keep"`
	DebugLevel     string `long:"debuglevel" description:"logging level for all subsystems"`

	IntervalSeconds int64  `long:"interval" description:"polling interval, in seconds, shared by every poller"`
	SignerKeyHex    string `long:"signerkey" description:"hex-encoded secp256k1 private key used to sign failure notifications"`

	ConnectionManagers []string `long:"connmgr" description:"connection-manager RPC endpoint (may be repeated)"`

	Home     ChainEndpoint   `group:"home" namespace:"home"`
	Replicas []ChainEndpoint `long:"replica" description:"replica chain descriptor, name:domain:endpoint (may be repeated)"`
}

// Default returns a Config populated with the daemon's defaults, the same
// role lnd.go's defaultConfig plays before flag/INI overlay.
func Default() *Config {
	return &Config{
		DataDir:         defaultDataDirname,
		LogDir:          defaultLogDirname,
		MaxLogFileSize:  defaultMaxLogFileSize,
		MaxLogFiles:     defaultMaxLogFiles,
		DebugLevel:      "info",
		IntervalSeconds: defaultIntervalSecs,
	}
}

// Load parses configuration the way the teacher's config loader does:
// defaults, then an INI file (if present), then CLI flags, each layer
// overriding the last. args is normally os.Args[1:].
func Load(args []string) (*Config, error) {
	cfg := Default()

	preCfg := *cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	configFile := preCfg.ConfigFile
	if configFile == "" {
		configFile = defaultConfigFilename
	}

	if _, err := os.Stat(configFile); err == nil {
		parser := flags.NewParser(cfg, flags.Default)
		if err := flags.NewIniParser(parser).ParseFile(configFile); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configFile, err)
		}
	} else {
		*cfg = preCfg
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("config: interval must be positive, got %d", c.IntervalSeconds)
	}
	if c.SignerKeyHex == "" {
		return fmt.Errorf("config: signerkey is required")
	}
	if c.Home.Name == "" {
		return fmt.Errorf("config: home.name is required")
	}
	if !filepath.IsAbs(c.DataDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("config: resolving datadir: %w", err)
		}
		c.DataDir = filepath.Join(cwd, c.DataDir)
	}
	return nil
}

// DBPath returns the path to the persistent store's database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "watcher.db")
}

// LogFilePath returns the path to the rotating log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.DataDir, c.LogDir, defaultLogFilename)
}
