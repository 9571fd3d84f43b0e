package config

import (
	"errors"

	"github.com/ossyrian/vstarfw/internal/vstar"
)

// Defaults for the output locations, matching the names the camera
// vendor's own tooling uses.
const (
	DefaultOutputFile   = "firmware.bin"
	DefaultManifestFile = "buildfile.txt"
	DefaultPayloadDir   = "."
)

// Config holds app configuration
type Config struct {
	// Actions. Exactly one of these is set.
	ExtractFile string `mapstructure:"extract"` // container to unpack
	BuildFile   string `mapstructure:"create"`  // manifest to assemble from
	ListFile    string `mapstructure:"list"`    // container to inspect

	// OutputFile is where create writes the container
	OutputFile string `mapstructure:"output"`
	// ManifestFile is where extract writes the buildfile
	ManifestFile string `mapstructure:"manifest"`
	// PayloadDir is where extract writes payload files and create reads them
	PayloadDir string `mapstructure:"payload_dir"`

	// Version and Factory are written for manifest rows that carry no
	// values of their own
	Version int32  `mapstructure:"version"`
	Factory uint32 `mapstructure:"factory"`

	// KeepHeaderFields makes extract record version and factory in the
	// manifest so that create reproduces them
	KeepHeaderFields bool `mapstructure:"keep_header_fields"`
	// AllowOverwrite lets extract write two entries with the same filename,
	// the later one replacing the earlier
	AllowOverwrite bool `mapstructure:"allow_overwrite"`

	DryRun       bool   `mapstructure:"dry_run"`
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		OutputFile:   DefaultOutputFile,
		ManifestFile: DefaultManifestFile,
		PayloadDir:   DefaultPayloadDir,
		Version:      vstar.DefaultVersion,
		Factory:      vstar.DefaultFactory,
		LogLevel:     "info",
	}
}

// DefaultHeader returns the header values applied to manifest rows
// without explicit version and factory.
func (c *Config) DefaultHeader() vstar.Header {
	return vstar.Header{Version: c.Version, Factory: c.Factory}
}

// Action is the operation a run performs.
type Action int

const (
	ActionNone Action = iota
	ActionExtract
	ActionCreate
	ActionList
)

func (a Action) String() string {
	switch a {
	case ActionExtract:
		return "extract"
	case ActionCreate:
		return "create"
	case ActionList:
		return "list"
	default:
		return "none"
	}
}

// ErrAction is returned when zero or several actions are configured.
var ErrAction = errors.New("exactly one of extract, create or list must be set")

// Action returns the single configured action. Flags are mutually exclusive
// already, but config files and environment variables are not.
func (c *Config) Action() (Action, error) {
	action := ActionNone
	set := 0
	if c.ExtractFile != "" {
		action = ActionExtract
		set++
	}
	if c.BuildFile != "" {
		action = ActionCreate
		set++
	}
	if c.ListFile != "" {
		action = ActionList
		set++
	}
	if set != 1 {
		return ActionNone, ErrAction
	}
	return action, nil
}
