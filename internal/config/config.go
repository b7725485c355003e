package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/version"
)

const (
	// DefaultConfigFileName is looked up in the project directory when no
	// explicit --config is given.
	DefaultConfigFileName = "autocommit.yaml"

	// DefaultDotEnvFileName is loaded from the project directory if present.
	DefaultDotEnvFileName = ".env"

	// DefaultDebounce collapses the burst of writes a linker produces when
	// it emits the firmware image into a single hook run.
	DefaultDebounce = 500 * time.Millisecond

	// EnvPrefix namespaces all autocommit environment variables.
	EnvPrefix = "AUTOCOMMIT_"

	// PlatformIOProjectDirEnv is exported by PlatformIO to extra scripts and
	// post-action commands.
	PlatformIOProjectDirEnv = "PROJECT_DIR"
)

// Config holds all autocommit settings.
// Values are layered: defaults, then .env, then the YAML file, then
// environment variables, then command-line flags.
type Config struct {
	// ProjectDir is the build tool's project root and the git working tree.
	ProjectDir string

	// VersionFile is read to produce the version in the commit message.
	// Relative paths are resolved against ProjectDir.
	VersionFile string

	// MessagePrefix precedes the version in the commit message.
	MessagePrefix string

	// Artifacts are the build outputs watched by the watch command.
	// Empty means discover .pio/build/*/firmware.bin.
	Artifacts []string

	// Debounce is how long the watcher waits for writes to settle.
	Debounce time.Duration

	// DryRun prints the planned commit without staging or committing.
	DryRun bool

	// Strict makes git failures fail the command. By default they are
	// logged and swallowed so the build is never broken by the hook.
	Strict bool

	// NoLock disables the per-project lock file.
	NoLock bool

	// LockDir is where the lock file is created (default: OS temp dir).
	LockDir string

	// Verbose controls status output; --quiet turns it off.
	Verbose bool

	// Debug enables the structured debug log file.
	Debug bool

	// LogFile is the debug log location.
	LogFile string

	// Force overwrites an existing hook script without prompting.
	Force bool

	// NonInteractive disables prompts, answering "no".
	NonInteractive bool

	// ConfigFile is the YAML file that was loaded, if any.
	ConfigFile string

	// VersionInfo contains build-time metadata of the autocommit binary.
	VersionInfo VersionInfo
}

// VersionInfo contains build-time version metadata.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// fileConfig mirrors the YAML file. Pointers distinguish "unset" from zero values.
type fileConfig struct {
	VersionFile   *string        `yaml:"version_file"`
	MessagePrefix *string        `yaml:"message_prefix"`
	Artifacts     []string       `yaml:"artifacts"`
	Debounce      *time.Duration `yaml:"debounce"`
	Strict        *bool          `yaml:"strict"`
	Lock          *bool          `yaml:"lock"`
	LockDir       *string        `yaml:"lock_dir"`
	Debug         *bool          `yaml:"debug"`
	LogFile       *string        `yaml:"log_file"`
	Quiet         *bool          `yaml:"quiet"`
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		VersionFile:   version.DefaultFileName,
		MessagePrefix: version.DefaultMessagePrefix,
		Debounce:      DefaultDebounce,
		Verbose:       true,
		VersionInfo: VersionInfo{
			Version: "dev",
			Commit:  "unknown",
			Date:    "unknown",
		},
	}
}

// ResolveProjectDir picks the project directory from, in order, the
// explicit value, AUTOCOMMIT_PROJECT_DIR, PlatformIO's PROJECT_DIR and the
// current working directory.
func ResolveProjectDir(explicit string) (string, error) {
	dir := explicit
	if dir == "" {
		dir = getEnvString(EnvPrefix+"PROJECT_DIR", "")
	}
	if dir == "" {
		dir = getEnvString(PlatformIOProjectDirEnv, "")
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", acErrors.NewConfigError("projectDir", nil, acErrors.Wrap(err, "failed to get current directory"))
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", acErrors.NewConfigError("projectDir", dir, acErrors.Wrap(err, "failed to resolve absolute path"))
	}
	return abs, nil
}

// Load layers the .env file, the YAML file and the environment onto c for
// the given project. configFile may be empty, in which case
// autocommit.yaml in the project directory is used when it exists.
func (c *Config) Load(projectDir, configFile string) error {
	c.ProjectDir = projectDir

	if err := LoadDotEnv(projectDir); err != nil {
		return err
	}

	explicit := configFile != ""
	if !explicit {
		configFile = filepath.Join(projectDir, DefaultConfigFileName)
	}
	if err := c.LoadFile(configFile); err != nil {
		if explicit || !acErrors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	c.LoadFromEnvironment()
	return nil
}

// LoadDotEnv loads <projectDir>/.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(projectDir string) error {
	path := filepath.Join(projectDir, DefaultDotEnvFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return acErrors.NewConfigError("dotenv", path, acErrors.Wrap(err, "failed to load .env file"))
	}
	return nil
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return acErrors.NewConfigError("config", path, acErrors.Wrap(err, "failed to read config file"))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return acErrors.NewConfigError("config", path, acErrors.Wrap(err, "failed to parse config file"))
	}

	if fc.VersionFile != nil {
		c.VersionFile = *fc.VersionFile
	}
	if fc.MessagePrefix != nil {
		c.MessagePrefix = *fc.MessagePrefix
	}
	if len(fc.Artifacts) > 0 {
		c.Artifacts = fc.Artifacts
	}
	if fc.Debounce != nil {
		c.Debounce = *fc.Debounce
	}
	if fc.Strict != nil {
		c.Strict = *fc.Strict
	}
	if fc.Lock != nil {
		c.NoLock = !*fc.Lock
	}
	if fc.LockDir != nil {
		c.LockDir = *fc.LockDir
	}
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}
	if fc.LogFile != nil {
		c.LogFile = *fc.LogFile
	}
	if fc.Quiet != nil {
		c.Verbose = !*fc.Quiet
	}

	c.ConfigFile = path
	return nil
}

// LoadFromEnvironment updates config from AUTOCOMMIT_* environment variables
func (c *Config) LoadFromEnvironment() {
	c.VersionFile = getEnvString(EnvPrefix+"VERSION_FILE", c.VersionFile)
	c.MessagePrefix = getEnvString(EnvPrefix+"PREFIX", c.MessagePrefix)
	c.Artifacts = getEnvList(EnvPrefix+"ARTIFACTS", c.Artifacts)
	c.Debounce = getEnvDuration(EnvPrefix+"DEBOUNCE", c.Debounce)
	c.DryRun = getEnvBool(EnvPrefix+"DRY_RUN", c.DryRun)
	c.Strict = getEnvBool(EnvPrefix+"STRICT", c.Strict)
	c.NoLock = getEnvBool(EnvPrefix+"NO_LOCK", c.NoLock)
	c.LockDir = getEnvString(EnvPrefix+"LOCK_DIR", c.LockDir)
	c.Verbose = !getEnvBool(EnvPrefix+"QUIET", !c.Verbose)
	c.Debug = getEnvBool(EnvPrefix+"DEBUG", c.Debug)
	c.LogFile = getEnvString(EnvPrefix+"LOG_FILE", c.LogFile)
	c.NonInteractive = getEnvBool(EnvPrefix+"NON_INTERACTIVE", c.NonInteractive)
}

// RegisterFlags defines the persistent flags shared by every command.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("project-dir", "d", "", "Project root (default: $PROJECT_DIR or current directory)")
	fs.StringP("config", "c", "", "Path to config file (default: <project-dir>/"+DefaultConfigFileName+")")
	fs.String("version-file", version.DefaultFileName, "Version file, relative to the project root")
	fs.String("prefix", version.DefaultMessagePrefix, "Commit message prefix")
	fs.Bool("strict", false, "Fail the command when git fails instead of only logging it")
	fs.Bool("no-lock", false, "Do not take the per-project lock")
	fs.BoolP("quiet", "q", false, "Hide informational messages")
	fs.Bool("debug", false, "Enable debug logging")
	fs.String("log-file", "", "Path to log file (default: ~/.local/share/autocommit/logs/autocommit-{project-hash}.log)")
}

// ApplyFlags copies every flag the user set explicitly onto c. Unset
// flags leave the lower layers in place.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var errs []error
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	boolean := func(name string, dst *bool, invert bool) {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			errs = append(errs, err)
			*dst = v != invert
		}
	}

	str("version-file", &c.VersionFile)
	str("prefix", &c.MessagePrefix)
	str("log-file", &c.LogFile)
	boolean("strict", &c.Strict, false)
	boolean("no-lock", &c.NoLock, false)
	boolean("quiet", &c.Verbose, true)
	boolean("debug", &c.Debug, false)
	boolean("dry-run", &c.DryRun, false)
	boolean("force", &c.Force, false)
	boolean("non-interactive", &c.NonInteractive, false)

	if fs.Changed("artifact") {
		v, err := fs.GetStringSlice("artifact")
		errs = append(errs, err)
		c.Artifacts = v
	}
	if fs.Changed("debounce") {
		v, err := fs.GetDuration("debounce")
		errs = append(errs, err)
		c.Debounce = v
	}

	if err := acErrors.Join(errs...); err != nil {
		return acErrors.NewConfigError("flags", nil, acErrors.Wrap(err, "failed to read flags"))
	}
	return nil
}

// Finalize validates the configuration and resolves derived paths.
func (c *Config) Finalize() error {
	if c.ProjectDir == "" {
		dir, err := ResolveProjectDir("")
		if err != nil {
			return err
		}
		c.ProjectDir = dir
	}

	absProjectDir, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return acErrors.NewConfigError("projectDir", c.ProjectDir, acErrors.Wrap(err, "failed to resolve absolute path"))
	}
	c.ProjectDir = absProjectDir

	info, err := os.Stat(c.ProjectDir)
	if err != nil {
		return acErrors.NewConfigError("projectDir", c.ProjectDir, acErrors.Wrap(err, "project directory is not accessible"))
	}
	if !info.IsDir() {
		return acErrors.NewConfigError("projectDir", c.ProjectDir, acErrors.New("not a directory"))
	}

	c.VersionFile = strings.TrimSpace(c.VersionFile)
	if c.VersionFile == "" {
		return acErrors.NewConfigError("versionFile", nil, acErrors.New("must not be empty"))
	}

	c.MessagePrefix = strings.TrimSpace(c.MessagePrefix)
	if c.MessagePrefix == "" {
		return acErrors.NewConfigError("prefix", nil, acErrors.New("must not be empty"))
	}

	if c.Debounce <= 0 {
		return acErrors.NewConfigError("debounce", c.Debounce, acErrors.New("must be greater than 0"))
	}

	for i, artifact := range c.Artifacts {
		if !filepath.IsAbs(artifact) {
			c.Artifacts[i] = filepath.Join(c.ProjectDir, artifact)
		}
	}

	if c.LogFile == "" {
		c.LogFile = defaultLogFile(c.ProjectDir)
	}

	if c.Debug {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o700); err != nil {
			return acErrors.NewConfigError("logFile", c.LogFile, acErrors.Wrap(err, "cannot create log directory"))
		}
	}

	return nil
}

// defaultLogFile follows the XDG Base Directory Specification and keys the
// file name on the project path.
func defaultLogFile(projectDir string) string {
	logDir := os.Getenv("XDG_DATA_HOME")
	if logDir == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			logDir = filepath.Join(homeDir, ".local", "share")
		} else {
			logDir = os.TempDir()
		}
	}

	projectHash := fmt.Sprintf("%x", sha256OfString(projectDir)[:8])
	return filepath.Join(logDir, "autocommit", "logs", fmt.Sprintf("autocommit-%s.log", projectHash))
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
		// Bare numbers are milliseconds
		if ms, err := strconv.Atoi(valueStr); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// getEnvBool accepts true/false, 1/0 and yes/no; anything else keeps the default
func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}

func sha256OfString(input string) []byte {
	hash := sha256.Sum256([]byte(input))
	return hash[:]
}
