package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/backkem/remootio/pkg/remootio"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment variable the CLI reads.
const envPrefix = "REMOOTIO_"

// options holds the persistent flags.
type options struct {
	configPath  string
	host        string
	port        int
	name        string
	secretKey   string
	authKey     string
	timeout     time.Duration
	logLevel    string
	directional bool

	// changed reports whether a flag was set on the command line.
	changed func(name string) bool
}

// fileConfig is the YAML configuration file.
type fileConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Name        string        `yaml:"name"`
	SecretKey   string        `yaml:"secret_key"`
	AuthKey     string        `yaml:"auth_key"`
	Timeout     time.Duration `yaml:"timeout"`
	LogLevel    string        `yaml:"log_level"`
	Directional bool          `yaml:"directional_commands"`
}

// settings is the merged result of file, environment and flags.
type settings struct {
	fileConfig
}

func (o *options) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file ($REMOOTIO_CONFIG)")
	f.StringVarP(&o.host, "host", "H", "", "Device host or IP ($REMOOTIO_HOST)")
	f.IntVarP(&o.port, "port", "p", remootio.DefaultPort, "Device API port ($REMOOTIO_PORT)")
	f.StringVar(&o.name, "name", remootio.DefaultName, "Device name ($REMOOTIO_NAME)")
	f.StringVar(&o.secretKey, "secret-key", "", "API secret key, hex ($REMOOTIO_SECRET_KEY)")
	f.StringVar(&o.authKey, "auth-key", "", "API auth key, hex ($REMOOTIO_AUTH_KEY)")
	f.DurationVarP(&o.timeout, "timeout", "t", remootio.DefaultResponseTimeout, "Handshake and command timeout ($REMOOTIO_TIMEOUT)")
	f.StringVar(&o.logLevel, "log-level", "warn", "Log level: disabled, error, warn, info, debug, trace ($REMOOTIO_LOG_LEVEL)")
	f.BoolVar(&o.directional, "directional", false, "Send OPEN/CLOSE instead of TRIGGER ($REMOOTIO_DIRECTIONAL)")

	o.changed = func(name string) bool {
		flag := f.Lookup(name)
		return flag != nil && flag.Changed
	}
}

// resolve merges defaults, the config file, environment and flags, later
// sources overriding earlier ones.
func (o *options) resolve(getenv func(string) string) (settings, error) {
	s := settings{fileConfig{
		Port:     remootio.DefaultPort,
		Name:     remootio.DefaultName,
		Timeout:  remootio.DefaultResponseTimeout,
		LogLevel: "warn",
	}}

	path := o.configPath
	if !o.changed("config") {
		if v := getenv(envPrefix + "CONFIG"); v != "" {
			path = v
		}
	}
	if path != "" {
		if err := loadFile(path, &s.fileConfig); err != nil {
			return settings{}, err
		}
	}

	if err := s.applyEnv(getenv); err != nil {
		return settings{}, err
	}
	o.applyFlags(&s)
	return s, nil
}

func loadFile(path string, cfg *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (s *settings) applyEnv(getenv func(string) string) error {
	if v := getenv(envPrefix + "HOST"); v != "" {
		s.Host = v
	}
	if v := getenv(envPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		s.Port = port
	}
	if v := getenv(envPrefix + "NAME"); v != "" {
		s.Name = v
	}
	if v := getenv(envPrefix + "SECRET_KEY"); v != "" {
		s.SecretKey = v
	}
	if v := getenv(envPrefix + "AUTH_KEY"); v != "" {
		s.AuthKey = v
	}
	if v := getenv(envPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", envPrefix, err)
		}
		s.Timeout = d
	}
	if v := getenv(envPrefix + "LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := getenv(envPrefix + "DIRECTIONAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDIRECTIONAL: %w", envPrefix, err)
		}
		s.Directional = b
	}
	return nil
}

func (o *options) applyFlags(s *settings) {
	if o.changed("host") {
		s.Host = o.host
	}
	if o.changed("port") {
		s.Port = o.port
	}
	if o.changed("name") {
		s.Name = o.name
	}
	if o.changed("secret-key") {
		s.SecretKey = o.secretKey
	}
	if o.changed("auth-key") {
		s.AuthKey = o.authKey
	}
	if o.changed("timeout") {
		s.Timeout = o.timeout
	}
	if o.changed("log-level") {
		s.LogLevel = o.logLevel
	}
	if o.changed("directional") {
		s.Directional = o.directional
	}
}

// clientConfig builds the client configuration.
func (s settings) clientConfig(lf logging.LoggerFactory) remootio.ClientConfig {
	return remootio.ClientConfig{
		Host:            s.Host,
		Port:            s.Port,
		Name:            s.Name,
		SecretKey:       strings.ToLower(s.SecretKey),
		AuthKey:         strings.ToLower(s.AuthKey),
		ResponseTimeout: s.Timeout,
		LoggerFactory:   lf,
	}
}

// newLoggerFactory returns a pion logger factory writing to stderr at the
// given level.
func newLoggerFactory(level string) (*logging.DefaultLoggerFactory, error) {
	var l logging.LogLevel
	switch strings.ToLower(level) {
	case "disabled", "off", "none":
		l = logging.LogLevelDisabled
	case "error":
		l = logging.LogLevelError
	case "warn", "warning":
		l = logging.LogLevelWarn
	case "info":
		l = logging.LogLevelInfo
	case "debug":
		l = logging.LogLevelDebug
	case "trace":
		l = logging.LogLevelTrace
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = l
	lf.Writer = os.Stderr
	return lf, nil
}
