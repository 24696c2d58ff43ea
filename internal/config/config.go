package config

import (
	"errors"
	"strings"
	"time"

	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr      = ":8000"
	DefaultDecoyListenAddr = ":8080"
	DefaultSQLitePath      = "./data/avalon.db"
	DefaultIngressConfig   = "./config.json"
	DefaultRoutesFile      = "./Caddyfile"
	DefaultDecoyRootDoc    = "./static/index.html"
	DefaultDecoyMediaFile  = "./static/media.mp4"
	DefaultDisguisePath    = "/live/chat"
)

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type IngressConfig struct {
	PortBase      int    `mapstructure:"portBase"`
	ConfigFile    string `mapstructure:"configFile"`
	RoutesFile    string `mapstructure:"routesFile"`
	RestartScript string `mapstructure:"restartScript"`
}

type DecoyConfig struct {
	ListenAddr   string        `mapstructure:"listenAddr"`
	RootDocument string        `mapstructure:"rootDocument"`
	DisguisePath string        `mapstructure:"disguisePath"`
	MediaFile    string        `mapstructure:"mediaFile"`
	CorpusFile   string        `mapstructure:"corpusFile"`
	MinInterval  time.Duration `mapstructure:"minInterval"`
	MaxInterval  time.Duration `mapstructure:"maxInterval"`
	KeepAlive    time.Duration `mapstructure:"keepAlive"`
	MaxStreams   int           `mapstructure:"maxStreams"`
}

type Config struct {
	Debug      bool          `mapstructure:"debug"`
	Domain     string        `mapstructure:"domain"`
	ListenAddr string        `mapstructure:"listenAddr"`
	APISecret  string        `mapstructure:"apiSecret"`
	SQLite     SQLiteConfig  `mapstructure:"sqlite"`
	Ingress    IngressConfig `mapstructure:"ingress"`
	Decoy      DecoyConfig   `mapstructure:"decoy"`
}

func (c *Config) Sanitize() error {
	if c.Domain == "" {
		return errors.New("domain is not configured")
	}
	// The admin surface must never come up open; an unset secret is a
	// deployment mistake, not a default.
	if c.APISecret == "" {
		return errors.New("apiSecret is not configured")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = DefaultSQLitePath
	}
	if c.Ingress.PortBase == 0 {
		c.Ingress.PortBase = params.DefaultIngressPortBase
	}
	if c.Ingress.ConfigFile == "" {
		c.Ingress.ConfigFile = DefaultIngressConfig
	}
	if c.Ingress.RoutesFile == "" {
		c.Ingress.RoutesFile = DefaultRoutesFile
	}
	if c.Decoy.ListenAddr == "" {
		c.Decoy.ListenAddr = DefaultDecoyListenAddr
	}
	if c.Decoy.RootDocument == "" {
		c.Decoy.RootDocument = DefaultDecoyRootDoc
	}
	if c.Decoy.DisguisePath == "" {
		c.Decoy.DisguisePath = DefaultDisguisePath
	}
	if !strings.HasPrefix(c.Decoy.DisguisePath, "/") {
		c.Decoy.DisguisePath = "/" + c.Decoy.DisguisePath
	}
	if c.Decoy.MediaFile == "" {
		c.Decoy.MediaFile = DefaultDecoyMediaFile
	}
	if c.Decoy.MinInterval <= 0 {
		c.Decoy.MinInterval = params.DecoyMinEventInterval
	}
	if c.Decoy.MaxInterval <= 0 {
		c.Decoy.MaxInterval = params.DecoyMaxEventInterval
	}
	if c.Decoy.MaxInterval < c.Decoy.MinInterval {
		return errors.New("decoy maxInterval must not be less than minInterval")
	}
	if c.Decoy.KeepAlive <= 0 {
		c.Decoy.KeepAlive = params.DecoyKeepAliveGap
	}
	if c.Decoy.MaxStreams <= 0 {
		c.Decoy.MaxStreams = params.DecoyMaxStreams
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
