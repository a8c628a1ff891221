//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is read when no config file is provided. It is optional.
const DefaultConfigFile string = "./patchstore.yaml"

const (
	DefaultPersistenceDataPath = "./data"
	DefaultPersistenceBaseName = "store"

	DefaultStoreFlushTriplesCount      = 500000
	DefaultStoreBloomFalsePositiveRate = 0.01
	DefaultStoreOpenTimeout            = 5 * time.Second

	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Flags are input options shared by all commands
type Flags struct {
	ConfigFile string `long:"config-file" description:"path to config file (default: ./patchstore.yaml)"`
	DataPath   string `long:"data-path" description:"directory holding the store files"`
	BaseName   string `long:"base-name" description:"name prefix of the store files"`
	LogLevel   string `long:"log-level" description:"one of panic, fatal, error, warn, info, debug, trace"`
	LogFormat  string `long:"log-format" description:"text or json"`
	ReadOnly   bool   `long:"read-only" description:"open all indexes read-only"`
}

// Config outline of the config file
type Config struct {
	Persistence Persistence `json:"persistence" yaml:"persistence"`
	Store       Store       `json:"store" yaml:"store"`
	Logging     Logging     `json:"logging" yaml:"logging"`
	Monitoring  Monitoring  `json:"monitoring" yaml:"monitoring"`
}

type Persistence struct {
	DataPath string `json:"dataPath" yaml:"dataPath"`
	BaseName string `json:"baseName" yaml:"baseName"`
}

// BasePath is the common path prefix of all store files.
func (p Persistence) BasePath() string {
	return filepath.Join(p.DataPath, p.BaseName)
}

// DictionaryPath is where the term dictionary is kept.
func (p Persistence) DictionaryPath() string {
	return p.BasePath() + "_dictionary"
}

func (p Persistence) Validate() error {
	if p.DataPath == "" {
		return fmt.Errorf("persistence.dataPath must be set")
	}
	if p.BaseName == "" {
		return fmt.Errorf("persistence.baseName must be set")
	}
	return nil
}

type Store struct {
	FlushTriplesCount      int           `json:"flush_triples_count" yaml:"flush_triples_count"`
	MemoryMapSize          int           `json:"memory_map_size" yaml:"memory_map_size"`
	BloomFilterCapacity    uint          `json:"bloom_filter_capacity" yaml:"bloom_filter_capacity"`
	BloomFalsePositiveRate float64       `json:"bloom_false_positive_rate" yaml:"bloom_false_positive_rate"`
	OpenTimeout            time.Duration `json:"open_timeout" yaml:"open_timeout"`
	ReadOnly               bool          `json:"read_only" yaml:"read_only"`
	NoSync                 bool          `json:"no_sync" yaml:"no_sync"`
}

func (s Store) Validate() error {
	if s.FlushTriplesCount < 1 {
		return fmt.Errorf("store.flush_triples_count must be positive, got %d", s.FlushTriplesCount)
	}
	if s.MemoryMapSize < 0 {
		return fmt.Errorf("store.memory_map_size must not be negative, got %d", s.MemoryMapSize)
	}
	if s.BloomFilterCapacity > 0 &&
		(s.BloomFalsePositiveRate <= 0 || s.BloomFalsePositiveRate >= 1) {
		return fmt.Errorf("store.bloom_false_positive_rate must be in (0, 1), got %v",
			s.BloomFalsePositiveRate)
	}
	return nil
}

type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

func (l Logging) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("logging.format must be one of [\"text\", \"json\"], got %q", l.Format)
	}
	return nil
}

// Logger builds a logger as configured.
func (l Logging) Logger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

type Monitoring struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Textfile receives the metrics of a run in the prometheus text format.
	// It defaults to <base>_metrics.prom.
	Textfile string `json:"textfile" yaml:"textfile"`
}

// TextfilePath is where the metrics of a run are written.
func (c *Config) TextfilePath() string {
	if c.Monitoring.Textfile != "" {
		return c.Monitoring.Textfile
	}
	return c.Persistence.BasePath() + "_metrics.prom"
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Persistence: Persistence{
			DataPath: DefaultPersistenceDataPath,
			BaseName: DefaultPersistenceBaseName,
		},
		Store: Store{
			FlushTriplesCount:      DefaultStoreFlushTriplesCount,
			BloomFalsePositiveRate: DefaultStoreBloomFalsePositiveRate,
			OpenTimeout:            DefaultStoreOpenTimeout,
		},
		Logging: Logging{
			Level:  DefaultLoggingLevel,
			Format: DefaultLoggingFormat,
		},
	}
}

// Validate the configuration
func (c *Config) Validate() error {
	if err := c.Persistence.Validate(); err != nil {
		return configErr(err)
	}
	if err := c.Store.Validate(); err != nil {
		return configErr(err)
	}
	if err := c.Logging.Validate(); err != nil {
		return configErr(err)
	}
	return nil
}

// LoadConfig from config locations. The load order for configuration values if the following
// 1. Defaults
// 2. Config file
// 3. Environment variables
// 4. Command line flags
// If a config option is specified multiple times in different locations, the latest one will be used in this order.
func LoadConfig(flags *Flags, logger logrus.FieldLogger) (Config, error) {
	config := Defaults()

	configFileName := flags.ConfigFile
	explicit := configFileName != ""
	if !explicit {
		configFileName = DefaultConfigFile
	}

	file, err := os.ReadFile(configFileName)
	if err != nil && (explicit || !os.IsNotExist(err)) {
		return config, configErr(fmt.Errorf("read config file: %w", err))
	}

	if len(file) > 0 {
		logger.WithField("action", "config_load").
			WithField("config_file_path", configFileName).
			Debug("loading config file")
		if err := parseConfigFile(file, configFileName, &config); err != nil {
			return config, configErr(err)
		}
	}

	if err := FromEnv(&config); err != nil {
		return config, configErr(err)
	}

	fromFlags(flags, &config)

	return config, config.Validate()
}

// parseConfigFile decodes file over the values already in config.
func parseConfigFile(file []byte, name string, config *Config) error {
	switch ext := filepath.Ext(name); ext {
	case ".json":
		if err := json.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the json config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	case "":
		return fmt.Errorf("config file does not have a file ending, got '%s'", name)
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml or .json", ext[1:])
	}
	return nil
}

// fromFlags parses values from flags given as parameter and overrides values in the config
func fromFlags(flags *Flags, config *Config) {
	if flags.DataPath != "" {
		config.Persistence.DataPath = flags.DataPath
	}
	if flags.BaseName != "" {
		config.Persistence.BaseName = flags.BaseName
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		config.Logging.Format = flags.LogFormat
	}
	if flags.ReadOnly {
		config.Store.ReadOnly = true
	}
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
