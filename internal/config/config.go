package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Targets   []TargetConfig  `mapstructure:"targets"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type ProcessorConfig struct {
	Command        string   `mapstructure:"command"`
	Args           []string `mapstructure:"args"`
	WorkDir        string   `mapstructure:"workdir"`
	Env            []string `mapstructure:"env"`
	TimeoutMinutes int      `mapstructure:"timeout_minutes"`
	Enabled        bool     `mapstructure:"enabled"`
}

type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

type PipelineConfig struct {
	Schedule          string `mapstructure:"schedule"`
	RetentionSchedule string `mapstructure:"retention_schedule"`
	LockFile          string `mapstructure:"lock_file"`
	DeleteAfterSync   bool   `mapstructure:"delete_after_sync"`
}

type TargetConfig struct {
	Name          string `mapstructure:"name"`
	Type          string `mapstructure:"type"`
	Enabled       bool   `mapstructure:"enabled"`
	RetentionDays int    `mapstructure:"retention_days"`

	// rsync
	User           string   `mapstructure:"user"`
	Host           string   `mapstructure:"host"`
	Path           string   `mapstructure:"path"`
	SSHOptions     []string `mapstructure:"ssh_options"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	NotifyOn string `mapstructure:"notify_on"` // "all" or "failure"
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "sarsync")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("processor.enabled", true)
	v.SetDefault("processor.timeout_minutes", 120)
	v.SetDefault("pipeline.delete_after_sync", true)
	v.SetDefault("pipeline.lock_file", "/tmp/sarsync.lock")
	v.SetDefault("notify.notify_on", "failure")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required")
	}

	if c.Processor.Enabled && c.Processor.Command == "" {
		return fmt.Errorf("processor.command is required when processor is enabled")
	}

	if len(c.GetEnabledTargets()) == 0 {
		return fmt.Errorf("at least one enabled transfer target is required")
	}

	for i, target := range c.Targets {
		if !target.Enabled {
			continue
		}
		switch target.Type {
		case "rsync":
			if target.Host == "" {
				return fmt.Errorf("targets[%d]: host is required for rsync", i)
			}
			if target.Path == "" {
				return fmt.Errorf("targets[%d]: path is required for rsync", i)
			}
		case "s3":
			if target.Bucket == "" {
				return fmt.Errorf("targets[%d]: bucket is required for s3", i)
			}
			if target.Region == "" {
				return fmt.Errorf("targets[%d]: region is required for s3", i)
			}
		case "gdrive":
			if target.CredentialsFile == "" {
				return fmt.Errorf("targets[%d]: credentials_file is required for gdrive", i)
			}
			if target.FolderID == "" {
				return fmt.Errorf("targets[%d]: folder_id is required for gdrive", i)
			}
		default:
			return fmt.Errorf("targets[%d]: unknown type %q", i, target.Type)
		}
	}

	if c.Notify.Enabled {
		if c.Notify.BotToken == "" {
			return fmt.Errorf("notify.bot_token is required when notify is enabled")
		}
		if c.Notify.ChatID == "" {
			return fmt.Errorf("notify.chat_id is required when notify is enabled")
		}
	}

	return nil
}

func (c *Config) GetEnabledTargets() []TargetConfig {
	var enabled []TargetConfig
	for _, target := range c.Targets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}

// DisplayName returns the configured target name, falling back to the type.
func (t *TargetConfig) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Type
}
