package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(cfgFile string) (*BackupConfig, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("shardsnap")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/shardsnap/")
	}

	viper.SetEnvPrefix("SHARDSNAP") // env vars like SHARDSNAP_BACKUP_DIR
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	viper.BindEnv("user")
	viper.BindEnv("password")
	viper.BindEnv("authdb")
	viper.BindEnv("backup_dir")
	viper.BindEnv("mongodump.binary")
	viper.BindEnv("mongodump.compression")
	viper.BindEnv("mongodump.threads")
	viper.BindEnv("mongos.uri")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg BackupConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Mongodump.Binary == "" {
		cfg.Mongodump.Binary = "mongodump"
	}
	if cfg.Mongodump.Compression == "" {
		cfg.Mongodump.Compression = "gzip"
	}
	if len(cfg.Shards) == 0 {
		return nil, fmt.Errorf("config must list at least one shard")
	}
	for i, s := range cfg.Shards {
		if s.Name == "" || s.URI == "" {
			return nil, fmt.Errorf("shards[%d] must set both name and uri", i)
		}
	}

	return &cfg, nil
}
