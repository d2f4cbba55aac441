package config

import "time"

type ShardConfig struct {
	Name string `mapstructure:"name"`
	URI  string `mapstructure:"uri"`
}

type MongosConfig struct {
	URI string `mapstructure:"uri"`
}

type MongodumpConfig struct {
	Binary      string `mapstructure:"binary"`
	Compression string `mapstructure:"compression"`
	Threads     int    `mapstructure:"threads"`
}

type ReportConfig struct {
	Format      string `mapstructure:"format"`
	Compression string `mapstructure:"compression"`
}

type UploadConfig struct {
	Sink    string                 `mapstructure:"sink"`
	Options map[string]interface{} `mapstructure:"options"`
}

type BackupConfig struct {
	User         string          `mapstructure:"user"`
	Password     string          `mapstructure:"password"`
	AuthDB       string          `mapstructure:"authdb"`
	Verbose      bool            `mapstructure:"verbose"`
	BackupDir    string          `mapstructure:"backup_dir"`
	PollInterval time.Duration   `mapstructure:"poll_interval"`
	Shards       []ShardConfig   `mapstructure:"shards"`
	Mongos       MongosConfig    `mapstructure:"mongos"`
	Mongodump    MongodumpConfig `mapstructure:"mongodump"`
	Report       ReportConfig    `mapstructure:"report"`
	Upload       UploadConfig    `mapstructure:"upload"`
}
