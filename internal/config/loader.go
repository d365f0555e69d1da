package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// 配置文件不存在时按默认值启动；文件存在但无法解析时报错。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	if err := rejectLegacyKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absScratch, err := filepath.Abs(cfg.Global.ScratchPath)
	if err != nil {
		return nil, fmt.Errorf("无法解析暂存目录: %w", err)
	}
	cfg.Global.ScratchPath = absScratch

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("ScratchPath", "./temp_downloads")
	v.SetDefault("MaxArtifactSize", 500*1024*1024)
	v.SetDefault("ArtifactTTL", 1800)
	v.SetDefault("SweepInterval", "60s")
	v.SetDefault("FetchTimeout", "30s")
	v.SetDefault("MaxFetchRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.MaxArtifactSize == 0 {
		g.MaxArtifactSize = 500 * 1024 * 1024
	}
	if g.ArtifactTTL.DurationValue() == 0 {
		g.ArtifactTTL = Duration(30 * time.Minute)
	}
	if g.SweepInterval.DurationValue() == 0 {
		g.SweepInterval = Duration(time.Minute)
	}
	if g.FetchTimeout.DurationValue() == 0 {
		g.FetchTimeout = Duration(30 * time.Second)
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectLegacyKeys 拦截已弃用的配置键，提示迁移到新键名。
func rejectLegacyKeys(v *viper.Viper) error {
	legacy := map[string]string{
		"TempDir":     "ScratchPath",
		"MaxFileSize": "MaxArtifactSize",
	}
	for old, current := range legacy {
		if v.InConfig(old) {
			return newFieldError(old, "字段已弃用，请使用 "+current)
		}
	}
	return nil
}
