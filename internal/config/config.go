// Package config 加载 ipclass 命令行工具的配置
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// 环境变量名称
const (
	EnvDBDriver   = "IPCLASS_DB_DRIVER"
	EnvDBDSN      = "IPCLASS_DB_DSN"
	EnvBlocksFile = "IPCLASS_BLOCKS_FILE"
	EnvLogLevel   = "IPCLASS_LOG_LEVEL"
)

// Config 是命令行工具的配置
type Config struct {
	DBDriver   string // mysql 或 postgres，为空时使用内存注册表
	DBDSN      string
	BlocksFile string // 额外的 TOML 地址块文件
	LogLevel   string
	JSON       bool
}

// Load 从环境变量加载配置，envFiles 中的 .env 文件会先被加载
// 不存在的 .env 文件会被忽略
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("加载 %s 失败: %w", f, err)
		}
	}

	cfg := &Config{
		DBDriver:   strings.ToLower(strings.TrimSpace(os.Getenv(EnvDBDriver))),
		DBDSN:      os.Getenv(EnvDBDSN),
		BlocksFile: os.Getenv(EnvBlocksFile),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate 检查配置是否有效
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s (支持: mysql, postgres)", c.DBDriver)
	}

	if c.DBDriver != "" && c.DBDSN == "" {
		return fmt.Errorf("使用 %s 时必须设置 %s", c.DBDriver, EnvDBDSN)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", c.LogLevel, err)
	}

	return nil
}

// Level 返回日志级别，无效时返回 InfoLevel
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
