package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"
	"proxyctl/internal/shared/types"
)

// LoadIni 加载 proxyctl.ini 行为配置文件。
// 文件不存在时返回默认配置; 文件中缺失的键保留默认值。
func LoadIni(fileName string) (*types.Config, error) {
	cfg := types.DefaultConfig()

	if fileName != "" {
		iniFile, err := ini.Load(fileName)
		switch {
		case err == nil:
			if err := iniFile.MapTo(cfg); err != nil {
				return nil, fmt.Errorf("failed to map %s: %w", fileName, err)
			}
		case os.IsNotExist(err):
			// no file, defaults only
		default:
			return nil, fmt.Errorf("failed to load %s: %w", fileName, err)
		}
	}

	overrideFromEnv(&cfg.CommonConf.DataDir, "PROXYCTL_DATA_DIR")
	overrideFromEnv(&cfg.LogConf.Level, "PROXYCTL_LOG_LEVEL")
	overrideFromEnv(&cfg.MirrorConf.UpstreamSocks5, "PROXYCTL_SOCKS5")
	overrideFromEnvInt(&cfg.MirrorConf.TimeoutSeconds, "PROXYCTL_MIRROR_TIMEOUT")
	return cfg, nil
}

func overrideFromEnv(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
