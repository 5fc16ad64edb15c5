package types

// CommonConf 包含共有的配置
type CommonConf struct {
	DataDir string `ini:"data_dir"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// MirrorConf 控制下载前的镜像测速
type MirrorConf struct {
	ProbeURL       string `ini:"probe_url"`
	TimeoutSeconds int    `ini:"timeout_seconds"`
	UpstreamSocks5 string `ini:"upstream_socks5"` // 可选, host:port
}

// PortsConf 定义端口分配的起始值
type PortsConf struct {
	MixedPortStart      int `ini:"mixed_port_start"`
	ControllerPortStart int `ini:"controller_port_start"`
}

// Config 是 proxyctl 的统一配置结构体
type Config struct {
	CommonConf `ini:"common"`
	LogConf    `ini:"log"`
	MirrorConf `ini:"mirror"`
	PortsConf  `ini:"ports"`
}

// DefaultConfig returns the values used when no ini file is present.
func DefaultConfig() *Config {
	return &Config{
		CommonConf: CommonConf{DataDir: "proxy-data"},
		LogConf:    LogConf{Level: "info"},
		MirrorConf: MirrorConf{
			ProbeURL:       "https://raw.githubusercontent.com/microsoft/vscode/main/LICENSE.txt",
			TimeoutSeconds: 3,
		},
		PortsConf: PortsConf{
			MixedPortStart:      7890,
			ControllerPortStart: 9090,
		},
	}
}
