package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"proxyctl/internal/service/clashconf"
	"proxyctl/internal/shared/logger"
)

const controllerProbeTimeout = 2 * time.Second

// StatusReport is what Status found out.
type StatusReport struct {
	PID        int
	Running    bool
	MixedPort  int
	Controller string
	Version    string // empty when the controller did not answer
}

// Status reports whether mihomo is running. When it is, the configured
// ports are read back and the controller is asked for its version.
func (p *Provisioner) Status(ctx context.Context) (StatusReport, error) {
	l := logger.WithComponent("Provisioner")

	pid, running, err := p.supervisor.Status()
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{PID: pid, Running: running}
	if !running {
		l.Info().Msg("Mihomo is not running.")
		return report, nil
	}
	l.Info().Int("pid", pid).Msgf("Mihomo is running (pid: %d).", pid)

	doc, err := clashconf.Load(p.ConfigPath())
	if err != nil {
		l.Warn().Err(err).Msg("Failed to read mihomo config.")
		return report, nil
	}
	if port, ok := doc.MixedPort(); ok {
		report.MixedPort = port
		l.Info().Int("port", port).Msgf("Mixed port: %d", port)
	}
	if ctl, ok := doc.ExternalController(); ok {
		report.Controller = ctl
		l.Info().Msgf("Web UI: http://%s/ui", ctl)

		version, err := p.controllerVersion(ctx, ctl)
		if err != nil {
			l.Debug().Err(err).Str("controller", ctl).Msg("Controller did not answer.")
		} else {
			report.Version = version
			l.Info().Str("version", version).Msgf("Controller version: %s", version)
		}
	}
	return report, nil
}

func (p *Provisioner) controllerVersion(ctx context.Context, controller string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, controllerProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+controller+"/version", nil)
	if err != nil {
		return "", err
	}
	// Loopback controller, never through the download route.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status code %d", resp.StatusCode)
	}
	var body struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode version: %w", err)
	}
	return body.Version, nil
}

// writeEnvScripts writes the "on" and "off" shell snippets that export and
// unset the proxy variables for the mixed port.
func (p *Provisioner) writeEnvScripts(mixedPort int) error {
	l := logger.WithComponent("Provisioner")

	on := fmt.Sprintf(`#!/bin/sh
export http_proxy="http://127.0.0.1:%d"
export HTTP_PROXY=$http_proxy
export https_proxy=$http_proxy
export HTTPS_PROXY=$http_proxy
export all_proxy=$http_proxy
export ALL_PROXY=$http_proxy
`, mixedPort)
	off := `#!/bin/sh
unset http_proxy HTTP_PROXY https_proxy HTTPS_PROXY all_proxy ALL_PROXY
`

	onPath := filepath.Join(p.dataDir, "on")
	offPath := filepath.Join(p.dataDir, "off")
	for path, content := range map[string]string{onPath: on, offPath: off} {
		if err := os.WriteFile(path, []byte(content), 0755); err != nil {
			return err
		}
		// WriteFile keeps the mode of an existing file.
		if err := os.Chmod(path, 0755); err != nil {
			return err
		}
	}

	l.Info().Msgf("Environment setup scripts written to %s and %s", onPath, offPath)
	l.Info().Msgf("You can `source %s` to set up the proxy environment, and `source %s` to unset it.", onPath, offPath)
	return nil
}
