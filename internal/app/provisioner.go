package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"proxyctl/internal/core/mirror"
	"proxyctl/internal/core/supervisor"
	"proxyctl/internal/core/tunnel"
	"proxyctl/internal/service/clashconf"
	"proxyctl/internal/service/download"
	"proxyctl/internal/service/prompt"
	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/netutil"
	"proxyctl/internal/shared/types"
)

// Asker is the operator interaction the provisioner needs: yes/no questions
// for the subscription and tunnel flows, and reading pasted config content.
type Asker interface {
	AskYesNo(prompt string) bool
	ReadAll() (string, error)
}

// Provisioner owns the data directory layout and drives the start, stop,
// status and tunnel workflows.
type Provisioner struct {
	cfg *types.Config

	dataDir    string
	configDir  string
	binaryPath string

	supervisor   *supervisor.Supervisor
	selector     *mirror.Selector
	fetcher      *download.Fetcher
	orchestrator *tunnel.Orchestrator
	asker        Asker

	candidates  []mirror.Candidate
	releaseBase string
	goos        string
	goarch      string

	supervisorOpts []supervisor.Option
	chosenMirror   *mirror.Candidate
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithSelector replaces the mirror selector.
func WithSelector(s *mirror.Selector) Option {
	return func(p *Provisioner) { p.selector = s }
}

// WithCandidates replaces the mirror candidate list.
func WithCandidates(c []mirror.Candidate) Option {
	return func(p *Provisioner) { p.candidates = c }
}

// WithFetcher replaces the downloader.
func WithFetcher(f *download.Fetcher) Option {
	return func(p *Provisioner) { p.fetcher = f }
}

// WithAsker replaces the terminal prompt.
func WithAsker(a Asker) Option {
	return func(p *Provisioner) { p.asker = a }
}

// WithOrchestrator replaces the tunnel orchestrator.
func WithOrchestrator(o *tunnel.Orchestrator) Option {
	return func(p *Provisioner) { p.orchestrator = o }
}

// WithPlatform overrides the OS and architecture used to pick the release asset.
func WithPlatform(goos, goarch string) Option {
	return func(p *Provisioner) { p.goos, p.goarch = goos, goarch }
}

// WithReleaseBase replaces https://github.com as the origin of release assets.
func WithReleaseBase(base string) Option {
	return func(p *Provisioner) { p.releaseBase = base }
}

// WithSupervisorOptions passes options through to the process supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(p *Provisioner) { p.supervisorOpts = append(p.supervisorOpts, opts...) }
}

// NewProvisioner prepares the data directory and wires the collaborators.
func NewProvisioner(cfg *types.Config, opts ...Option) (*Provisioner, error) {
	p := &Provisioner{
		cfg:         cfg,
		dataDir:     cfg.DataDir,
		configDir:   filepath.Join(cfg.DataDir, "config"),
		candidates:  mirror.DefaultCandidates(),
		releaseBase: defaultReleaseBase,
		goos:        runtimeGOOS,
		goarch:      runtimeGOARCH,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.selector == nil || p.fetcher == nil {
		prober, err := mirror.NewHTTPProber(cfg.UpstreamSocks5)
		if err != nil {
			return nil, fmt.Errorf("failed to create mirror prober: %w", err)
		}
		if p.selector == nil {
			p.selector = mirror.NewSelector(mirror.WithProber(prober))
		}
		if p.fetcher == nil {
			// Downloads take the same route as the probes that picked the mirror.
			client := *prober.Client()
			client.Timeout = downloadTimeout
			p.fetcher = download.NewFetcher(download.WithClient(&client))
		}
	}
	if p.orchestrator == nil {
		p.orchestrator = tunnel.NewOrchestrator()
	}
	if p.asker == nil {
		p.asker = prompt.Stdio()
	}

	p.binaryPath = filepath.Join(p.dataDir, binaryName(p.goos))
	svOpts := append([]supervisor.Option{supervisor.WithName("Mihomo")}, p.supervisorOpts...)
	p.supervisor = supervisor.New(filepath.Join(p.dataDir, "mihomo.pid"), svOpts...)

	if err := os.MkdirAll(p.configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", p.configDir, err)
	}
	if err := os.WriteFile(filepath.Join(p.dataDir, ".gitignore"), []byte("*\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return p, nil
}

// ConfigPath is the mihomo config file managed by the provisioner.
func (p *Provisioner) ConfigPath() string {
	return filepath.Join(p.configDir, "config.yaml")
}

// Start provisions everything mihomo needs and launches it in the
// background. A running instance is stopped first so its ports are free
// for allocation.
func (p *Provisioner) Start(ctx context.Context, subscriptionURL string) error {
	l := logger.WithComponent("Provisioner")
	p.chosenMirror = nil

	if pid, running, err := p.supervisor.IsRunning(); err != nil {
		return err
	} else if running {
		l.Info().Int("pid", pid).Msgf("Mihomo is already running (pid: %d). Stopping it first...", pid)
		if err := p.supervisor.Stop(); err != nil {
			return err
		}
	}

	if err := p.ensureBinary(ctx); err != nil {
		return err
	}
	if err := p.ensureDashboard(ctx); err != nil {
		return err
	}
	if err := p.ensureGeodata(ctx); err != nil {
		return err
	}

	configPath := p.ConfigPath()
	if err := clashconf.HandleSubscription(ctx, p.fetcher.Client(), subscriptionURL, configPath, p.asker); err != nil {
		return err
	}

	ctlPort, err := netutil.FindUnusedPort(p.cfg.ControllerPortStart)
	if err != nil {
		return fmt.Errorf("failed to find an unused port: %w", err)
	}
	l.Info().Int("port", ctlPort).Msgf("Found unused port: %d", ctlPort)
	controller := net.JoinHostPort("127.0.0.1", strconv.Itoa(ctlPort))

	mixedPort, err := netutil.FindUnusedPort(p.cfg.MixedPortStart)
	if err != nil {
		return fmt.Errorf("failed to find an unused port: %w", err)
	}
	// mihomo reads its config once at startup, so patch before launching.
	if err := clashconf.UpdateMixedPort(configPath, mixedPort); err != nil {
		return err
	}
	l.Info().Int("port", mixedPort).Msgf("Mihomo mixed-port is set to: %d", mixedPort)
	if err := clashconf.UpdateExternalController(configPath, controller); err != nil {
		return err
	}

	spec, err := p.launchSpec(controller)
	if err != nil {
		return err
	}
	if _, err := p.supervisor.Start(spec); err != nil {
		return err
	}
	l.Info().Msgf("Web UI: http://%s/ui", controller)

	if err := p.writeEnvScripts(mixedPort); err != nil {
		return err
	}

	l.Info().Msgf("To stop Mihomo, run: `%s stop`", filepath.Base(os.Args[0]))
	return nil
}

func (p *Provisioner) launchSpec(controller string) (supervisor.LaunchSpec, error) {
	binary, err := filepath.Abs(p.binaryPath)
	if err != nil {
		return supervisor.LaunchSpec{}, err
	}
	dashboard, err := filepath.Abs(p.dashboardPath())
	if err != nil {
		return supervisor.LaunchSpec{}, err
	}
	configDir, err := filepath.Abs(p.configDir)
	if err != nil {
		return supervisor.LaunchSpec{}, err
	}
	return supervisor.LaunchSpec{
		Path:   binary,
		Args:   []string{"-d", configDir, "-ext-ctl", controller, "-ext-ui", dashboard},
		Stdout: filepath.Join(p.dataDir, "mihomo.log"),
		Stderr: filepath.Join(p.dataDir, "mihomo.err"),
	}, nil
}

// Stop terminates the background mihomo, if any.
func (p *Provisioner) Stop() error {
	return p.supervisor.Stop()
}

// Tunnel exposes localhost:port through the free SSH tunnel providers.
func (p *Provisioner) Tunnel(ctx context.Context, port int) error {
	l := logger.WithComponent("Provisioner")
	l.Info().Msg("Note: You can usually access the WebUI at https://<the-service-random-subdomain>/ui")
	l.Info().Msg("Use https://<the-service-random-subdomain>/ as the control server address in the WebUI.")

	return p.orchestrator.RunSequence(ctx, port, tunnel.DefaultServices(port), p.asker)
}

// selectMirror picks a mirror once per Start and reuses it for every asset.
func (p *Provisioner) selectMirror(ctx context.Context) (mirror.Candidate, error) {
	if p.chosenMirror != nil {
		return *p.chosenMirror, nil
	}
	timeout := time.Duration(p.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = mirror.DefaultTimeout
	}
	probeURL := p.cfg.ProbeURL
	if probeURL == "" {
		probeURL = mirror.DefaultProbeURL
	}
	c, err := p.selector.SelectFastest(ctx, p.candidates, probeURL, timeout)
	if err != nil {
		return mirror.Candidate{}, err
	}
	p.chosenMirror = &c
	return c, nil
}
