package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"proxyctl/internal/service/download"
	"proxyctl/internal/shared/logger"
)

const (
	defaultReleaseBase = "https://github.com"
	downloadTimeout    = 10 * time.Minute

	dashboardDir      = "metacubexd"
	dashboardUnzipped = "metacubexd-gh-pages"
)

var (
	runtimeGOOS   = runtime.GOOS
	runtimeGOARCH = runtime.GOARCH
)

var geodataFiles = []string{"geosite.dat", "geoip.dat"}

func binaryName(goos string) string {
	if goos == "windows" {
		return "mihomo.exe"
	}
	return "mihomo"
}

// releaseAsset maps a Go platform onto the mihomo release naming.
func releaseAsset(goos, goarch, version string) (string, download.ArchiveKind, error) {
	var osName string
	switch goos {
	case "windows", "linux", "darwin":
		osName = goos
	default:
		return "", "", fmt.Errorf("unsupported OS: %s", goos)
	}

	switch goarch {
	case "amd64", "arm64":
	default:
		return "", "", fmt.Errorf("unsupported architecture: %s", goarch)
	}

	kind := download.KindGz
	if goos == "windows" {
		kind = download.KindZip
	}
	return fmt.Sprintf("mihomo-%s-%s-%s.%s", osName, goarch, version, kind), kind, nil
}

func (p *Provisioner) dashboardPath() string {
	return filepath.Join(p.dataDir, dashboardDir)
}

// assetURL returns target on the release origin behind the chosen mirror.
func (p *Provisioner) assetURL(ctx context.Context, path string) (string, error) {
	m, err := p.selectMirror(ctx)
	if err != nil {
		return "", err
	}
	return m.URL(strings.TrimSuffix(p.releaseBase, "/") + path), nil
}

func (p *Provisioner) ensureBinary(ctx context.Context) error {
	if _, err := os.Stat(p.binaryPath); err == nil {
		return nil
	}
	l := logger.WithComponent("Provisioner")
	l.Info().Msg("Downloading Mihomo...")

	versionURL, err := p.assetURL(ctx, "/MetaCubeX/mihomo/releases/latest/download/version.txt")
	if err != nil {
		return err
	}
	version, err := p.fetcher.FetchText(ctx, versionURL)
	if err != nil {
		return err
	}
	if version == "" {
		return errors.New("empty mihomo version")
	}
	l.Info().Str("version", version).Msgf("Latest version: %s", version)

	asset, kind, err := releaseAsset(p.goos, p.goarch, version)
	if err != nil {
		return err
	}
	assetURL, err := p.assetURL(ctx, fmt.Sprintf("/MetaCubeX/mihomo/releases/download/%s/%s", version, asset))
	if err != nil {
		return err
	}

	archive := filepath.Join(p.dataDir, "mihomo."+string(kind))
	if err := p.fetcher.FetchWithProgress(ctx, assetURL, archive); err != nil {
		return err
	}
	if err := download.Extract(archive, p.binaryPath, kind); err != nil {
		return err
	}
	if err := os.Remove(archive); err != nil {
		return err
	}
	return os.Chmod(p.binaryPath, 0755)
}

func (p *Provisioner) ensureDashboard(ctx context.Context) error {
	l := logger.WithComponent("Provisioner")
	target := p.dashboardPath()
	if _, err := os.Stat(target); err == nil {
		l.Info().Msg("metacubexd already exists, skip downloading.")
		return nil
	}

	l.Info().Msg("Downloading metacubexd...")
	url, err := p.assetURL(ctx, "/MetaCubeX/metacubexd/archive/refs/heads/gh-pages.zip")
	if err != nil {
		return err
	}
	archive := filepath.Join(p.dataDir, "metacubexd.zip")
	if err := p.fetcher.FetchWithProgress(ctx, url, archive); err != nil {
		return err
	}
	if err := download.Extract(archive, p.dataDir, download.KindZipTree); err != nil {
		return err
	}
	if err := os.Remove(archive); err != nil {
		return err
	}

	unzipped := filepath.Join(p.dataDir, dashboardUnzipped)
	if _, err := os.Stat(unzipped); err == nil {
		if err := os.Rename(unzipped, target); err != nil {
			return err
		}
	}

	if title, err := verifyDashboard(target); err != nil {
		l.Warn().Err(err).Str("path", target).Msg("Dashboard bundle looks incomplete, the Web UI may not load.")
	} else {
		l.Debug().Str("title", title).Msg("Dashboard bundle verified.")
	}
	return nil
}

// verifyDashboard checks that dir holds an index.html that loads some
// assets, and returns its title.
func verifyDashboard(dir string) (string, error) {
	f, err := os.Open(filepath.Join(dir, "index.html"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse index.html: %w", err)
	}
	if doc.Find("script, link[rel=stylesheet], body *").Length() == 0 {
		return "", errors.New("index.html references no assets")
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

// ensureGeodata downloads missing geo databases. A failed download only
// warns since mihomo can fetch them itself later.
func (p *Provisioner) ensureGeodata(ctx context.Context) error {
	l := logger.WithComponent("Provisioner")
	for _, name := range geodataFiles {
		dest := filepath.Join(p.configDir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		l.Info().Msgf("Downloading %s...", name)
		url, err := p.assetURL(ctx, "/MetaCubeX/meta-rules-dat/releases/download/latest/"+name)
		if err != nil {
			return err
		}
		if err := p.fetcher.FetchWithProgress(ctx, url, dest); err != nil {
			l.Warn().Err(err).Msgf("Failed to download %s", name)
		}
	}
	return nil
}
