package clashconf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"proxyctl/internal/shared/logger"
)

// UserAgent is sent with subscription downloads; providers use it to pick
// the clash.meta output format.
const UserAgent = "mihomo.proxy.sh/v1.0 (clash.meta)"

// Asker is the operator interaction the subscription flow needs.
type Asker interface {
	AskYesNo(prompt string) bool
	ReadAll() (string, error)
}

// IsValid reports whether path holds a mapping with at least one of the
// proxies, proxy-groups or rules keys.
func IsValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	doc, err := Load(path)
	if err != nil {
		return false
	}
	for _, key := range []string{"proxies", "proxy-groups", "rules"} {
		if doc.Has(key) {
			return true
		}
	}
	return false
}

// HandleSubscription makes sure configPath holds a usable config: download
// from subscriptionURL when given, otherwise offer to paste one when the
// current file is not valid.
func HandleSubscription(ctx context.Context, client *http.Client, subscriptionURL, configPath string, asker Asker) error {
	l := logger.WithComponent("ClashConf")

	switch {
	case subscriptionURL != "":
		return Download(ctx, client, subscriptionURL, configPath)
	case IsValid(configPath):
		l.Info().Msg("Valid config file already exists")
	case asker.AskYesNo("No valid config file found. Do you want to input config content manually?"):
		if !readFromAsker(asker, configPath) {
			l.Warn().Msg("No valid content input, keeping existing config file unchanged")
		}
	default:
		l.Warn().Str("path", configPath).Msg("Skipping config input. You may need to put your subscription file at the config path and restart mihomo.")
	}
	return nil
}

// Download fetches a subscription into configPath. URLs without an http or
// https scheme are skipped with a warning.
func Download(ctx context.Context, client *http.Client, subscriptionURL, configPath string) error {
	l := logger.WithComponent("ClashConf")
	l.Info().Msg("Downloading subscription from URL...")

	if !strings.HasPrefix(subscriptionURL, "http://") && !strings.HasPrefix(subscriptionURL, "https://") {
		l.Warn().Msg("URL does not start with http:// or https:// prefix. Skipping download.")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subscriptionURL, nil)
	if err != nil {
		return fmt.Errorf("building subscription request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("downloading subscription: status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading subscription body: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("writing subscription: %w", err)
	}
	l.Info().Str("path", configPath).Msgf("Downloaded to %s", configPath)
	return nil
}

func readFromAsker(asker Asker, configPath string) bool {
	l := logger.WithComponent("ClashConf")
	l.Info().Msg("Please input your config content below (press Ctrl+D on a new line to finish):")

	content, err := asker.ReadAll()
	if err != nil || strings.TrimSpace(content) == "" {
		return false
	}
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		l.Error().Err(err).Msg("Failed to save config.")
		return false
	}
	l.Info().Str("path", configPath).Msgf("Config saved to %s", configPath)
	return true
}
