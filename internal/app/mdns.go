package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_morehradar._tcp"
	mdnsDomain      = "local."
)

// startMDNS advertises the HTTP API on the LAN so community devices can
// discover a nearby radar without configuration.
func (a *App) startMDNS(port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	a.stopMDNS()

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "morehradar"
	}

	instance := sanitizeMDNSInstance(fmt.Sprintf("Moreh Radar (%s)", hostname))

	txt := []string{
		fmt.Sprintf("http_port=%d", port),
		"proto=v1",
	}

	server, err := zeroconf.Register(instance, mdnsServiceType, mdnsDomain, port, txt, nil)
	if err != nil {
		return err
	}

	a.mdns = server
	a.logger.Info("mDNS advertisement started", "instance", instance, "port", port)
	return nil
}

func (a *App) stopMDNS() {
	if a.mdns == nil {
		return
	}

	a.mdns.Shutdown()
	a.logger.Info("mDNS advertisement stopped")
	a.mdns = nil
}

func sanitizeMDNSInstance(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, ".", " ")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	if cleaned == "" {
		cleaned = "Moreh Radar"
	}
	runes := []rune(cleaned)
	const maxLen = 63
	if len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}
