package netprobe

import (
	"log"
	"net/url"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// HostUp sends ICMP pings to the target and returns true if reachable.
func HostUp(target string) bool {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		log.Printf("[netprobe] failed to create pinger for %s: %v", target, err)
		return false
	}
	pinger.Count = 3
	pinger.Timeout = 5 * time.Second
	pinger.SetPrivileged(true)
	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

// ClassifyFetchFailure distinguishes "the provider host is down" from "the
// host is up but the service misbehaved", so fetch errors in the logs point
// at the right party. rawURL is the provider base URL.
func ClassifyFetchFailure(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown host"
	}
	if HostUp(u.Hostname()) {
		return "host up, service error"
	}
	return "host unreachable"
}
