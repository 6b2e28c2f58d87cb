// Package egress routes upstream traffic through a ranked set of network
// paths.
//
// A path is either direct or anonymized (routed through a SOCKS5 proxy).
// The switchboard hands out the highest-preference path that is neither
// blocked nor disabled. When the upstream starts refusing a path (rate
// limiting, login walls) the caller reports the outcome and the path
// enters a cooldown that doubles with each consecutive block.
//
// Paths can also be disabled or reset administratively, independent of
// the automatic cooldown.
//
// Usage:
//
//	sw, err := egress.NewSwitchboard(cfg, 30*time.Second)
//	path, err := sw.Select(false)
//	resp, err := path.Client.Do(req)
//	sw.ReportOutcome(path, blocked)
package egress
