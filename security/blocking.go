package security

import (
	"context"
	"time"

	"github.com/giantswarm/sentinel/activity"
)

// IsIPBlocked reports whether ip is on the blocklist.
func (d *Detector) IsIPBlocked(ip string) bool {
	return d.blocked.contains(normalizeIP(ip), d.clock.Now())
}

// BlockIP blocks ip until it is unblocked.
func (d *Detector) BlockIP(ip, reason string) {
	d.BlockIPFor(ip, reason, 0)
}

// BlockIPFor blocks ip for ttl, measured on the detector clock. A ttl <= 0
// blocks until unblocked.
func (d *Detector) BlockIPFor(ip, reason string, ttl time.Duration) {
	ip = normalizeIP(ip)
	if ip == "" {
		return
	}
	d.blocked.add(BlockedIP{IP: ip, Reason: reason, BlockedAt: d.clock.Now()}, ttl)

	d.logger.Info("IP blocked", "ip", ip, "reason", reason, "ttl", ttl)
	d.recordBlocklistChange(activity.ActionIPBlocked, ip, map[string]any{
		"reason": reason,
		"ttl":    ttl.String(),
	})
}

// UnblockIP removes ip from the blocklist, reporting whether it was blocked.
func (d *Detector) UnblockIP(ip string) bool {
	ip = normalizeIP(ip)
	if !d.blocked.remove(ip, d.clock.Now()) {
		return false
	}

	d.logger.Info("IP unblocked", "ip", ip)
	d.recordBlocklistChange(activity.ActionIPUnblocked, ip, nil)
	return true
}

// BlockedIPs lists the current blocks sorted by address.
func (d *Detector) BlockedIPs() []BlockedIP {
	return d.blocked.list(d.clock.Now())
}

func (d *Detector) recordBlocklistChange(action, ip string, details map[string]any) {
	if d.instrumentation != nil && d.instrumentation.Metrics() != nil {
		d.instrumentation.Metrics().RecordBlocklistChange(context.Background(), action)
	}
	if d.recorder != nil {
		d.recorder.Log(activity.Entry{
			Level:     activity.LevelWarn,
			Category:  activity.CategorySecurity,
			Action:    action,
			IPAddress: ip,
			Details:   details,
			Status:    activity.StatusSuccess,
		})
	}
}
