package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os/exec"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// updater pushes a committed snapshot out to the authoritative zone.
// Failures are reported to the engine, never retried here.
type updater interface {
	update(ctx context.Context, snap zoneSnapshot) error
}

func newUpdater(cfg config, logger *slog.Logger) updater {
	switch cfg.Updater.Name {
	case "zonefile":
		return &zoneFileUpdater{cfg: cfg.Updater, log: logger}
	default:
		return nil
	}
}

type zoneFileUpdater struct {
	cfg updaterConfig
	log *slog.Logger
}

func (u *zoneFileUpdater) update(ctx context.Context, snap zoneSnapshot) error {
	content := renderZone(snap, u.cfg)
	if err := writeFileAtomic(u.cfg.ZoneFile, []byte(content)); err != nil {
		return fmt.Errorf("write zone file: %w", err)
	}
	u.log.Debug("zone file written", "path", u.cfg.ZoneFile, "serial", snap.Serial)

	if u.cfg.Command != "" {
		if err := u.runCommand(ctx); err != nil {
			return err
		}
	}

	u.notifyDownstreams(snap.Domain)
	return nil
}

func (u *zoneFileUpdater) runCommand(ctx context.Context) error {
	timeout := u.cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", u.cfg.Command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("reload command: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}

	u.log.Debug("reload command finished", "output", strings.TrimSpace(string(out)))
	return nil
}

// notifyDownstreams sends DNS NOTIFY for the zone to each configured target.
// Best effort: a deaf downstream will catch up on its next SOA refresh.
func (u *zoneFileUpdater) notifyDownstreams(domain string) {
	for _, target := range u.cfg.Notify {
		addr := strings.TrimSpace(target)
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, "53")
		}

		m := new(dns.Msg)
		m.SetNotify(dns.Fqdn(domain))
		if _, err := dns.Exchange(m, addr); err != nil {
			u.log.Warn("notify failed", "target", addr, "err", err)
			continue
		}
		u.log.Debug("notify sent", "target", addr)
	}
}

func renderZone(snap zoneSnapshot, cfg updaterConfig) string {
	origin := dns.Fqdn(snap.Domain)
	primary := dns.Fqdn(cfg.PrimaryNS)

	mbox := cfg.AdminMailbox
	if mbox == "" {
		mbox = "hostmaster." + snap.Domain
	}
	mbox = dns.Fqdn(strings.Replace(mbox, "@", ".", 1))

	var b strings.Builder
	fmt.Fprintf(&b, "$ORIGIN %s\n", origin)
	fmt.Fprintf(&b, "$TTL %d\n", cfg.TTL)

	soa := &dns.SOA{
		Hdr:     dns.RR_Header{Name: origin, Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: cfg.TTL},
		Ns:      primary,
		Mbox:    mbox,
		Serial:  snap.Serial,
		Refresh: 300,
		Retry:   60,
		Expire:  604800,
		Minttl:  cfg.TTL,
	}
	b.WriteString(soa.String() + "\n")

	ns := &dns.NS{
		Hdr: dns.RR_Header{Name: origin, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: cfg.TTL},
		Ns:  primary,
	}
	b.WriteString(ns.String() + "\n")

	for _, name := range sortedHostnames(snap.Hosts) {
		owner := dns.Fqdn(name)
		for _, ip := range snap.Hosts[name] {
			addr, err := netip.ParseAddr(ip)
			if err != nil {
				continue
			}
			var rr dns.RR
			if addr.Is4() {
				rr = &dns.A{
					Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: cfg.TTL},
					A:   net.IP(addr.AsSlice()),
				}
			} else {
				rr = &dns.AAAA{
					Hdr:  dns.RR_Header{Name: owner, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: cfg.TTL},
					AAAA: net.IP(addr.AsSlice()),
				}
			}
			b.WriteString(rr.String() + "\n")
		}
	}

	return b.String()
}
