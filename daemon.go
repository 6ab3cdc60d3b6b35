package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

var errNoUpdater = errors.New("no updater configured")

func newDaemon(cfg config, store persister, up updater, logger *slog.Logger) (*daemon, error) {
	hosts, serial, err := store.load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	d := &daemon{
		cfg:     cfg,
		log:     logger,
		store:   store,
		updater: up,
		hosts:   hosts,
		serial:  serial,
	}

	// A fresh store has no serial yet; seed and persist it so the first
	// zone ever published does not carry serial 0.
	if d.serial == 0 {
		d.serial = 1
		if err := store.save(d.hosts, d.serial); err != nil {
			return nil, fmt.Errorf("seed state: %w", err)
		}
	}

	zoneSerial.Set(float64(d.serial))
	hostsBound.Set(float64(len(d.hosts)))
	d.log.Info("state loaded", "hosts", len(d.hosts), "serial", d.serial)

	return d, nil
}

// handleUpdate runs one update batch through the gate sequence: hostname
// presence, hostname validity, per-host authorization, address resolution,
// classification, then commit when anything changed. Every gate rejects the
// whole batch; mutation only starts once all gates have passed.
func (d *daemon) handleUpdate(req updateRequest) updateResult {
	if !req.hasHostname {
		return rejection(statusHostnameMissing)
	}

	hostnames := strings.Split(req.hostname, ",")
	for _, h := range hostnames {
		if !hostnameValid(h, d.cfg.Domain) {
			return rejection(statusHostnameMalformed)
		}
	}

	user, ok := d.cfg.Users[req.username]
	if !ok {
		return rejection(statusHostForbidden)
	}
	for _, h := range hostnames {
		if !user.allowsHost(h) {
			return rejection(statusHostForbidden)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var myips []string
	if !req.offline {
		myips = extractMyIPs(req)
		if len(myips) == 0 {
			return rejection(statusHostForbidden)
		}
	}

	outcomes := make([]hostOutcome, 0, len(hostnames))
	for _, h := range hostnames {
		outcomes = append(outcomes, hostOutcome{Hostname: h, Status: d.applyChange(h, myips)})
	}

	if d.dirty {
		if err := d.commit(); err != nil {
			d.log.Error("commit failed", "err", err)
			return updateResult{code: http.StatusInternalServerError, status: statusUpdateFailed}
		}
	}

	return updateResult{code: http.StatusOK, status: statusSuccess, outcomes: outcomes, myIPs: myips}
}

func rejection(tag statusTag) updateResult {
	return updateResult{code: http.StatusUnprocessableEntity, status: tag}
}

// applyChange classifies one hostname against myips and mutates the table in
// place. Later hostnames in the same batch observe this mutation, which is
// what makes duplicate hostnames within a request well defined.
func (d *daemon) applyChange(hostname string, myips []string) outcome {
	current, exists := d.hosts[hostname]

	switch {
	case len(myips) == 0 && exists:
		delete(d.hosts, hostname)
		d.dirty = true
		return outcomeGood
	case len(myips) == 0:
		return outcomeNoChange
	case !exists || !slices.Equal(current, myips):
		d.hosts[hostname] = append([]string(nil), myips...)
		d.dirty = true
		return outcomeGood
	default:
		return outcomeNoChange
	}
}

// commit persists the table under the next serial, then propagates. The
// serial only advances on a successful save. A failed propagation leaves the
// commit in place: the published zone is stale until re-triggered, never the
// other way around. Commits are not cancelable once started.
func (d *daemon) commit() error {
	next := d.serial + 1
	if err := d.store.save(d.hosts, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	d.serial = next
	d.dirty = false
	commitsTotal.Inc()
	zoneSerial.Set(float64(d.serial))
	hostsBound.Set(float64(len(d.hosts)))
	d.log.Info("state committed", "serial", d.serial, "hosts", len(d.hosts))

	if d.updater != nil {
		if err := d.updater.update(context.Background(), d.snapshotLocked()); err != nil {
			propagationFailures.Inc()
			d.log.Error("zone propagation failed, published zone diverges from committed state",
				"serial", d.serial, "err", err)
		}
	}

	return nil
}

// propagateNow re-runs propagation for the current committed state, the
// manual recovery path after a propagation failure.
func (d *daemon) propagateNow() error {
	if d.updater == nil {
		return errNoUpdater
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.updater.update(context.Background(), d.snapshotLocked()); err != nil {
		propagationFailures.Inc()
		return err
	}
	return nil
}

func (d *daemon) snapshot() zoneSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

func (d *daemon) snapshotLocked() zoneSnapshot {
	hosts := make(hostTable, len(d.hosts))
	for name, ips := range d.hosts {
		hosts[name] = append([]string(nil), ips...)
	}
	return zoneSnapshot{Domain: d.cfg.Domain, Serial: d.serial, Hosts: hosts}
}

// lookupHost is the read path for the embedded DNS server. Table keys keep
// their request casing, DNS lookups are case-insensitive.
func (d *daemon) lookupHost(hostname string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if ips, ok := d.hosts[hostname]; ok {
		return append([]string(nil), ips...), true
	}
	for name, ips := range d.hosts {
		if strings.EqualFold(name, hostname) {
			return append([]string(nil), ips...), true
		}
	}
	return nil, false
}

func (d *daemon) currentSerial() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.serial
}
