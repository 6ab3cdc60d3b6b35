package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	updatePath      = "/nic/update"
	offlineSentinel = "YES"
)

func loadConfig(path string) (config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("listen", ":8245")
	v.SetDefault("real_ip_header", "X-Real-IP")
	v.SetDefault("responder", "dyndns")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "dyndnsd.db")
	v.SetDefault("updater.ttl", 300)
	v.SetDefault("updater.command_timeout", "10s")
	v.SetDefault("dns.udp_listen", ":53")
	v.SetDefault("dns.tcp_listen", ":53")
	v.SetDefault("dns.soa_ttl", 60)

	v.SetEnvPrefix("DYNDNSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Domain = strings.TrimSuffix(strings.TrimSpace(cfg.Domain), ".")
	cfg.Responder = strings.ToLower(strings.TrimSpace(cfg.Responder))
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.Updater.Name = strings.ToLower(strings.TrimSpace(cfg.Updater.Name))

	if err := cfg.validate(); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func (c config) validate() error {
	if c.Domain == "" {
		return errors.New("config: domain is required")
	}
	if len(c.Users) == 0 {
		return errors.New("config: at least one user is required")
	}
	for name, u := range c.Users {
		if u.Password == "" && u.PasswordHash == "" {
			return fmt.Errorf("config: user %q has neither password nor password_hash", name)
		}
	}

	switch c.Responder {
	case "dyndns", "rest":
	default:
		return fmt.Errorf("config: responder must be dyndns or rest, got %q", c.Responder)
	}

	switch c.DB.Driver {
	case "sqlite", "file":
		if c.DB.Path == "" {
			return errors.New("config: db.path is required")
		}
	default:
		return fmt.Errorf("config: db.driver must be sqlite or file, got %q", c.DB.Driver)
	}

	switch c.Updater.Name {
	case "", "none":
	case "zonefile":
		if c.Updater.ZoneFile == "" {
			return errors.New("config: zonefile updater requires updater.zone_file")
		}
		if c.Updater.PrimaryNS == "" {
			return errors.New("config: zonefile updater requires updater.primary_ns")
		}
	default:
		return fmt.Errorf("config: unknown updater %q", c.Updater.Name)
	}

	if c.DNS.Enabled && len(c.DNS.NS) == 0 {
		return errors.New("config: dns.ns is required when the embedded dns server is enabled")
	}

	return nil
}

// hostWarnings reports permitted hostnames that can never pass validation so
// misconfigured user tables show up at startup instead of as silent rejects.
func (c config) hostWarnings() []string {
	var out []string
	for name, u := range c.Users {
		for _, h := range u.Hosts {
			if !hostnameValid(h, c.Domain) {
				out = append(out, fmt.Sprintf("user %q host %q is not a direct label under %q", name, h, c.Domain))
			}
		}
	}
	return out
}
