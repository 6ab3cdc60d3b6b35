package main

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

func (s *server) runDNS(ctx context.Context, network string) error {
	addr := s.cfg.DNS.UDPListen
	if network == "tcp" {
		addr = s.cfg.DNS.TCPListen
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleDNS)

	dnsServer := &dns.Server{Addr: addr, Net: network, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = dnsServer.ShutdownContext(context.Background())
	}()

	s.log.Info("dns listening", "net", network, "addr", addr)
	if err := dnsServer.ListenAndServe(); err != nil {
		return fmt.Errorf("dns/%s listen: %w", network, err)
	}
	return nil
}

func (s *server) handleDNS(w dns.ResponseWriter, req *dns.Msg) {
	resp := s.resolveDNS(req)
	_ = w.WriteMsg(resp)
}

// resolveDNS answers authoritatively for the managed domain and nothing
// else. Bound hostnames get their A/AAAA sets, the apex gets SOA and NS,
// unbound names under the domain get NXDOMAIN with the SOA attached so
// resolvers cache the negative answer.
func (s *server) resolveDNS(req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true

	zone := normalizeName(s.cfg.Domain)
	ttl := s.cfg.DNS.SOATTL

	for _, q := range req.Question {
		name := normalizeName(q.Name)
		if !dns.IsSubDomain(zone, name) {
			continue
		}

		switch q.Qtype {
		case dns.TypeA, dns.TypeAAAA, dns.TypeANY:
			ips, ok := s.daemon.lookupHost(strings.TrimSuffix(name, "."))
			if !ok {
				continue
			}
			for _, ip := range ips {
				addr, err := netip.ParseAddr(ip)
				if err != nil {
					continue
				}
				if addr.Is4() && (q.Qtype == dns.TypeA || q.Qtype == dns.TypeANY) {
					resp.Answer = append(resp.Answer, &dns.A{
						Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
						A:   net.IP(addr.AsSlice()),
					})
				}
				if !addr.Is4() && (q.Qtype == dns.TypeAAAA || q.Qtype == dns.TypeANY) {
					resp.Answer = append(resp.Answer, &dns.AAAA{
						Hdr:  dns.RR_Header{Name: name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: ttl},
						AAAA: net.IP(addr.AsSlice()),
					})
				}
			}
		case dns.TypeNS:
			if name != zone {
				continue
			}
			for _, ns := range normalizeNames(s.cfg.DNS.NS) {
				resp.Answer = append(resp.Answer, &dns.NS{
					Hdr: dns.RR_Header{Name: zone, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: ttl},
					Ns:  ns,
				})
			}
		case dns.TypeSOA:
			if name != zone {
				continue
			}
			resp.Answer = append(resp.Answer, s.soaForZone())
		}
	}

	if len(resp.Answer) == 0 {
		firstQ := "."
		if len(req.Question) > 0 {
			firstQ = normalizeName(req.Question[0].Name)
		}

		if dns.IsSubDomain(zone, firstQ) {
			_, bound := s.daemon.lookupHost(strings.TrimSuffix(firstQ, "."))
			if bound || firstQ == zone {
				resp.Rcode = dns.RcodeSuccess
			} else {
				resp.Rcode = dns.RcodeNameError
			}
			resp.Ns = append(resp.Ns, s.soaForZone())
		} else {
			resp.Rcode = dns.RcodeRefused
		}
	}

	return resp
}

func (s *server) soaForZone() dns.RR {
	zone := normalizeName(s.cfg.Domain)
	mname := zone
	if len(s.cfg.DNS.NS) > 0 {
		mname = normalizeName(s.cfg.DNS.NS[0])
	}

	return &dns.SOA{
		Hdr:     dns.RR_Header{Name: zone, Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: s.cfg.DNS.SOATTL},
		Ns:      mname,
		Mbox:    "hostmaster." + zone,
		Serial:  s.daemon.currentSerial(),
		Refresh: 300,
		Retry:   60,
		Expire:  604800,
		Minttl:  s.cfg.DNS.SOATTL,
	}
}
