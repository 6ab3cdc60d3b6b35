package main

import (
	"net/http"
	"strings"
)

// responder renders engine results onto the wire. The engine is agnostic to
// the dialect; both variants consume the same (code, tag, outcomes, myips).
type responder interface {
	respondChanges(w http.ResponseWriter, outcomes []hostOutcome, myips []string)
	respondError(w http.ResponseWriter, code int, tag statusTag)
	respondAuthRequired(w http.ResponseWriter)
}

func newResponder(cfg config) responder {
	if cfg.Responder == "rest" {
		return restResponder{}
	}
	return dynDNSResponder{}
}

// dynDNSResponder speaks the line oriented dyndns2 dialect that stock
// clients (ddclient, router firmware) parse.
type dynDNSResponder struct{}

var dynDNSErrorBodies = map[statusTag]string{
	statusMethodForbidden:   "badrequest",
	statusNotFound:          "badrequest",
	statusHostnameMissing:   "notfqdn",
	statusHostnameMalformed: "notfqdn",
	statusHostForbidden:     "nohost",
	statusUpdateFailed:      "911",
}

func (dynDNSResponder) respondChanges(w http.ResponseWriter, outcomes []hostOutcome, myips []string) {
	lines := make([]string, 0, len(outcomes))
	for _, oc := range outcomes {
		line := string(oc.Status)
		if len(myips) > 0 {
			line += " " + strings.Join(myips, " ")
		}
		lines = append(lines, line)
	}

	writeText(w, http.StatusOK, strings.Join(lines, "\n"))
}

func (dynDNSResponder) respondError(w http.ResponseWriter, code int, tag statusTag) {
	if tag == statusMethodForbidden {
		w.Header().Set("Allow", http.MethodGet)
	}

	body, ok := dynDNSErrorBodies[tag]
	if !ok {
		body = "badrequest"
	}
	writeText(w, code, body)
}

func (dynDNSResponder) respondAuthRequired(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="dyndnsd"`)
	writeText(w, http.StatusUnauthorized, "badauth")
}

// restResponder answers in JSON, carrying the engine's status tags verbatim.
type restResponder struct{}

type restChangesBody struct {
	Status statusTag     `json:"status"`
	Hosts  []hostOutcome `json:"hosts"`
	MyIPs  []string      `json:"myips"`
}

func (restResponder) respondChanges(w http.ResponseWriter, outcomes []hostOutcome, myips []string) {
	if myips == nil {
		myips = []string{}
	}
	writeJSON(w, http.StatusOK, restChangesBody{Status: statusSuccess, Hosts: outcomes, MyIPs: myips})
}

func (restResponder) respondError(w http.ResponseWriter, code int, tag statusTag) {
	if tag == statusMethodForbidden {
		w.Header().Set("Allow", http.MethodGet)
	}
	writeJSON(w, code, map[string]string{"status": string(tag)})
}

func (restResponder) respondAuthRequired(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="dyndnsd"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}
