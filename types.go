package main

import (
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

type config struct {
	Listen       string                `mapstructure:"listen"`
	Domain       string                `mapstructure:"domain"`
	RealIPHeader string                `mapstructure:"real_ip_header"`
	Responder    string                `mapstructure:"responder"`
	APIToken     string                `mapstructure:"api_token"`
	Debug        bool                  `mapstructure:"debug"`
	DB           dbConfig              `mapstructure:"db"`
	Users        map[string]userConfig `mapstructure:"users"`
	Updater      updaterConfig         `mapstructure:"updater"`
	DNS          dnsConfig             `mapstructure:"dns"`
}

type dbConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type userConfig struct {
	Password     string   `mapstructure:"password"`
	PasswordHash string   `mapstructure:"password_hash"`
	Hosts        []string `mapstructure:"hosts"`
}

type updaterConfig struct {
	Name           string        `mapstructure:"name"`
	ZoneFile       string        `mapstructure:"zone_file"`
	Command        string        `mapstructure:"command"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	TTL            uint32        `mapstructure:"ttl"`
	PrimaryNS      string        `mapstructure:"primary_ns"`
	AdminMailbox   string        `mapstructure:"admin_mailbox"`
	Notify         []string      `mapstructure:"notify"`
}

type dnsConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	UDPListen string   `mapstructure:"udp_listen"`
	TCPListen string   `mapstructure:"tcp_listen"`
	NS        []string `mapstructure:"ns"`
	SOATTL    uint32   `mapstructure:"soa_ttl"`
}

// hostTable maps a fully-qualified hostname (no trailing dot) to its ordered
// list of IP literals. A hostname with no addresses is absent, never empty.
type hostTable map[string][]string

type outcome string

const (
	outcomeGood     outcome = "good"
	outcomeNoChange outcome = "nochg"
)

type statusTag string

const (
	statusSuccess           statusTag = "success"
	statusMethodForbidden   statusTag = "method_forbidden"
	statusNotFound          statusTag = "not_found"
	statusHostnameMissing   statusTag = "hostname_missing"
	statusHostnameMalformed statusTag = "hostname_malformed"
	statusHostForbidden     statusTag = "host_forbidden"
	statusUpdateFailed      statusTag = "update_failed"
)

// updateRequest carries everything the engine needs from one HTTP request.
// Presence flags mirror query-parameter presence, which matters for the
// extraction precedence rules.
type updateRequest struct {
	username    string
	hostname    string
	hasHostname bool
	myIP        string
	hasMyIP     bool
	myIP6       string
	hasMyIP6    bool
	offline     bool
	headerIP    string
	peerIP      string
}

type hostOutcome struct {
	Hostname string  `json:"hostname"`
	Status   outcome `json:"status"`
}

type updateResult struct {
	code     int
	status   statusTag
	outcomes []hostOutcome
	myIPs    []string
}

// zoneSnapshot is the immutable view handed to updaters and the admin API,
// copied out under the engine lock.
type zoneSnapshot struct {
	Domain string
	Serial uint32
	Hosts  hostTable
}

type daemon struct {
	cfg     config
	log     *slog.Logger
	store   persister
	updater updater

	mu     sync.RWMutex
	hosts  hostTable
	serial uint32
	dirty  bool
}

type hostModel struct {
	Hostname  string    `gorm:"primaryKey;size:255"`
	IPsJSON   string    `gorm:"column:ips_json;type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type stateModel struct {
	ID        uint32    `gorm:"primaryKey"`
	Serial    uint32    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (hostModel) TableName() string {
	return "hosts"
}

func (stateModel) TableName() string {
	return "state"
}

type sqliteStore struct {
	db *gorm.DB
}

type fileStore struct {
	path string
}

type server struct {
	cfg    config
	log    *slog.Logger
	daemon *daemon
	reply  responder
	start  time.Time
}
