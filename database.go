package main

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// persister is the durable backing for the host table and serial. Encoding is
// the persister's concern; the engine only loads at startup and saves whole
// snapshots.
type persister interface {
	load() (hostTable, uint32, error)
	save(hosts hostTable, serial uint32) error
}

func openStore(cfg dbConfig) (persister, error) {
	switch cfg.Driver {
	case "file":
		return &fileStore{path: cfg.Path}, nil
	default:
		return newSQLiteStore(cfg.Path)
	}
}

func newSQLiteStore(path string) (*sqliteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sql db: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (s *sqliteStore) load() (hostTable, uint32, error) {
	hosts := make(hostTable)

	var rows []hostModel
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("load hosts: %w", err)
	}
	for _, row := range rows {
		ips, err := unmarshalIPs(row.IPsJSON)
		if err != nil {
			return nil, 0, fmt.Errorf("decode host %s: %w", row.Hostname, err)
		}
		if len(ips) == 0 {
			continue
		}
		hosts[row.Hostname] = ips
	}

	var st stateModel
	err := s.db.First(&st, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return hosts, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load state: %w", err)
	}

	return hosts, st.Serial, nil
}

// save rewrites the full table and the serial in one transaction so a batch
// is either durable in its entirety or not at all.
func (s *sqliteStore) save(hosts hostTable, serial uint32) error {
	now := time.Now().UTC()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&hostModel{}).Error; err != nil {
			return fmt.Errorf("clear hosts: %w", err)
		}

		for _, name := range sortedHostnames(hosts) {
			ipsJSON, err := marshalIPs(hosts[name])
			if err != nil {
				return err
			}
			row := hostModel{Hostname: name, IPsJSON: ipsJSON, UpdatedAt: now}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("save host %s: %w", name, err)
			}
		}

		st := stateModel{ID: 1, Serial: serial, UpdatedAt: now}
		if err := tx.Save(&st).Error; err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		return nil
	})
}

type fileState struct {
	Serial uint32              `json:"serial"`
	Hosts  map[string][]string `json:"hosts"`
}

func (s *fileStore) load() (hostTable, uint32, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(hostTable), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", s.path, err)
	}

	var st fileState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", s.path, err)
	}

	hosts := make(hostTable, len(st.Hosts))
	for name, ips := range st.Hosts {
		if len(ips) == 0 {
			continue
		}
		hosts[name] = ips
	}

	return hosts, st.Serial, nil
}

func (s *fileStore) save(hosts hostTable, serial uint32) error {
	payload, err := json.MarshalIndent(fileState{Serial: serial, Hosts: hosts}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	payload = append(payload, '\n')

	if err := writeFileAtomic(s.path, payload); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func marshalIPs(ips []string) (string, error) {
	b, err := json.Marshal(ips)
	if err != nil {
		return "", fmt.Errorf("encode ip list: %w", err)
	}
	return string(b), nil
}

func unmarshalIPs(v string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(v) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedHostnames(hosts hostTable) []string {
	out := make([]string, 0, len(hosts))
	for name := range hosts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
