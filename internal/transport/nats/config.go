package nats

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the NATS transport configuration. Values can be loaded from a
// YAML file; NATS_URL overrides the connection URL either way.
type Config struct {
	URL            string        `yaml:"url"`
	Name           string        `yaml:"name"`
	Stream         string        `yaml:"stream"`
	QueueGroup     string        `yaml:"queue_group"`
	AckWait        time.Duration `yaml:"ack_wait"`
	MaxDeliver     int           `yaml:"max_deliver"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	Subjects Subjects `yaml:"subjects"`
}

// Subjects names the inbound subjects and their durable consumers.
type Subjects struct {
	Measurements     SubjectConfig `yaml:"measurements"`
	RegistryIssued   SubjectConfig `yaml:"registry_issued"`
	RegistryRejected SubjectConfig `yaml:"registry_rejected"`
}

// SubjectConfig binds one subject to a durable consumer name.
type SubjectConfig struct {
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`
}

// DefaultConfig returns the local development configuration.
func DefaultConfig() Config {
	return Config{
		URL:            "nats://127.0.0.1:4222",
		Name:           "certificate-engine",
		Stream:         "CERTIFICATES",
		QueueGroup:     "certificate-engine",
		AckWait:        30 * time.Second,
		MaxDeliver:     10,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  60,
		ConnectTimeout: 5 * time.Second,
		Subjects: Subjects{
			Measurements:     SubjectConfig{Subject: "measurements.received", Durable: "engine-measurements"},
			RegistryIssued:   SubjectConfig{Subject: "registry.certificate.issued", Durable: "engine-registry-issued"},
			RegistryRejected: SubjectConfig{Subject: "registry.certificate.rejected", Durable: "engine-registry-rejected"},
		},
	}
}

// LoadConfig reads configuration from a YAML file, falling back to defaults
// for anything unset. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("nats config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("nats config: parse %s: %w", path, err)
		}
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.URL = url
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats config: empty url")
	}
	for _, sc := range []SubjectConfig{c.Subjects.Measurements, c.Subjects.RegistryIssued, c.Subjects.RegistryRejected} {
		if sc.Subject == "" || sc.Durable == "" {
			return fmt.Errorf("nats config: subject and durable are required for every subscription")
		}
	}
	return nil
}
