package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Driver != DriverBadger {
		t.Errorf("store.driver = %q, want %q", cfg.Store.Driver, DriverBadger)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http.addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Events.Driver != EventsNone {
		t.Errorf("events.driver = %q", cfg.Events.Driver)
	}
	if cfg.Store.Mongo.Database != "restaurant_db" {
		t.Errorf("store.mongo.database = %q", cfg.Store.Mongo.Database)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POS_STORE_DRIVER", "postgres")
	t.Setenv("POS_STORE_POSTGRES_URL", "postgres://u:p@db:5432/pos")
	t.Setenv("POS_EVENTS_NATS_CLUSTER_ID", "test-cluster")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("store.driver = %q, want postgres", cfg.Store.Driver)
	}
	if cfg.Store.Postgres.URL != "postgres://u:p@db:5432/pos" {
		t.Errorf("store.postgres.url = %q", cfg.Store.Postgres.URL)
	}
	if cfg.Events.NATS.ClusterID != "test-cluster" {
		t.Errorf("events.nats.cluster_id = %q", cfg.Events.NATS.ClusterID)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
store:
  driver: mongo
  mongo:
    uri: mongodb://mongo:27017/
events:
  driver: nats
  subscribe: true
timezone: Europe/Istanbul
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Driver != DriverMongo || cfg.Store.Mongo.URI != "mongodb://mongo:27017/" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if !cfg.Events.Subscribe {
		t.Error("events.subscribe = false, want true")
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Istanbul" {
		t.Errorf("location = %s", loc)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "sqlite" }, wantErr: true},
		{name: "unknown events", mutate: func(c *Config) { c.Events.Driver = "kafka" }, wantErr: true},
		{name: "subscribe without nats", mutate: func(c *Config) { c.Events.Subscribe = true }, wantErr: true},
		{name: "zero retries", mutate: func(c *Config) { c.Store.ConnectRetries = 0 }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
