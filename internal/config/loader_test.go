package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoader_WithoutConfigFile(t *testing.T) {
	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("Expected loader to work without config file, got error: %v", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Expected to get config without config file, got error: %v", err)
	}

	// Verify defaults are applied
	if cfg.UpdateIntervalSeconds != 21600 {
		t.Errorf("Expected default interval 21600, got %d", cfg.UpdateIntervalSeconds)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected default HTTP port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.StaticDir != "static" {
		t.Errorf("Expected default static dir 'static', got %q", cfg.Server.StaticDir)
	}
}

func TestNewLoader_LegacyJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"UpdateIntervalSeconds": 300,
		"IdPs": ["http://idp/realms/r/"],
		"CouchDBservers": ["http://db/"],
		"SomethingUnknown": true
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader, err := NewLoader(path)
	if err != nil {
		t.Fatalf("Expected loader to read the file, got error: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Expected to get config, got error: %v", err)
	}

	if cfg.UpdateIntervalSeconds != 300 {
		t.Errorf("Expected interval 300, got %d", cfg.UpdateIntervalSeconds)
	}
	// Trailing slashes are normalized away
	if len(cfg.IdPs) != 1 || cfg.IdPs[0] != "http://idp/realms/r" {
		t.Errorf("Unexpected IdPs: %v", cfg.IdPs)
	}
	if len(cfg.CouchDBServers) != 1 || cfg.CouchDBServers[0] != "http://db" {
		t.Errorf("Unexpected CouchDB servers: %v", cfg.CouchDBServers)
	}
	// Defaults still fill the sections the file omits
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected default HTTP port 8080, got %d", cfg.Server.HTTPPort)
	}
}

func TestNewLoader_MissingFileIsFatal(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestNewLoader_UnsupportedExtension(t *testing.T) {
	if _, err := NewLoader("config.ini"); err == nil {
		t.Error("Expected error for unsupported config format")
	}
}

func TestNewLoader_WithEnvironmentVariables(t *testing.T) {
	_ = os.Setenv("IDPSYNC_UPDATE_INTERVAL_SECONDS", "60")
	_ = os.Setenv("IDPSYNC_SERVER__HTTP_PORT", "18080")
	defer func() {
		_ = os.Unsetenv("IDPSYNC_UPDATE_INTERVAL_SECONDS")
		_ = os.Unsetenv("IDPSYNC_SERVER__HTTP_PORT")
	}()

	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("Expected loader to work, got error: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Expected to get config, got error: %v", err)
	}

	if cfg.UpdateIntervalSeconds != 60 {
		t.Errorf("Expected interval 60 from env, got %d", cfg.UpdateIntervalSeconds)
	}
	if cfg.Server.HTTPPort != 18080 {
		t.Errorf("Expected HTTP port 18080 from env, got %d", cfg.Server.HTTPPort)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"IDPSYNC_UPDATE_INTERVAL_SECONDS", "UpdateIntervalSeconds"},
		{"IDPSYNC_IDPS", "IdPs"},
		{"IDPSYNC_COUCHDBSERVERS", "CouchDBservers"},
		{"IDPSYNC_SERVER__HTTP_PORT", "server.http_port"},
		{"IDPSYNC_SERVER__STATIC_DIR", "server.static_dir"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCredentials(t *testing.T) {
	t.Run("canonical variable", func(t *testing.T) {
		t.Setenv("COUCHDB_USER", "admin")
		t.Setenv("COUCHDB_PWD", "secret")

		user, pwd, err := Credentials()
		if err != nil {
			t.Fatalf("Credentials failed: %v", err)
		}
		if user != "admin" || pwd != "secret" {
			t.Errorf("got %q/%q", user, pwd)
		}
	})

	t.Run("password alias", func(t *testing.T) {
		t.Setenv("COUCHDB_USER", "admin")
		t.Setenv("COUCHDB_PWD", "")
		t.Setenv("COUCHDB_PASSWORD", "aliased")

		user, pwd, err := Credentials()
		if err != nil {
			t.Fatalf("Credentials failed: %v", err)
		}
		if user != "admin" || pwd != "aliased" {
			t.Errorf("got %q/%q", user, pwd)
		}
	})

	t.Run("canonical wins over alias", func(t *testing.T) {
		t.Setenv("COUCHDB_USER", "admin")
		t.Setenv("COUCHDB_PWD", "canonical")
		t.Setenv("COUCHDB_PASSWORD", "aliased")

		_, pwd, err := Credentials()
		if err != nil {
			t.Fatalf("Credentials failed: %v", err)
		}
		if pwd != "canonical" {
			t.Errorf("pwd = %q, want canonical", pwd)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("COUCHDB_USER", "")
		t.Setenv("COUCHDB_PWD", "")
		t.Setenv("COUCHDB_PASSWORD", "")

		if _, _, err := Credentials(); err == nil {
			t.Error("expected error with no credentials in the environment")
		}
	})
}
