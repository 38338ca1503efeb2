package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv_fallbacks(t *testing.T) {
	t.Setenv("CFG_STR", "")
	t.Setenv("CFG_INT", "abc")
	t.Setenv("CFG_DUR", "90s")
	t.Setenv("CFG_BOOL", "true")

	if got := GetEnv("CFG_STR", "x"); got != "x" {
		t.Errorf("GetEnv: got %q", got)
	}
	if got := GetEnvInt("CFG_INT", 7); got != 7 {
		t.Errorf("GetEnvInt: got %d", got)
	}
	if got := GetEnvDuration("CFG_DUR", time.Second); got != 90*time.Second {
		t.Errorf("GetEnvDuration: got %v", got)
	}
	if got := GetEnvBool("CFG_BOOL", false); !got {
		t.Error("GetEnvBool: expected true")
	}
}

func TestEmbedSecret(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		t.Setenv("EMBED_SECRET", "s3cret")
		s, insecure, err := EmbedSecret("production")
		if err != nil || insecure || s != "s3cret" {
			t.Errorf("got %q %v %v", s, insecure, err)
		}
	})
	t.Run("missing_dev", func(t *testing.T) {
		t.Setenv("EMBED_SECRET", "")
		s, insecure, err := EmbedSecret("development")
		if err != nil || !insecure || s != InsecureDefaultSecret {
			t.Errorf("got %q %v %v", s, insecure, err)
		}
	})
	t.Run("missing_prod", func(t *testing.T) {
		t.Setenv("EMBED_SECRET", "")
		_, _, err := EmbedSecret("Production")
		if !errors.Is(err, ErrMissingSecret) {
			t.Errorf("expected ErrMissingSecret, got %v", err)
		}
	})
}

func TestLoad_dotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CFG_FROM_FILE=hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CFG_FROM_FILE", "")
	os.Unsetenv("CFG_FROM_FILE")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("CFG_FROM_FILE", ""); got != "hello" {
		t.Errorf("expected value from .env, got %q", got)
	}
}
