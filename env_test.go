package deployment

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFrom_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(root, ".env")
	if err := os.WriteFile(envPath, []byte("DEPLOY_ENV_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// t.Setenv restores the variable after the test; unset it so the file applies.
	t.Setenv("DEPLOY_ENV_TEST_VALUE", "")
	if err := os.Unsetenv("DEPLOY_ENV_TEST_VALUE"); err != nil {
		t.Fatal(err)
	}

	if got := LoadEnvFrom(nested); got != envPath {
		t.Errorf("LoadEnvFrom() = %q, want %q", got, envPath)
	}
	if got := os.Getenv("DEPLOY_ENV_TEST_VALUE"); got != "from-file" {
		t.Errorf("DEPLOY_ENV_TEST_VALUE = %q, want from-file", got)
	}
}

func TestLoadEnvFrom_DoesNotOverride(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("DEPLOY_ENV_TEST_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEPLOY_ENV_TEST_KEEP", "from-env")

	LoadEnvFrom(root)
	if got := os.Getenv("DEPLOY_ENV_TEST_KEEP"); got != "from-env" {
		t.Errorf("DEPLOY_ENV_TEST_KEEP = %q, want from-env", got)
	}
}
