package deployment

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv searches for a .env file starting from the current directory
// and walking up the directory tree. It loads the first .env file found.
// If no .env file is found, it silently continues (using system env vars).
// Variables already set in the environment are not overridden.
//
// Returns the path of the loaded file, or "" if none was loaded.
func LoadEnv() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return LoadEnvFrom(dir)
}

// LoadEnvFrom is LoadEnv starting at dir instead of the working directory.
func LoadEnvFrom(dir string) string {
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return ""
			}
			return envPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop
			return ""
		}
		dir = parent
	}
}
