package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotenv loads provider credentials from a .env file into the process
// environment. ENV_FILE selects the file, NO_DOTENV=1 disables loading.
// Variables already set are never overwritten.
func LoadDotenv() error {
	if os.Getenv("NO_DOTENV") == "1" {
		return nil
	}
	path := ".env"
	if v := os.Getenv("ENV_FILE"); v != "" {
		path = v
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
