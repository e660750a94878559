package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	StudyDate string
	NAValues  []string
	CSVBOM    bool

	SimilarityThreshold float64

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "workspace.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		StudyDate: getEnv("STUDY_DATE", "2020-10-20"),
		NAValues:  getEnvList("NA_VALUES", []string{"", "NA", "N/A", "NULL"}),
		CSVBOM:    getEnvBool("CSV_BOM", false),

		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.8),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.StudyTime(); err != nil {
		return err
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0,1], got %v", c.SimilarityThreshold)
	}
	return nil
}

// StudyTime parses StudyDate as a calendar day.
func (c Config) StudyTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(c.StudyDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid STUDY_DATE %q: %w", c.StudyDate, err)
	}
	return t, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvList splits a comma-separated value. An explicitly empty variable
// yields the fallback; "," alone yields a single empty token.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
