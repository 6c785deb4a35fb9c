package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	parserOnce   sync.Once
	parserConfig *ParserConfig
)

// ParserConfig carries the pipeline tunables, loaded from parser.yaml at
// the project root when present.
type ParserConfig struct {
	MaxFileSizeMB     int64         `yaml:"maxFileSizeMB"`
	ParseTimeout      time.Duration `yaml:"parseTimeout"`
	FetchTimeout      time.Duration `yaml:"fetchTimeout"`
	MaxConcurrent     int           `yaml:"maxConcurrent"`
	WorkerThresholdKB int64         `yaml:"workerThresholdKB"`
	WorkerTimeout     time.Duration `yaml:"workerTimeout"`
	WorkerEnabled     bool          `yaml:"workerEnabled"`
	StorageBackend    string        `yaml:"storageBackend"` // "minio" or "s3"
	CacheEntries      int           `yaml:"cacheEntries"`
	CacheTTL          time.Duration `yaml:"cacheTTL"`
	CacheSweep        time.Duration `yaml:"cacheSweep"`
}

func defaultParserConfig() *ParserConfig {
	return &ParserConfig{
		MaxFileSizeMB:     50,
		ParseTimeout:      60 * time.Second,
		FetchTimeout:      20 * time.Second,
		MaxConcurrent:     3,
		WorkerThresholdKB: 1024,
		WorkerTimeout:     30 * time.Second,
		WorkerEnabled:     false,
		StorageBackend:    "minio",
		CacheEntries:      50,
		CacheTTL:          15 * time.Minute,
		CacheSweep:        5 * time.Minute,
	}
}

func GetParserConfig() *ParserConfig {
	parserOnce.Do(func() {
		loadEnv()
		parserConfig = defaultParserConfig()

		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		yamlPath := filepath.Join(rootDir, "parser.yaml")
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			log.Printf("Warning: parser.yaml not found at %s, using defaults", yamlPath)
			return
		}
		if err := yaml.Unmarshal(data, parserConfig); err != nil {
			log.Printf("Warning: failed to parse %s: %v, using defaults", yamlPath, err)
			parserConfig = defaultParserConfig()
		}
	})
	return parserConfig
}
