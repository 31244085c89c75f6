// Package indexer implements the --index subtool: scanning configured
// document directories and writing whatever artifacts a vector-search
// backend needs under config/faiss_index/. Building a real embedding index
// is out of scope for the core voice pipeline; this package only owns the
// directory-walk and manifest bookkeeping a future backend would build on.
package indexer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// SearchConfig is the --index subtool's input, read from
// config/search_config.json.
type SearchConfig struct {
	Directories []string `json:"directories"`
}

// LoadSearchConfig reads and parses path.
func LoadSearchConfig(path string) (*SearchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg SearchConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Manifest is the artifact Builder writes to config/faiss_index/manifest.json:
// enough bookkeeping for a future embedding backend to pick up from, without
// this package computing any embeddings itself.
type Manifest struct {
	BuiltAt     time.Time `json:"built_at"`
	Directories []string  `json:"directories"`
	FileCount   int       `json:"file_count"`
	Files       []string  `json:"files"`
}

// Builder walks the configured directories and writes an index manifest.
type Builder interface {
	Build(cfg *SearchConfig, outDir string) (*Manifest, error)
}

// ManifestBuilder is the default Builder: it walks every configured
// directory, records every regular file found, and writes manifest.json.
// It does not compute embeddings or write an actual FAISS index; that is
// explicitly out of scope for the core pipeline this module implements.
type ManifestBuilder struct {
	Now func() time.Time
}

// Build walks cfg.Directories, writes outDir/manifest.json, and returns it.
func (b *ManifestBuilder) Build(cfg *SearchConfig, outDir string) (*Manifest, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	var files []string
	for _, dir := range cfg.Directories {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	m := &Manifest{
		BuiltAt:     now(),
		Directories: cfg.Directories,
		FileCount:   len(files),
		Files:       files,
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outDir, "manifest.json"), data, 0o644); err != nil {
		return nil, err
	}
	return m, nil
}

// Run loads configPath, builds the index under outDir using b, and returns
// the resulting manifest. This is the entry point cmd/agent's --index flag
// calls before exiting.
func Run(b Builder, configPath, outDir string) (*Manifest, error) {
	cfg, err := LoadSearchConfig(configPath)
	if err != nil {
		return nil, err
	}
	return b.Build(cfg, outDir)
}
