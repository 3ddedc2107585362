package registry

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hookroute/internal/fsutil"
	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/model"
)

// CatalogVersion is the schema version written by Build.
const CatalogVersion = 1

// Catalog is the on-disk handler list. It is written as YAML; JSON catalogs
// parse as well.
type Catalog struct {
	Version     int                       `yaml:"version" json:"version"`
	Fingerprint string                    `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
	GeneratedAt time.Time                 `yaml:"generated_at,omitempty" json:"generated_at,omitempty"`
	Handlers    []model.HandlerDescriptor `yaml:"handlers" json:"handlers"`
}

// ReadCatalog parses the catalog at path. A missing file yields an error
// matching os.ErrNotExist.
func ReadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog path is empty: %w", os.ErrNotExist)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Handlers) == 0 {
		return nil, errors.New("catalog lists no handlers")
	}
	if cat.Version > CatalogVersion {
		return nil, fmt.Errorf("catalog version %d is newer than supported %d", cat.Version, CatalogVersion)
	}
	return &cat, nil
}

// Build scans the descriptor directories and writes a fresh catalog.
func Build(cfg Config, logger *zap.Logger) (*Catalog, error) {
	if cfg.CatalogPath == "" {
		return nil, errors.New("catalog path is empty")
	}
	handlers, err := Scan(cfg, logger)
	if err != nil {
		return nil, err
	}
	fp, err := Fingerprint(cfg.PrimaryDir, cfg.SecondaryDir)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		Version:     CatalogVersion,
		Fingerprint: fp,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Handlers:    handlers,
	}
	data, err := yaml.Marshal(cat)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	if err := fsutil.WriteAtomic(cfg.CatalogPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write catalog: %w", err)
	}
	logging.OrNop(logger).Named("registry").Info("catalog written",
		zap.String("path", cfg.CatalogPath),
		zap.Int("handlers", len(handlers)),
		zap.String("fingerprint", fp))
	return cat, nil
}

// Fingerprint hashes the names and contents of every descriptor in dirs
// with BLAKE3. Any added, removed or edited descriptor changes the result.
func Fingerprint(dirs ...string) (string, error) {
	h := blake3.New()
	for i, dir := range dirs {
		fmt.Fprintf(h, "dir %d\x00", i)
		paths, err := descriptorFiles(dir)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", dir, err)
		}
		for _, p := range paths {
			data, err := os.ReadFile(p)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return "", fmt.Errorf("fingerprint %s: %w", p, err)
			}
			fmt.Fprintf(h, "%s\x00%d\x00", filepath.Base(p), len(data))
			h.Write(data)
		}
	}
	return "blake3:" + hex.EncodeToString(h.Sum(nil)), nil
}
