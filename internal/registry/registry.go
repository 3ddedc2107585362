// Package registry discovers capability handlers from a catalog file or by
// scanning the primary and secondary descriptor directories.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/model"
)

// ErrNotFound is returned by Resolve when no handler has the given name.
var ErrNotFound = errors.New("handler not found")

// Source records where the registry contents came from.
type Source string

const (
	SourceCatalog Source = "catalog"
	SourceScan    Source = "scan"
)

// Config locates the catalog and the descriptor directories.
type Config struct {
	CatalogPath  string
	PrimaryDir   string
	SecondaryDir string
	// SpawnMarker is the string whose presence in a primary descriptor
	// grants the spawn capability. Empty disables spawning.
	SpawnMarker string
}

// Registry is a read-only view of the handler catalog for one process.
type Registry struct {
	cfg      Config
	logger   *zap.Logger
	handlers map[string]model.HandlerDescriptor
	source   Source
	scanned  bool
}

// Load builds a registry from the catalog when it is present, well formed
// and fresh. Any other case falls back to a directory scan; catalog problems
// are logged, never fatal.
func Load(cfg Config, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		cfg:      cfg,
		logger:   logging.OrNop(logger).Named("registry"),
		handlers: make(map[string]model.HandlerDescriptor),
	}

	cat, err := ReadCatalog(cfg.CatalogPath)
	switch {
	case err == nil:
		fp, fpErr := Fingerprint(cfg.PrimaryDir, cfg.SecondaryDir)
		if fpErr == nil && cat.Fingerprint != "" && cat.Fingerprint != fp {
			r.logger.Info("catalog is stale, scanning directories",
				zap.String("catalog", cfg.CatalogPath),
				zap.String("catalog_fingerprint", cat.Fingerprint),
				zap.String("current_fingerprint", fp))
			break
		}
		r.addAll(cat.Handlers)
		r.source = SourceCatalog
		r.logger.Debug("loaded catalog", zap.String("path", cfg.CatalogPath), zap.Int("handlers", len(r.handlers)))
		return r, nil
	case errors.Is(err, os.ErrNotExist):
		r.logger.Debug("no catalog, scanning directories", zap.String("catalog", cfg.CatalogPath))
	default:
		r.logger.Warn("catalog unusable, scanning directories", zap.String("catalog", cfg.CatalogPath), zap.Error(err))
	}

	if err := r.rescan(); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns the descriptor for name. A catalog miss triggers one
// directory scan before giving up.
func (r *Registry) Resolve(name string) (model.HandlerDescriptor, error) {
	if h, ok := r.handlers[name]; ok {
		return h, nil
	}
	if !r.scanned {
		r.logger.Debug("handler missing from catalog, scanning directories", zap.String("handler", name))
		if err := r.rescan(); err != nil {
			r.logger.Warn("directory scan failed", zap.Error(err))
		}
		if h, ok := r.handlers[name]; ok {
			return h, nil
		}
	}
	return model.HandlerDescriptor{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns all handlers, primaries first, each tier sorted by name.
func (r *Registry) List() []model.HandlerDescriptor {
	out := make([]model.HandlerDescriptor, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	sortHandlers(out)
	return out
}

// Source reports whether the registry was served from the catalog or a scan.
func (r *Registry) Source() Source {
	return r.source
}

func (r *Registry) rescan() error {
	found, err := Scan(r.cfg, r.logger)
	if err != nil {
		return err
	}
	// Scanned descriptors fill gaps only; entries already loaded stay.
	r.addAll(found)
	r.scanned = true
	if r.source == "" {
		r.source = SourceScan
	}
	return nil
}

func (r *Registry) addAll(handlers []model.HandlerDescriptor) {
	for _, h := range handlers {
		if h.Name == "" || !h.Tier.Valid() {
			r.logger.Warn("skipping invalid handler entry", zap.String("name", h.Name), zap.String("tier", string(h.Tier)))
			continue
		}
		if h.Tier != model.Primary {
			h.CanSpawn = false
		}
		if _, exists := r.handlers[h.Name]; exists {
			continue
		}
		r.handlers[h.Name] = h
	}
}

func sortHandlers(hs []model.HandlerDescriptor) {
	sort.Slice(hs, func(i, j int) bool {
		if hs[i].Tier != hs[j].Tier {
			return hs[i].Tier == model.Primary
		}
		return hs[i].Name < hs[j].Name
	})
}
