package registry

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/model"
)

const descriptorExt = ".md"

// frontMatter is the optional YAML header of a descriptor file.
type frontMatter struct {
	Description string `yaml:"description"`
}

// Scan walks the primary then the secondary directory and synthesizes one
// descriptor per *.md file. A missing directory contributes nothing. When a
// name appears in both tiers the primary descriptor wins.
func Scan(cfg Config, logger *zap.Logger) ([]model.HandlerDescriptor, error) {
	logger = logging.OrNop(logger)

	var out []model.HandlerDescriptor
	seen := make(map[string]string)

	tiers := []struct {
		dir  string
		tier model.Tier
	}{
		{cfg.PrimaryDir, model.Primary},
		{cfg.SecondaryDir, model.Secondary},
	}
	for _, t := range tiers {
		if t.dir == "" {
			continue
		}
		paths, err := descriptorFiles(t.dir)
		if err != nil {
			return nil, fmt.Errorf("scan %s handlers in %s: %w", t.tier, t.dir, err)
		}
		for _, path := range paths {
			h, err := parseDescriptor(path, t.tier, cfg.SpawnMarker)
			if err != nil {
				logger.Warn("failed to read handler descriptor", zap.String("path", path), zap.Error(err))
				continue
			}
			if kept, dup := seen[h.Name]; dup {
				logger.Warn("duplicate handler ignored (keeping first discovered)",
					zap.String("handler", h.Name),
					zap.String("ignored_path", path),
					zap.String("kept_path", kept))
				continue
			}
			seen[h.Name] = path
			out = append(out, h)
		}
	}

	sortHandlers(out)
	return out, nil
}

// descriptorFiles lists *.md regular files directly under dir, sorted.
func descriptorFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), descriptorExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func parseDescriptor(path string, tier model.Tier, marker string) (model.HandlerDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.HandlerDescriptor{}, err
	}

	h := model.HandlerDescriptor{
		Name:        strings.TrimSuffix(filepath.Base(path), descriptorExt),
		Tier:        tier,
		Description: leadingDescription(data),
		Path:        path,
	}
	if tier == model.Primary && marker != "" {
		h.CanSpawn = bytes.Contains(data, []byte(marker))
	}
	return h, nil
}

// leadingDescription returns the front-matter description when present,
// otherwise the first non-empty line with markdown heading marks removed.
func leadingDescription(data []byte) string {
	body := data
	if fm, rest, ok := splitFrontMatter(data); ok {
		var meta frontMatter
		if err := yaml.Unmarshal(fm, &meta); err == nil && meta.Description != "" {
			return strings.TrimSpace(meta.Description)
		}
		body = rest
	}

	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line != "" {
			return line
		}
	}
	return ""
}

func splitFrontMatter(data []byte) (fm, rest []byte, ok bool) {
	const delim = "---"
	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return nil, data, false
	}
	after := data[len(delim)+1:]
	end := bytes.Index(after, []byte("\n"+delim))
	if end < 0 {
		return nil, data, false
	}
	fm = after[:end+1]
	rest = after[end+1+len(delim):]
	return fm, rest, true
}
