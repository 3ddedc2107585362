package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ppiankov/hookroute/internal/model"
)

// Builtin lists the stock handler set that init scaffolds.
func Builtin() []model.HandlerDescriptor {
	p := func(name, desc string, spawn bool) model.HandlerDescriptor {
		return model.HandlerDescriptor{Name: name, Tier: model.Primary, CanSpawn: spawn, Description: desc}
	}
	s := func(name, desc string) model.HandlerDescriptor {
		return model.HandlerDescriptor{Name: name, Tier: model.Secondary, Description: desc}
	}
	return []model.HandlerDescriptor{
		p("project-orchestrator", "Breaks features into tasks and coordinates specialists", true),
		p("ci-investigator", "Diagnoses failing CI pipelines and workflows", true),
		p("test-strategist", "Plans test coverage and test structure", true),
		p("security-auditor", "Audits code and configuration for security issues", true),
		p("code-quality-analyzer", "Reviews code quality, complexity and maintainability", true),
		p("debug-investigator", "Reproduces and isolates bugs", true),
		p("performance-profiler", "Finds CPU, latency and throughput bottlenecks", true),
		p("k8s-orchestrator", "Reviews and operates Kubernetes deployments", true),
		p("architecture-reviewer", "Reviews module boundaries and system design", false),
		p("refactoring-planner", "Plans safe incremental refactors", true),
		p("release-manager", "Prepares versioned releases", true),
		p("documentation-lead", "Owns READMEs and long-form documentation", false),

		s("test-runner", "Runs the test suite and summarizes results"),
		s("test-failure-analyzer", "Explains failing tests"),
		s("flaky-test-hunter", "Finds nondeterministic tests"),
		s("coverage-analyst", "Reports coverage gaps"),
		s("lint-fixer", "Fixes linter findings"),
		s("formatter", "Applies code formatting"),
		s("type-checker", "Fixes type errors"),
		s("dependency-auditor", "Audits outdated or risky dependencies"),
		s("secret-scanner", "Finds committed secrets and credentials"),
		s("vulnerability-scanner", "Checks dependencies against known CVEs"),
		s("dockerfile-optimizer", "Hardens and slims Dockerfiles"),
		s("helm-chart-reviewer", "Reviews Helm charts"),
		s("terraform-reviewer", "Reviews Terraform plans and modules"),
		s("github-actions-fixer", "Fixes GitHub Actions workflow files"),
		s("log-analyzer", "Summarizes errors in log output"),
		s("memory-profiler", "Finds leaks and heavy allocations"),
		s("query-optimizer", "Optimizes slow database queries"),
		s("api-designer", "Designs API contracts"),
		s("schema-migrator", "Writes database schema migrations"),
		s("frontend-reviewer", "Reviews UI components and styles"),
		s("accessibility-auditor", "Checks accessibility of UI changes"),
		s("i18n-checker", "Checks translations and localization"),
		s("changelog-writer", "Writes changelog entries"),
		s("commit-message-writer", "Drafts commit messages"),
		s("pr-reviewer", "Reviews pull requests"),
		s("docstring-writer", "Writes doc comments"),
		s("benchmark-runner", "Runs and compares benchmarks"),
	}
}

// Scaffold writes a descriptor file for every handler that has none yet and
// returns the paths it created. Existing files are left untouched.
func Scaffold(cfg Config, handlers []model.HandlerDescriptor) ([]string, error) {
	var created []string
	for _, h := range handlers {
		dir := cfg.SecondaryDir
		if h.Tier == model.Primary {
			dir = cfg.PrimaryDir
		}
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("create %s: %w", dir, err)
		}
		path := filepath.Join(dir, h.Name+descriptorExt)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return created, err
		}

		content := fmt.Sprintf("---\ndescription: %s\n---\n# %s\n", h.Description, h.Name)
		if h.Tier == model.Primary && h.CanSpawn && cfg.SpawnMarker != "" {
			content += "\n" + cfg.SpawnMarker + "\n"
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return created, fmt.Errorf("write %s: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}
