package fallback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var ciLocations = []string{
	".github/workflows",
	".gitlab-ci.yml",
	".circleci/config.yml",
	"Jenkinsfile",
	"azure-pipelines.yml",
	".travis.yml",
	"bitbucket-pipelines.yml",
}

func checkCIConfig(_ context.Context, _ *Env, t Target) (Status, string) {
	root, _ := repoRoot(t.Dir())
	var found []string
	for _, loc := range ciLocations {
		if _, err := os.Stat(filepath.Join(root, loc)); err == nil {
			found = append(found, loc)
		}
	}
	if len(found) == 0 {
		return StatusWarn, "no CI configuration under " + root
	}
	return StatusOK, "found: " + strings.Join(found, ", ")
}

type workflow struct {
	Permissions yaml.Node              `yaml:"permissions"`
	Jobs        map[string]workflowJob `yaml:"jobs"`
}

type workflowJob struct {
	TimeoutMinutes yaml.Node      `yaml:"timeout-minutes"`
	Uses           string         `yaml:"uses"`
	Steps          []workflowStep `yaml:"steps"`
}

type workflowStep struct {
	Name string `yaml:"name"`
	Uses string `yaml:"uses"`
	Run  string `yaml:"run"`
}

var unpinnedRef = regexp.MustCompile(`@(main|master|latest|HEAD)$`)

// lintWorkflow returns findings for one workflow document.
func lintWorkflow(name string, data []byte) []string {
	var wf workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return []string{fmt.Sprintf("%s: parse error: %v", name, err)}
	}
	var findings []string
	if wf.Permissions.IsZero() {
		findings = append(findings, name+": no top-level permissions block")
	}
	if len(wf.Jobs) == 0 {
		findings = append(findings, name+": no jobs")
	}
	for _, jobName := range slices.Sorted(maps.Keys(wf.Jobs)) {
		job := wf.Jobs[jobName]
		if job.Uses == "" && job.TimeoutMinutes.IsZero() {
			findings = append(findings, fmt.Sprintf("%s: job %s has no timeout-minutes", name, jobName))
		}
		for _, s := range job.Steps {
			if s.Uses == "" || strings.HasPrefix(s.Uses, "./") || strings.HasPrefix(s.Uses, "docker://") {
				continue
			}
			if !strings.Contains(s.Uses, "@") || unpinnedRef.MatchString(s.Uses) {
				findings = append(findings, fmt.Sprintf("%s: job %s uses unpinned %s", name, jobName, s.Uses))
			}
			if strings.Contains(s.Run, "curl") && strings.Contains(s.Run, "| sh") {
				findings = append(findings, fmt.Sprintf("%s: job %s pipes curl to sh", name, jobName))
			}
		}
	}
	return findings
}

func checkWorkflows(ctx context.Context, _ *Env, t Target) (Status, string) {
	root, _ := repoRoot(t.Dir())
	dir := filepath.Join(root, ".github", "workflows")
	files, err := walkFiles(ctx, dir, func(p string) bool { return hasExt(p, ".yml", ".yaml") })
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StatusNotApplicable, "no .github/workflows"
		}
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no workflow files"
	}
	var findings []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return StatusError, err.Error()
		}
		data, err := os.ReadFile(f)
		if err != nil {
			findings = append(findings, fmt.Sprintf("%s: %v", filepath.Base(f), err))
			continue
		}
		findings = append(findings, lintWorkflow(filepath.Base(f), data)...)
	}
	if len(findings) > 0 {
		return StatusWarn, summarizeList("workflow findings", findings)
	}
	return StatusOK, fmt.Sprintf("%d workflows clean", len(files))
}

func isDockerfile(path string) bool {
	base := filepath.Base(path)
	return base == "Dockerfile" || strings.HasPrefix(base, "Dockerfile.") || strings.HasSuffix(strings.ToLower(base), ".dockerfile")
}

func dockerfiles(ctx context.Context, t Target) ([]string, error) {
	if t.Info != nil && !t.Info.IsDir() && isDockerfile(t.Path) {
		return []string{t.Path}, nil
	}
	root, _ := repoRoot(t.Dir())
	if t.Info != nil && t.Info.IsDir() {
		root = t.Path
	}
	return walkFiles(ctx, root, isDockerfile)
}

// imageUnpinned reports whether an image reference floats: no tag, the
// latest tag, and no digest.
func imageUnpinned(ref string) bool {
	if ref == "" || ref == "scratch" || strings.Contains(ref, "@sha256:") || strings.HasPrefix(ref, "$") {
		return false
	}
	last := ref[strings.LastIndex(ref, "/")+1:]
	i := strings.LastIndex(last, ":")
	return i < 0 || last[i+1:] == "latest"
}

// lintDockerfile returns findings for one Dockerfile.
func lintDockerfile(name string, r io.Reader) []string {
	var findings []string
	stages := map[string]bool{}
	user := ""
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "FROM":
			args := fields[1:]
			for len(args) > 0 && strings.HasPrefix(args[0], "--") {
				args = args[1:]
			}
			if len(args) == 0 {
				continue
			}
			if !stages[strings.ToLower(args[0])] && imageUnpinned(args[0]) {
				findings = append(findings, fmt.Sprintf("%s:%d: unpinned base image %s", name, n, args[0]))
			}
			if len(args) >= 3 && strings.EqualFold(args[1], "AS") {
				stages[strings.ToLower(args[2])] = true
			}
			user = ""
		case "USER":
			if len(fields) > 1 {
				user = fields[1]
			}
		case "ADD":
			for _, a := range fields[1:] {
				if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
					findings = append(findings, fmt.Sprintf("%s:%d: ADD from remote URL", name, n))
					break
				}
			}
		}
	}
	if user == "" || user == "root" || user == "0" {
		findings = append(findings, name+": final stage runs as root")
	}
	return findings
}

func checkDockerfiles(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := dockerfiles(ctx, t)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no Dockerfiles"
	}
	var findings []string
	for _, f := range files {
		fh, err := os.Open(f)
		if err != nil {
			continue
		}
		findings = append(findings, lintDockerfile(filepath.Base(f), io.LimitReader(fh, maxScanBytes))...)
		fh.Close()
	}
	if len(findings) > 0 {
		return StatusWarn, summarizeList("Dockerfile findings", findings)
	}
	return StatusOK, fmt.Sprintf("%d Dockerfiles clean", len(files))
}

type container struct {
	Name            string `yaml:"name"`
	Image           string `yaml:"image"`
	SecurityContext struct {
		Privileged   bool  `yaml:"privileged"`
		RunAsNonRoot *bool `yaml:"runAsNonRoot"`
	} `yaml:"securityContext"`
	Resources struct {
		Limits map[string]string `yaml:"limits"`
	} `yaml:"resources"`
}

type podSpec struct {
	HostNetwork bool        `yaml:"hostNetwork"`
	Containers  []container `yaml:"containers"`
}

type manifest struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec struct {
		podSpec  `yaml:",inline"`
		Template struct {
			Spec podSpec `yaml:"spec"`
		} `yaml:"template"`
		JobTemplate struct {
			Spec struct {
				Template struct {
					Spec podSpec `yaml:"spec"`
				} `yaml:"template"`
			} `yaml:"spec"`
		} `yaml:"jobTemplate"`
	} `yaml:"spec"`
}

func (m manifest) pod() podSpec {
	switch {
	case len(m.Spec.Containers) > 0:
		return m.Spec.podSpec
	case len(m.Spec.Template.Spec.Containers) > 0:
		return m.Spec.Template.Spec
	default:
		return m.Spec.JobTemplate.Spec.Template.Spec
	}
}

// lintManifests decodes every document in a YAML stream and returns
// findings for Kubernetes workloads. Non-Kubernetes documents are ignored.
func lintManifests(name string, r io.Reader) (workloads int, findings []string) {
	dec := yaml.NewDecoder(r)
	for {
		var m manifest
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var te *yaml.TypeError
			if errors.As(err, &te) {
				continue
			}
			break
		}
		if m.APIVersion == "" || m.Kind == "" {
			continue
		}
		pod := m.pod()
		if len(pod.Containers) == 0 {
			continue
		}
		workloads++
		obj := fmt.Sprintf("%s: %s/%s", name, m.Kind, m.Metadata.Name)
		if pod.HostNetwork {
			findings = append(findings, obj+" uses hostNetwork")
		}
		for _, c := range pod.Containers {
			if c.SecurityContext.Privileged {
				findings = append(findings, fmt.Sprintf("%s container %s is privileged", obj, c.Name))
			}
			if len(c.Resources.Limits) == 0 {
				findings = append(findings, fmt.Sprintf("%s container %s has no resource limits", obj, c.Name))
			}
			if imageUnpinned(c.Image) {
				findings = append(findings, fmt.Sprintf("%s container %s uses unpinned image %s", obj, c.Name, c.Image))
			}
		}
	}
	return workloads, findings
}

func checkManifests(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, func(p string) bool { return hasExt(p, ".yml", ".yaml") })
	if err != nil {
		return StatusError, err.Error()
	}
	total := 0
	var findings []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return StatusError, err.Error()
		}
		fh, err := os.Open(f)
		if err != nil {
			continue
		}
		n, found := lintManifests(filepath.Base(f), io.LimitReader(fh, maxScanBytes))
		fh.Close()
		total += n
		findings = append(findings, found...)
	}
	if total == 0 {
		return StatusNotApplicable, "no Kubernetes workloads"
	}
	if len(findings) > 0 {
		return StatusWarn, summarizeList("manifest findings", findings)
	}
	return StatusOK, fmt.Sprintf("%d workloads clean", total)
}

func checkHadolint(ctx context.Context, env *Env, t Target) (Status, string) {
	files, err := dockerfiles(ctx, t)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no Dockerfiles"
	}
	if len(files) > maxToolFiles {
		files = files[:maxToolFiles]
	}
	out, ok, err := runTool(ctx, env, "hadolint", files...)
	if !ok {
		return StatusNotApplicable, "hadolint not installed"
	}
	if err != nil {
		if out == "" {
			return StatusError, err.Error()
		}
		return StatusWarn, out
	}
	return StatusOK, "hadolint clean"
}
