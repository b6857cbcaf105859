package config

import (
	"os"
	"sort"
	"strings"
)

// EnvironmentDetector finds CloudStack regions configured through the
// per-environment ACS_<ENV>_API_URL variables
type EnvironmentDetector struct {
	environ func() []string
}

// NewEnvironmentDetector creates a detector reading the process environment
func NewEnvironmentDetector() *EnvironmentDetector {
	return &EnvironmentDetector{environ: os.Environ}
}

// Detect returns the lower-cased environment names that have an API url set
func (d *EnvironmentDetector) Detect() []string {
	seen := make(map[string]bool)
	for _, kv := range d.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if !strings.HasPrefix(name, "ACS_") || !strings.HasSuffix(name, "_API_URL") {
			continue
		}
		env := strings.TrimSuffix(strings.TrimPrefix(name, "ACS_"), "_API_URL")
		// ACS_CLOUDSTACK_API_URL is the prefixed form of cloudstack.api_url
		if env == "" || env == "CLOUDSTACK" {
			continue
		}
		seen[strings.ToLower(env)] = true
	}

	envs := make([]string, 0, len(seen))
	for env := range seen {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs
}

// Single returns the only detected environment, or "" when zero or several
// are configured
func (d *EnvironmentDetector) Single() string {
	envs := d.Detect()
	if len(envs) != 1 {
		return ""
	}
	return envs[0]
}
