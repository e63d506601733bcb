package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("reqhub.config.loader")

// Prefix is the prefix of environment variables read by EnvLoader.
const Prefix = "REQHUB_"

// EnvLoader loads configuration from environment variables.
//
// REQHUB_SHELL_GRACE_PERIOD sets shell.gracePeriod: the first word names the
// section and the rest form a camelCase key. Explicit mappings take
// precedence over the conversion.
type EnvLoader struct {
	prefix   string
	mapping  map[string]string
	sections map[string]bool
	environ  func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix, which
// should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		environ: os.Environ,
	}
}

// NewEnvLoaderFrom creates a loader reading a fixed environment in
// KEY=value form.
func NewEnvLoaderFrom(prefix string, environ []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return environ }
	return l
}

func defaultEnvMapping() map[string]string {
	return map[string]string{
		"REQHUB_LOG":        "log.level",
		"REQHUB_ADDR":       "server.addr",
		"REQHUB_SHELL":      "shell.url",
		"REQHUB_SCRIPT_DIR": "scripts.dir",
	}
}

// AddMapping maps an environment variable to a config path.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// RestrictSections skips unmapped variables whose first word names none of
// sections. Without a restriction every prefixed variable is loaded.
func (l *EnvLoader) RestrictSections(sections ...string) {
	l.sections = make(map[string]bool, len(sections))
	for _, s := range sections {
		l.sections[strings.ToLower(s)] = true
	}
}

// Load returns the values of all prefixed variables. Empty values count as
// set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		if !mapped && l.sections != nil {
			section, _, _ := strings.Cut(path, ".")
			if !l.sections[section] {
				logger.Warningf("ignoring %s: no config section %q", name, section)
				continue
			}
		}
		SetByPath(config, path, parseValue(value))
	}
	return config, nil
}

// envToPath converts REQHUB_SHELL_GRACE_PERIOD to shell.gracePeriod.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)
	parts := strings.Split(name, "_")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}

	section := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return section
	}

	key := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			key += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return section + "." + key
}

// parseValue guesses the type of an environment value. Durations stay
// strings and are parsed by the typed config.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
