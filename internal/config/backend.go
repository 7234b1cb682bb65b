package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigBackend abstracts where file-level config values come from. Keys are
// dotted paths such as "aws.s3_bucket".
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetStrings(key string) (val []string, ok bool, err error)
}

// yamlBackend serves values from a nested YAML document. String values have
// environment references expanded when read.
type yamlBackend struct {
	path string
	data map[string]any
}

func newYAMLBackend(path string) (*yamlBackend, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseYAMLBackend(path, raw)
}

func parseYAMLBackend(path string, raw []byte) (*yamlBackend, error) {
	b := &yamlBackend{path: path, data: make(map[string]any)}
	if err := yaml.Unmarshal(raw, &b.data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if b.data == nil {
		b.data = make(map[string]any)
	}
	return b, nil
}

func (b *yamlBackend) lookup(key string) (any, bool) {
	var cur any = b.data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return expandEnv(val), true, nil
	case map[string]any, []any:
		return "", true, fmt.Errorf("%s is not a scalar value", key)
	default:
		return fmt.Sprintf("%v", val), true, nil
	}
}

func (b *yamlBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, true, fmt.Errorf("value %v for %s is not a valid integer or is out of range", val, key)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(expandEnv(val)))
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type for %s", key)
	}
}

// GetStrings accepts either a YAML sequence or a comma-separated string.
func (b *yamlBackend) GetStrings(key string) ([]string, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return nil, false, nil
	}
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, true, fmt.Errorf("%s must be a list of strings", key)
			}
			if s = strings.TrimSpace(expandEnv(s)); s != "" {
				out = append(out, s)
			}
		}
		return out, true, nil
	case string:
		return splitList(expandEnv(val)), true, nil
	default:
		return nil, true, fmt.Errorf("invalid type for %s", key)
	}
}

type emptyBackend struct{}

func (emptyBackend) GetString(string) (string, bool, error)     { return "", false, nil }
func (emptyBackend) GetInt(string) (int, bool, error)           { return 0, false, nil }
func (emptyBackend) GetStrings(string) ([]string, bool, error) { return nil, false, nil }

// expandEnv substitutes $VAR and ${VAR} from the environment. References to
// unset variables are left as written.
func expandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "${" + name + "}"
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
