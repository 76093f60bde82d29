package config

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/goccy/go-json"
)

var paramRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Unmarshal parses a JSON config document. ${NAME} references inside string
// values are resolved from params before decoding. Fields the document leaves
// out keep their defaults, and the result is validated.
func Unmarshal(data []byte, params *Params) (*Config, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid config document format: %v", err)
	}

	resolved, err := resolveNode(doc, params)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve variables: %w", err)
	}
	data, err = json.Marshal(resolved)
	if err != nil {
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid config document format: %v", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	slog.Info("resolved config",
		"addr", config.Addr,
		"table", config.Table,
		"readerCount", config.ReaderCount,
		"checkpointLocation", config.CheckpointLocation)
	return &config, nil
}

// resolveNode traverses the JSON structure, replacing parameter references
func resolveNode(node any, params *Params) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, child := range v {
			processed, err := resolveNode(child, params)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			result[k] = processed
		}
		return result, nil
	case []any:
		result := make([]any, len(v))
		for i, child := range v {
			processed, err := resolveNode(child, params)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			result[i] = processed
		}
		return result, nil
	case string:
		var missing error
		resolved := paramRef.ReplaceAllStringFunc(v, func(ref string) string {
			name := paramRef.FindStringSubmatch(ref)[1]
			value, ok := params.Get(name)
			if !ok && missing == nil {
				missing = fmt.Errorf("missing parameter %q", name)
			}
			return value
		})
		return resolved, missing
	default:
		return v, nil
	}
}
