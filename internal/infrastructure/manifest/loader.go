// Package manifest loads the versioned query vocabulary from disk. The
// manifest is produced offline; the service only ever reads it.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// Load reads a manifest in YAML or JSON form, chosen by file extension
// (.json means JSON, anything else is parsed as YAML).
func Load(path string) (domain.Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Manifest{}, domain.WrapError(domain.ErrConfig, "load manifest", err)
	}

	var m domain.Manifest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(raw, &m); err != nil {
			return domain.Manifest{}, domain.WrapError(domain.ErrConfig, "load manifest",
				fmt.Errorf("parse json: %w", err))
		}
	} else {
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return domain.Manifest{}, domain.WrapError(domain.ErrConfig, "load manifest",
				fmt.Errorf("parse yaml: %w", err))
		}
	}

	if len(m.AllowedTokens) == 0 {
		return domain.Manifest{}, domain.WrapError(domain.ErrConfig, "load manifest",
			fmt.Errorf("%s: no allowed tokens", path))
	}
	return m, nil
}
