package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// Endpoint describes how adapters reach one platform's API.
type Endpoint struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Catalog maps every platform type to its endpoint.
type Catalog map[model.PlatformType]Endpoint

type catalogFile struct {
	Platforms map[string]Endpoint `yaml:"platforms"`
}

// DefaultCatalog returns the built-in endpoints.
func DefaultCatalog() Catalog {
	return Catalog{
		model.PlatformOnlyFans: {BaseURL: "https://onlyfans.com/api2/v2/"},
		model.PlatformFansly:   {BaseURL: "https://apiv3.fansly.com/api/v1/"},
		model.PlatformPatreon:  {BaseURL: "https://www.patreon.com/api/oauth2/v2/"},
		model.PlatformGitHub:   {BaseURL: "https://api.github.com/"},
	}
}

// LoadCatalog reads a YAML platform catalog and overlays it on the defaults.
// An empty path returns the defaults. Unknown platform names are rejected.
//
//	platforms:
//	  onlyfans:
//	    base_url: https://onlyfans.example/api/
//	    timeout: 20s
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse platform catalog %s: %w", path, err)
	}

	for name, ep := range file.Platforms {
		pt := model.PlatformType(name)
		if !pt.Valid() {
			return nil, fmt.Errorf("platform catalog %s: unknown platform %q", path, name)
		}
		merged := catalog[pt]
		if ep.BaseURL != "" {
			merged.BaseURL = ep.BaseURL
		}
		if ep.UserAgent != "" {
			merged.UserAgent = ep.UserAgent
		}
		if ep.Timeout > 0 {
			merged.Timeout = ep.Timeout
		}
		catalog[pt] = merged
	}

	return catalog, nil
}
