package s3store

import (
	"fmt"
	"strings"

	"github.com/kenneth/rbuvault/internal/config"
)

// providerPreset holds provider-specific defaults, adapted from the
// teacher's internal/s3/providers.go so the same container can restore
// against any S3-compatible object store the blob port is pointed at.
type providerPreset struct {
	defaultEndpoint  string
	defaultRegion    string
	endpointTemplate string
	pathStyle        bool
}

var knownProviders = map[string]providerPreset{
	"aws": {
		defaultEndpoint: "",
		defaultRegion:   "us-east-1",
		pathStyle:       false,
	},
	"minio": {
		defaultEndpoint: "http://localhost:9000",
		defaultRegion:   "us-east-1",
		pathStyle:       true,
	},
	"wasabi": {
		defaultEndpoint: "https://s3.wasabisys.com",
		defaultRegion:   "us-east-1",
		pathStyle:       false,
	},
	"backblaze": {
		defaultRegion:    "us-west-000",
		endpointTemplate: "https://s3.%s.backblazeb2.com",
		pathStyle:        true,
	},
	"digitalocean": {
		defaultRegion:    "nyc3",
		endpointTemplate: "https://%s.digitaloceanspaces.com",
		pathStyle:        false,
	},
	"cloudflare": {
		defaultRegion: "auto",
		pathStyle:     false,
	},
}

// resolved is what New needs to construct the underlying S3 client:
// region and endpoint, fully resolved against the provider preset, plus
// whether path-style addressing is required.
type resolved struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// ResolveProvider fills in endpoint and region defaults for cfg.Provider,
// falling back to an explicit cfg.Endpoint/cfg.Region when the caller
// supplied one. An empty or "aws" provider leaves Endpoint blank so the
// SDK's own AWS endpoint resolution takes over.
func ResolveProvider(cfg config.BackendConfig) (resolved, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = "aws"
	}

	preset, ok := knownProviders[provider]
	if !ok {
		return resolved{}, fmt.Errorf("s3store: unknown provider %q", cfg.Provider)
	}

	region := cfg.Region
	if region == "" {
		region = preset.defaultRegion
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if preset.endpointTemplate != "" && region != "" {
			endpoint = fmt.Sprintf(preset.endpointTemplate, region)
		} else {
			endpoint = preset.defaultEndpoint
		}
	}

	return resolved{Region: region, Endpoint: endpoint, PathStyle: preset.pathStyle}, nil
}
