package s3store

import (
	"testing"

	"github.com/kenneth/rbuvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.BackendConfig
		wantRegion   string
		wantEndpoint string
		wantPathStyle bool
	}{
		{
			name:       "aws default",
			cfg:        config.BackendConfig{Provider: "aws"},
			wantRegion: "us-east-1",
		},
		{
			name:         "minio default endpoint",
			cfg:          config.BackendConfig{Provider: "minio"},
			wantRegion:   "us-east-1",
			wantEndpoint: "http://localhost:9000",
			wantPathStyle: true,
		},
		{
			name:         "backblaze templated endpoint",
			cfg:          config.BackendConfig{Provider: "backblaze"},
			wantRegion:   "us-west-000",
			wantEndpoint: "https://s3.us-west-000.backblazeb2.com",
			wantPathStyle: true,
		},
		{
			name:         "explicit endpoint overrides preset",
			cfg:          config.BackendConfig{Provider: "minio", Endpoint: "http://minio.internal:9000"},
			wantRegion:   "us-east-1",
			wantEndpoint: "http://minio.internal:9000",
			wantPathStyle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveProvider(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRegion, got.Region)
			assert.Equal(t, tt.wantEndpoint, got.Endpoint)
			assert.Equal(t, tt.wantPathStyle, got.PathStyle)
		})
	}
}

func TestResolveProvider_Unknown(t *testing.T) {
	_, err := ResolveProvider(config.BackendConfig{Provider: "notareal-provider"})
	require.Error(t, err)
}
