package platform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/platform"
	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// Every platform type must have an adapter, or startup fails.
func TestNewAdapters_CoversEveryPlatformType(t *testing.T) {
	adapters, err := platform.NewAdapters(config.DefaultCatalog())
	require.NoError(t, err)

	reg := application.NewRegistry()
	for _, a := range adapters {
		assert.True(t, reg.Register(a), a.Type())
	}
	assert.Empty(t, reg.Missing())
}

func TestNewAdapters_RequirementsMatchTable(t *testing.T) {
	adapters, err := platform.NewAdapters(config.DefaultCatalog())
	require.NoError(t, err)

	for _, a := range adapters {
		assert.Equal(t, model.RequiredCredentialFields(a.Type()), a.CredentialRequirements(), a.Type())
		assert.NotEmpty(t, a.SupportedTasks(), a.Type())
	}
}
