package application_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

func TestCredentialVault_StoreAndGet(t *testing.T) {
	s := newStores(t)
	v := newTestVault(t, s)
	ctx := context.Background()

	creds := map[string]string{"session_id": "sess-ü-123", "user_agent": "Mozilla/5.0"}
	require.NoError(t, v.Store(ctx, "of-1", creds))

	got, err := v.Get(ctx, "of-1")
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	// Only the envelope reaches the store.
	raw, err := s.credentials.Get(ctx, "of-1")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.True(t, strings.HasPrefix(raw.Payload, "v1:"))
	assert.NotContains(t, raw.Payload, "sess-")
}

func TestCredentialVault_GetAbsent(t *testing.T) {
	s := newStores(t)
	v := newTestVault(t, s)

	got, err := v.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentialVault_TamperedRecordReadsAsNil(t *testing.T) {
	s := newStores(t)
	v := newTestVault(t, s)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "of-1", validDMCredentials()))
	raw, err := s.credentials.Get(ctx, "of-1")
	require.NoError(t, err)

	// Flip the last hex digit of the ciphertext.
	payload := []byte(raw.Payload)
	last := len(payload) - 1
	if payload[last] == '0' {
		payload[last] = '1'
	} else {
		payload[last] = '0'
	}
	require.NoError(t, s.credentials.Upsert(ctx, "of-1", string(payload)))

	got, err := v.Get(ctx, "of-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.credentials.Upsert(ctx, "of-1", "not-an-envelope"))
	got, err = v.Get(ctx, "of-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentialVault_Delete(t *testing.T) {
	s := newStores(t)
	v := newTestVault(t, s)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "gh", map[string]string{"access_token": "t"}))
	require.NoError(t, v.Delete(ctx, "gh"))

	got, err := v.Get(ctx, "gh")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name        string
		platform    model.PlatformType
		data        map[string]string
		wantOK      bool
		wantMissing []string
	}{
		{"dm complete", model.PlatformOnlyFans, validDMCredentials(), true, nil},
		{"dm empty", model.PlatformFansly, nil, false, []string{"session_id", "user_agent"}},
		{"dm blank value", model.PlatformOnlyFans, map[string]string{"session_id": "", "user_agent": "ua"}, false, []string{"session_id"}},
		{"posting partial", model.PlatformPatreon, map[string]string{"access_token": "tok"}, false, []string{"campaign_id"}},
		{"metrics complete", model.PlatformGitHub, map[string]string{"access_token": "tok", "account_id": "octocat"}, true, nil},
		{"metrics empty", model.PlatformGitHub, map[string]string{}, false, []string{"access_token", "account_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, missing := application.ValidateFields(tt.platform, tt.data)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMissing, missing)
		})
	}
}
