package model

import "time"

// PlatformType identifies a third-party creator platform. Each type is served
// by exactly one registered adapter.
type PlatformType string

const (
	PlatformOnlyFans PlatformType = "onlyfans"
	PlatformFansly   PlatformType = "fansly"
	PlatformPatreon  PlatformType = "patreon"
	PlatformGitHub   PlatformType = "github"
)

// PlatformTypes returns every known platform type. The registry uses it to
// verify that no platform type is left without an adapter.
func PlatformTypes() []PlatformType {
	return []PlatformType{PlatformOnlyFans, PlatformFansly, PlatformPatreon, PlatformGitHub}
}

// PlatformKind groups platform types that share an adapter variant.
type PlatformKind string

const (
	KindDirectMessage PlatformKind = "dm"
	KindPosting       PlatformKind = "posting"
	KindMetrics       PlatformKind = "metrics"
)

// Kind returns the adapter variant for the platform type. The switch is
// exhaustive: an unknown type yields an empty kind.
func (t PlatformType) Kind() PlatformKind {
	switch t {
	case PlatformOnlyFans, PlatformFansly:
		return KindDirectMessage
	case PlatformPatreon:
		return KindPosting
	case PlatformGitHub:
		return KindMetrics
	default:
		return ""
	}
}

// Valid reports whether t is one of the known platform types.
func (t PlatformType) Valid() bool {
	return t.Kind() != ""
}

// Credential field names used by the requirement table.
const (
	FieldSessionID   = "session_id"
	FieldUserAgent   = "user_agent"
	FieldAccessToken = "access_token"
	FieldCampaignID  = "campaign_id"
	FieldAccountID   = "account_id"
)

// requiredCredentialFields is the table of credential fields an adapter needs
// before it may be initialized, keyed by variant kind.
var requiredCredentialFields = map[PlatformKind][]string{
	KindDirectMessage: {FieldSessionID, FieldUserAgent},
	KindPosting:       {FieldAccessToken, FieldCampaignID},
	KindMetrics:       {FieldAccessToken, FieldAccountID},
}

// RequiredCredentialFields returns a copy of the required field names for the
// given platform type, in a stable order.
func RequiredCredentialFields(t PlatformType) []string {
	fields := requiredCredentialFields[t.Kind()]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// Platform is a connected account on a third-party platform. Credentials are
// stored per platform, one record each.
type Platform struct {
	ID        string
	Type      PlatformType
	ClientID  string
	Name      string
	CreatedAt time.Time
}
