package distribution

// CommonParams are shared by every request.
type CommonParams struct {
	// APIKey identifies the organization to the backend.
	APIKey string
	// Login is the policy requested for this call. The client may apply a
	// stricter one after the backend has demanded a login.
	Login LoginPolicy
	// Connection names an SSO connection at the identity provider. Empty shows
	// the provider's default login page.
	Connection string
}

// CheckForUpdateParams configures Client.CheckForUpdate.
type CheckForUpdateParams struct {
	CommonParams

	// Tag selects a release channel when one binary was uploaded under several tags.
	Tag string

	BinaryIdentifierOverride string
	AppIDOverride            string
}

// GetReleaseParams configures Client.GetRelease.
type GetReleaseParams struct {
	CommonParams

	ReleaseID string
}

// ListReleasesParams configures Client.ListReleases.
type ListReleasesParams struct {
	CommonParams

	// Page starts at 1. Zero or negative values request the first page.
	Page int

	BinaryIdentifierOverride string
	AppIDOverride            string
}
