package auth

// Principal is the caller identity attached to a request after verification.
// It lives for one request only.
type Principal struct {
	ID     string
	Email  string
	Role   string
	Admin  bool
	Claims map[string]interface{}
}

const roleAdmin = "admin"

// isAdmin reports whether the identity provider marks the caller as an
// administrator. app_metadata is authoritative; it can only be set server-side.
func isAdmin(topLevelRole string, appMetadata map[string]interface{}) bool {
	if r, ok := appMetadata["role"].(string); ok && r == roleAdmin {
		return true
	}
	return topLevelRole == roleAdmin
}

// effectiveRole prefers the app_metadata role over the token's generic role.
func effectiveRole(topLevelRole string, appMetadata map[string]interface{}) string {
	if r, ok := appMetadata["role"].(string); ok && r != "" {
		return r
	}
	return topLevelRole
}
