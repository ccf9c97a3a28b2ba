package apikey

// Scope is the tagged variant behind a key's authorization: either
// global or bound to exactly one app. The zero value is global.
type Scope struct {
	appID string
}

func Global() Scope { return Scope{} }

func ForApp(appID string) Scope { return Scope{appID: appID} }

func (s Scope) IsGlobal() bool { return s.appID == "" }

// AppID returns the bound app id; ok is false for global scope.
func (s Scope) AppID() (string, bool) { return s.appID, s.appID != "" }

// Authorizes reports whether the scope permits a call against
// targetAppID. An empty target means the caller is not checking scope.
func (s Scope) Authorizes(targetAppID string) bool {
	if s.IsGlobal() || targetAppID == "" {
		return true
	}
	return s.appID == targetAppID
}
