package auth

// Notifier receives progress from the login machinery. tui.Displayer
// implementations satisfy it.
type Notifier interface {
	TokenValid()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	AuthorizationStarted(authURL, instructions string)
	AuthSuccess()
	TokenSaved(key string)
	TokenSaveFailed(err error)
}

type nopNotifier struct{}

func (nopNotifier) TokenValid()                      {}
func (nopNotifier) Refreshing()                      {}
func (nopNotifier) RefreshOK()                       {}
func (nopNotifier) RefreshFailed(_ error)            {}
func (nopNotifier) AuthorizationStarted(_, _ string) {}
func (nopNotifier) AuthSuccess()                     {}
func (nopNotifier) TokenSaved(_ string)              {}
func (nopNotifier) TokenSaveFailed(_ error)          {}
