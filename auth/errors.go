package auth

import "errors"

var (
	ErrInvalidClient = errors.New("invalid client credentials")
	ErrMissingScope  = errors.New("missing required permission scope")
	ErrInvalidCode   = errors.New("invalid authorization code")
	ErrRefresh       = errors.New("token refresh failed")
	ErrTokenExpired  = errors.New("access token expired")
	ErrTokenInvalid  = errors.New("access token invalid")
)

// Error is an authentication failure paired with what the user should do
// about it.
type Error struct {
	Err     error
	Message string
	Action  string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var actions = map[error]struct{ message, action string }{
	ErrInvalidClient: {"Invalid client ID or secret.", "Check the Client ID and Secret of your TikTok app."},
	ErrMissingScope:  {"Missing Ads permission scope.", "Make sure your TikTok app has the ads.manage scope enabled."},
	ErrInvalidCode:   {"Invalid authorization code.", "Restart the authorization flow and paste the new code."},
	ErrRefresh:       {"The access token could not be refreshed.", "Please re-authenticate your account."},
	ErrTokenExpired:  {"Token expired or revoked.", "Refresh the token or re-authenticate."},
	ErrTokenInvalid:  {"The access token is not valid.", "Please re-authenticate your account."},
}

func newError(sentinel error) *Error {
	a := actions[sentinel]
	return &Error{Err: sentinel, Message: a.message, Action: a.action}
}

// ActionFor returns the remediation text for err, or a generic hint when err
// is not an auth failure.
func ActionFor(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Action != "" {
		return ae.Action
	}
	return "Please try re-authenticating."
}
