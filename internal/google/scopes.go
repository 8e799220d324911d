package google

// DefaultOAuthScopes are the Google OAuth scopes the assistant needs.
//
// The scopes provide access to:
//   - Gmail: read, modify (mark processed), send, and mailbox watch
//   - Google Calendar: free/busy queries and event creation
//   - User info: resolving the account's email address
var DefaultOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.send",

	"https://www.googleapis.com/auth/calendar",
}
