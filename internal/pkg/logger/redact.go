package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" becomes "jo***@example.com". Local parts of two
// characters or fewer are masked entirely. Values that are not addresses
// are masked wholesale rather than passed through.
func RedactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 || strings.IndexByte(email[at+1:], '@') >= 0 {
		return "***@***"
	}
	local, dom := email[:at], email[at+1:]
	if len(local) <= 2 {
		return "***@" + dom
	}
	return local[:2] + "***@" + dom
}
