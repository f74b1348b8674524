package reset

// ResetLinkPath is the path clients parse the token and id from.
const ResetLinkPath = "/api/password-reset-link"

// BuildResetLink interpolates its arguments verbatim. Host and protocol must be
// validated by the caller; the format must stay bit-exact.
func BuildResetLink(protocol, host, token, accountID string) string {
	return protocol + "://" + host + ResetLinkPath + "?token=" + token + "&id=" + accountID
}
