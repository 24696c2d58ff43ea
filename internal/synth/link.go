package synth

import (
	"fmt"
	"net/url"

	"github.com/SentimentalK/Avalon-Tunnel/model"
)

// ClientLink renders the one-click import link for a user. Returns "" for a
// user that has no secret path and therefore no routable listener.
func ClientLink(user *model.User, domain string) string {
	if user.SecretPath == "" {
		return ""
	}
	query := url.Values{}
	query.Set("type", "ws")
	query.Set("security", "tls")
	query.Set("path", "/"+user.SecretPath)
	query.Set("host", domain)
	query.Set("sni", domain)
	return fmt.Sprintf("vless://%s@%s:443?%s#%s", user.UUID, domain, query.Encode(), url.QueryEscape(user.Email))
}
