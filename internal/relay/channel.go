package relay

import "strings"

// ChannelID names the conversation channel shared by two identities.
// The ids are ordered so both sides derive the same name.
func ChannelID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, "_")
}
