package mqtt

import "strings"

// Availability payloads
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds the topic tree under a prefix:
//
//	<prefix>/status        availability (retained, LWT)
//	<prefix>/state/<key>   current display value (retained)
//	<prefix>/set/<key>     commands
type Topics struct {
	Prefix string
}

// Availability returns the availability topic.
func (t Topics) Availability() string {
	return t.Prefix + "/status"
}

// State returns the state topic of key.
func (t Topics) State(key string) string {
	return t.Prefix + "/state/" + key
}

// Set returns the command topic of key.
func (t Topics) Set(key string) string {
	return t.Prefix + "/set/" + key
}

// SetWildcard returns the subscription filter for all command topics.
func (t Topics) SetWildcard() string {
	return t.Set("+")
}

// ParseSet extracts the key from a command topic.
func (t Topics) ParseSet(topic string) (string, bool) {
	key, ok := strings.CutPrefix(topic, t.Prefix+"/set/")
	if !ok || key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return strings.ToLower(key), true
}
