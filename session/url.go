package session

import (
	"errors"
	"strings"
)

var ErrEmptyMap = errors.New("travel url has no map")

// TravelURL is a parsed "<map>[?option[?option...]]" string.
type TravelURL struct {
	Map     string
	Options map[string]string
}

// ParseTravelURL splits a travel string into its map and options. Options are
// "key" or "key=value"; the key is case-insensitive.
func ParseTravelURL(s string) (TravelURL, error) {
	parts := strings.Split(strings.TrimSpace(s), "?")
	u := TravelURL{Map: parts[0], Options: make(map[string]string)}
	if u.Map == "" {
		return TravelURL{}, ErrEmptyMap
	}
	for _, opt := range parts[1:] {
		if opt == "" {
			continue
		}
		k, v, _ := strings.Cut(opt, "=")
		u.Options[strings.ToLower(k)] = v
	}
	return u, nil
}

// Listen reports whether the url asks for a listen server.
func (u TravelURL) Listen() bool {
	_, ok := u.Options["listen"]
	return ok
}

func (u TravelURL) String() string {
	var b strings.Builder
	b.WriteString(u.Map)
	for k, v := range u.Options {
		b.WriteByte('?')
		b.WriteString(k)
		if v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}
