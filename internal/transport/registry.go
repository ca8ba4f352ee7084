package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Closer is a socket the registry can tear down.
type Closer interface {
	FlagManualClose()
	Close() error
}

// Registry tracks live sockets by key so they can all be closed at once, for
// example on logout. Entries are independent; the last Register for a key wins.
type Registry struct {
	mu      sync.Mutex
	sockets map[string]Closer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sockets: make(map[string]Closer)}
}

// ConversationKey is the registry key for a conversation socket.
func ConversationKey(conversationID string) string {
	return "conversation:" + conversationID
}

// Register stores c under key, replacing any previous entry.
func (r *Registry) Register(key string, c Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[key] = c
}

// Unregister removes key only if it still maps to c, so a late unmount does
// not drop a newer socket registered under the same key.
func (r *Registry) Unregister(key string, c Closer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sockets[key]; ok && cur == c {
		delete(r.sockets, key)
		return true
	}
	return false
}

// Get returns the socket registered under key.
func (r *Registry) Get(key string) (Closer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sockets[key]
	return c, ok
}

// CloseAll flags and closes every registered socket and empties the registry.
// It returns how many sockets were closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	all := r.sockets
	r.sockets = make(map[string]Closer)
	r.mu.Unlock()

	for _, c := range all {
		c.FlagManualClose()
		_ = c.Close()
	}
	return len(all)
}

// Len returns the number of registered sockets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sockets)
}

// BuildURL derives the conversation socket URL from the http(s) server URL.
func BuildURL(serverURL, conversationID, token string) (string, error) {
	if conversationID == "" {
		return "", errors.New("conversation id is required")
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", serverURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/chat/" + conversationID
	u.RawPath = ""
	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
