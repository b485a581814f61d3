package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionToken returns a public session identifier of the form
// session_<unix>_<8 hex chars>.
func NewSessionToken() string {
	return newToken("session")
}

// NewMessageToken returns a public message identifier of the form
// msg_<unix>_<8 hex chars>.
func NewMessageToken() string {
	return newToken("msg")
}

func newToken(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().Unix(), suffix)
}
