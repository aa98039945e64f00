package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/dash/internal/domain"
)

const (
	// KeyPrefix namespaces every key written by the store.
	KeyPrefix = "dash:"

	keyUsersSeq       = KeyPrefix + "users:seq"
	keyWidgetsSeq     = KeyPrefix + "widgets:seq"
	keyAllCredentials = KeyPrefix + "creds:all"
)

// UserKey returns the key holding a user's JSON record.
func UserKey(id int64) string {
	return fmt.Sprintf("%suser:%d", KeyPrefix, id)
}

// UserEmailKey returns the key mapping a normalized email to a user id.
func UserEmailKey(email string) string {
	return KeyPrefix + "user:email:" + email
}

// CredentialKey returns the key holding one (user, service) credential.
func CredentialKey(userID int64, service domain.ServiceType) string {
	return fmt.Sprintf("%scred:%d:%s", KeyPrefix, userID, service)
}

// UserCredentialsKey returns the set of service types a user has connected.
func UserCredentialsKey(userID int64) string {
	return fmt.Sprintf("%screds:%d", KeyPrefix, userID)
}

// credentialMember is the member stored in the set of all credentials.
func credentialMember(userID int64, service domain.ServiceType) string {
	return fmt.Sprintf("%d:%s", userID, service)
}

// parseCredentialMember reverses credentialMember.
func parseCredentialMember(member string) (int64, domain.ServiceType, error) {
	uid, svc, ok := strings.Cut(member, ":")
	if !ok {
		return 0, "", fmt.Errorf("invalid credential member: %s", member)
	}
	id, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid credential member: %s", member)
	}
	return id, domain.ServiceType(svc), nil
}

// WidgetKey returns the key holding a widget's JSON record.
func WidgetKey(id int64) string {
	return fmt.Sprintf("%swidget:%d", KeyPrefix, id)
}

// UserWidgetsKey returns the set of widget ids owned by a user.
func UserWidgetsKey(userID int64) string {
	return fmt.Sprintf("%swidgets:%d", KeyPrefix, userID)
}

// SessionKey returns the key holding a session; it expires with the session.
func SessionKey(token string) string {
	return KeyPrefix + "session:" + token
}
