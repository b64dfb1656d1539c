package enums

// SessionEvent names a transition published to session-change subscribers.
type SessionEvent string

const (
	SessionEventSignedIn  SessionEvent = "SIGNED_IN"
	SessionEventSignedOut SessionEvent = "SIGNED_OUT"
	SessionEventRefreshed SessionEvent = "TOKEN_REFRESHED"
)

// String implements fmt.Stringer.
func (e SessionEvent) String() string {
	return string(e)
}
