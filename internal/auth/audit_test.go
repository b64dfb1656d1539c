package auth

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetcrumb/storefront/pkg/enums"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

func TestAuditLogWritesOneLinePerChange(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json"})
	svc := &Service{changes: newNotifier()}
	unsubscribe := svc.OnSessionChange(AuditLog(logg))
	defer unsubscribe()

	userID := uuid.New()
	svc.changes.publish(SessionChange{Event: enums.SessionEventSignedIn, UserID: userID, SessionID: "sess-1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "auth.session.audit", line["message"])
	assert.Equal(t, string(enums.SessionEventSignedIn), line["event"])
	assert.Equal(t, "sess-1", line["session_id"])
	assert.Equal(t, userID.String(), line["user_id"])
}
