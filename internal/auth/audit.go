package auth

import (
	"context"

	"github.com/sweetcrumb/storefront/pkg/logger"
)

// AuditLog returns a SessionChange subscriber that writes one audit line per
// change. Subscribe it with OnSessionChange.
func AuditLog(logg *logger.Logger) func(SessionChange) {
	return func(change SessionChange) {
		ctx := logg.WithUserID(context.Background(), change.UserID.String())
		ctx = logg.WithSessionID(ctx, change.SessionID)
		logg.Info(logg.WithField(ctx, "event", string(change.Event)), "auth.session.audit")
	}
}
