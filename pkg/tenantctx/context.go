package tenantctx

import "context"

type keyType string

const (
	TenantIDKey keyType = "tenant_id"
	UserIDKey   keyType = "user_id"
	LivemodeKey keyType = "livemode"
)

// WithTenant stores the authenticated tenant scope in the context.
func WithTenant(ctx context.Context, tenantID, userID int64, livemode bool) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, LivemodeKey, livemode)
}

func TenantID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(TenantIDKey).(int64)
	return id, ok
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

func Livemode(ctx context.Context) bool {
	live, _ := ctx.Value(LivemodeKey).(bool)
	return live
}
