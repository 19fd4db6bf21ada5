package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateTemplateCache invalidates all template-related caches
func InvalidateTemplateCache(ctx context.Context, cm *CacheManager, templateID uint, creatorID string) {
	SafeDelete(ctx, cm.Template,
		fmt.Sprintf("id:%d", templateID),
		fmt.Sprintf("details:%d", templateID))

	SafeInvalidatePattern(ctx, cm.Template, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Template, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("template:%d:*", templateID))
}

// InvalidateSessionCache invalidates the caches holding one session, keyed both
// by id and by token. Must run on every state or answer mutation so takers never
// see a stale status after start/complete.
func InvalidateSessionCache(ctx context.Context, cm *CacheManager, sessionID uint, token string) {
	SafeDelete(ctx, cm.Session,
		fmt.Sprintf("id:%d", sessionID),
		fmt.Sprintf("token:%s", token))
	SafeDelete(ctx, cm.Fast, fmt.Sprintf("token:%s", token))
}
