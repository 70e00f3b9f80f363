package middleware

import (
	"net/http"

	"note-issuance-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// auditActions maps route templates of state-changing endpoints to the
// action name written to the audit log.
var auditActions = map[string]string{
	"POST /api/v1/notes/:token_id/redeem":      "note.redeem",
	"POST /api/v1/rewards/grant":               "reward.grant",
	"POST /api/v1/rewards/grant/batch":         "reward.grant_batch",
	"POST /api/v1/rewards/redeem":              "note.redeem_for",
	"PUT /api/v1/admin/series/:series_id":      "config.series",
	"PUT /api/v1/admin/denominations/:id":      "config.denomination",
	"PUT /api/v1/admin/rarity":                 "config.rarity_set",
	"PUT /api/v1/admin/rarity/:level":          "config.rarity_tier",
	"PUT /api/v1/admin/reward-tiers":           "config.reward_tiers",
	"PUT /api/v1/admin/reward-tiers/:id":       "config.reward_tier",
	"PUT /api/v1/admin/reward-supply/:id":      "config.reward_limit",
	"PUT /api/v1/admin/reward-settings":        "config.reward_settings",
	"PUT /api/v1/admin/serials":                "config.serial_reset",
	"PUT /api/v1/admin/notes/:token_id/rarity": "config.note_correct",
	"POST /api/v1/admin/issue":                 "note.issue",
	"POST /api/v1/admin/issue/batch":           "note.issue_batch",
	"POST /api/v1/admin/settlements/:id/retry": "settlement.retry",
	"POST /api/v1/admin/reserve/deposit":       "reserve.deposit",
	"POST /api/v1/admin/holder-tokens":         "holder.token",
}

// AuditLog writes one structured audit record per successful
// state-changing request, after the handler has run.
func AuditLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		action, ok := auditActions[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		account, _ := Account(c)
		log.Info().
			Str("audit_action", action).
			Str("account", account).
			Str("role", roleOf(c)).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Msg("audit")
	}
}

func roleOf(c *gin.Context) string {
	if v, ok := c.Get(CtxRole); ok {
		if role, ok := v.(ports.CredentialRole); ok {
			return string(role)
		}
	}
	return "holder"
}
