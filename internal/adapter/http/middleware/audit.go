package middleware

import (
	"net/http"

	"chainpay-reconciler/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuditLog writes an audit line for every successful state-changing call.
// Routes are matched on their registered pattern.
func AuditLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		action, resource := mapRouteToAction(c.Request.Method, c.FullPath())
		if action == "" {
			return
		}

		owner, _ := Owner(c)
		log.Info().
			Str("audit_action", action).
			Str("resource", resource).
			Str("owner", owner).
			Str("request_id", c.GetString(response.RequestIDKey)).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Msg("audit")
	}
}

func mapRouteToAction(method, route string) (action string, resource string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/transfers":
		return "transfer.submit", "transaction"
	case "/api/v1/transactions/reconcile":
		return "transactions.reconcile", "transaction"
	}
	return "", ""
}
