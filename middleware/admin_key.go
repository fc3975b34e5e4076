package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/utils"
)

// AdminKeyRequired guards operator endpoints with a static API key checked
// against the bcrypt hash in configuration. When no hash is configured the
// endpoints are disabled entirely rather than left open.
func AdminKeyRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		hash := config.Get().AdminAPIKeyHash
		if hash == "" {
			utils.Error(ctx, http.StatusNotFound, 40401, "not found")
			ctx.Abort()
			return
		}

		key := strings.TrimSpace(ctx.GetHeader("X-API-Key"))
		if key == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "api key missing")
			ctx.Abort()
			return
		}

		if !utils.CheckAPIKey(hash, key) {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid api key")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
