package middleware

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/utils"
)

// CountryFilter blocks reward claims from countries the ad network does not
// pay out for. Deny wins over allow:
// - If DenyCountries contains the country: block
// - Else if AllowCountries is non-empty and does NOT contain it: block
// - Else allow
// Lookup failures allow the request through, geo data is advisory.
func CountryFilter() gin.HandlerFunc {
	cfg := config.Get()
	denySet := toSet(cfg.DenyCountries)
	allowSet := toSet(cfg.AllowCountries)
	haveAllow := len(allowSet) > 0

	if len(denySet) == 0 && !haveAllow {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ip := effectiveClientIP(c)
		// private IPs pass, they only show up in development
		if utils.IsPrivateIP(ip) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		country, err := utils.GetIPCountry(ctx, ip)
		if err != nil || country == "" {
			c.Next()
			return
		}
		country = utils.NormalizeCountryName(country)
		if _, bad := denySet[country]; bad {
			respondCountryBlocked(c, ip, country, 40320)
			return
		}
		if haveAllow {
			if _, ok := allowSet[country]; !ok {
				respondCountryBlocked(c, ip, country, 40321)
				return
			}
		}
		c.Next()
	}
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, v := range list {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		v = utils.NormalizeCountryName(v)
		m[v] = struct{}{}
	}
	return m
}

// effectiveClientIP extracts the real visitor IP considering common proxy headers.
// Priority: CF-Connecting-IP > X-Real-IP > first of X-Forwarded-For > gin.ClientIP
func effectiveClientIP(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); v != "" {
		v = stripPort(v)
		if isValidPublicIP(v) {
			return v
		}
	}
	if v := strings.TrimSpace(c.GetHeader("X-Real-IP")); v != "" {
		v = stripPort(v)
		if isValidPublicIP(v) {
			return v
		}
	}
	if v := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); v != "" {
		parts := strings.Split(v, ",")
		if len(parts) > 0 {
			cand := stripPort(strings.TrimSpace(parts[0]))
			if isValidPublicIP(cand) {
				return cand
			}
		}
	}
	ip := c.ClientIP()
	return stripPort(ip)
}

func stripPort(ip string) string {
	if h, _, err := net.SplitHostPort(ip); err == nil {
		return h
	}
	return ip
}

func isValidPublicIP(ip string) bool {
	p := net.ParseIP(ip)
	if p == nil {
		return false
	}
	if p.IsLoopback() || p.IsPrivate() {
		return false
	}
	return true
}

func respondCountryBlocked(c *gin.Context, ip string, country string, code int) {
	msg := fmt.Sprintf("claims from %s are not accepted", strings.TrimSpace(country))
	utils.Respond(c, 403, code, msg, gin.H{
		"detected_country": strings.TrimSpace(country),
		"ip":               strings.TrimSpace(ip),
	})
	c.Abort()
}
