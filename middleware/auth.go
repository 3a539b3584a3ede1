// middleware/auth.go
package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/logger"
)

// IPAllowlist 来源IP白名单中间件。列表项可以是单个IP或CIDR，
// enabled为false时直接放行。
func IPAllowlist(enabled bool, allowlist []string) gin.HandlerFunc {
	var ips []net.IP
	var nets []*net.IPNet
	for _, entry := range allowlist {
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipnet)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			ips = append(ips, ip)
			continue
		}
		logger.Warn("白名单条目无法解析，已忽略: %q", entry)
	}

	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		client := net.ParseIP(c.ClientIP())
		if client != nil {
			if client.IsLoopback() {
				c.Next()
				return
			}
			for _, ip := range ips {
				if ip.Equal(client) {
					c.Next()
					return
				}
			}
			for _, ipnet := range nets {
				if ipnet.Contains(client) {
					c.Next()
					return
				}
			}
		}

		logger.Warn("拒绝来自 %s 的请求: 不在白名单内", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code": 403,
			"msg":  "来源IP不在白名单内",
		})
	}
}
