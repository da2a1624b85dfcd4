package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"hekumbi_chat/internal/entities"
)

// clientIdleTTL is how long a client IP may stay silent before its limiter is dropped.
const clientIdleTTL = 10 * time.Minute

type Middleware struct {
	jwtSecret    []byte
	origins      []string
	log          logrus.FieldLogger
	rateLimiters map[string]*clientLimiter
	lastSweep    time.Time
	now          func() time.Time
	mu           sync.Mutex
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMiddleware(secret string, origins []string, log logrus.FieldLogger) *Middleware {
	return &Middleware{
		jwtSecret:    []byte(secret),
		origins:      origins,
		log:          log,
		rateLimiters: make(map[string]*clientLimiter),
		lastSweep:    time.Now(),
		now:          time.Now,
	}
}

// bearerToken reads the Authorization header, or the token query parameter
// for websocket upgrades, which browsers cannot send headers with.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			c.Set("user", claims["user"])
			c.Set("role", claims["role"])
		}
		c.Next()
	}
}

func (m *Middleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get("role"); role != entities.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// RateLimitPerClient limits requests per client IP. Limiters of clients idle
// for longer than clientIdleTTL are swept on a later request.
func (m *Middleware) RateLimitPerClient(r rate.Limit, b int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		now := m.now()

		m.mu.Lock()
		if now.Sub(m.lastSweep) >= clientIdleTTL {
			m.sweepLocked(now)
		}
		cl, exists := m.rateLimiters[key]
		if !exists {
			cl = &clientLimiter{limiter: rate.NewLimiter(r, b)}
			m.rateLimiters[key] = cl
		}
		cl.lastSeen = now
		limiter := cl.limiter
		m.mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (m *Middleware) sweepLocked(now time.Time) {
	for key, cl := range m.rateLimiters {
		if now.Sub(cl.lastSeen) > clientIdleTTL {
			delete(m.rateLimiters, key)
		}
	}
	m.lastSweep = now
}

func (m *Middleware) trackedClients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rateLimiters)
}

// CORSMiddleware allows the configured origins; "*" allows any.
func (m *Middleware) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := m.allowOrigin(c.GetHeader("Origin")); origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	for _, o := range m.origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// RequestLogger replaces gin's default logger.
func (m *Middleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := m.log.WithFields(logrus.Fields{
			"status":    c.Writer.Status(),
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	}
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// RequestSizeLimiter limits request body size to prevent DoS
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
