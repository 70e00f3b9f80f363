package middleware

import (
	"bytes"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"
	"note-issuance-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for HMAC authentication
	HeaderAccessKey = "X-Access-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderRequestID = "X-Request-ID"

	maxTimestampDrift = 60 * time.Second
	nonceTTL          = 120 * time.Second

	// Context keys
	CtxAccount   = "account"
	CtxAccessKey = "access_key"
	CtxRole      = "role"
	CtxRequestID = "request_id"
)

// now is the clock used for timestamp drift checks.
var now = time.Now

// Account returns the authenticated identity set by HMACAuth or JWTAuth.
func Account(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxAccount)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// HMACAuth verifies HMAC-SHA256 signed requests from operators and
// granters. Only credentials whose role is in roles may pass.
// Pipeline: timestamp -> credential -> role -> signature -> nonce.
func HMACAuth(
	creds ports.CredentialStore,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	log zerolog.Logger,
	roles ...ports.CredentialRole,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessKey := c.GetHeader(HeaderAccessKey)
		signature := c.GetHeader(HeaderSignature)
		timestampStr := c.GetHeader(HeaderTimestamp)
		nonce := c.GetHeader(HeaderNonce)

		if accessKey == "" || signature == "" || timestampStr == "" || nonce == "" {
			abort(c, apperror.ErrInvalidAccessKey())
			return
		}

		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			abort(c, apperror.ErrTimestampExpired())
			return
		}
		drift := now().Sub(time.Unix(timestamp, 0))
		if drift > maxTimestampDrift || drift < -maxTimestampDrift {
			abort(c, apperror.ErrTimestampExpired())
			return
		}

		cred, err := creds.Lookup(c.Request.Context(), accessKey)
		if err != nil {
			log.Error().Err(err).Msg("failed to look up credential")
			abort(c, apperror.InternalError(err))
			return
		}
		if cred == nil {
			abort(c, apperror.ErrInvalidAccessKey())
			return
		}
		if !slices.Contains(roles, cred.Role) {
			abort(c, apperror.ErrForbiddenRole())
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abort(c, apperror.Validation("cannot read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.BuildCanonicalString(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			nonce,
			string(bodyBytes),
		)
		if !sigSvc.Verify(cred.Secret, canonical, signature) {
			abort(c, apperror.ErrInvalidSignature())
			return
		}

		isNew, err := nonceStore.CheckAndSet(c.Request.Context(), cred.AccessKey, nonce, nonceTTL)
		if err != nil {
			log.Warn().Err(err).Msg("nonce store error, allowing request")
		} else if !isNew {
			abort(c, apperror.ErrNonceUsed())
			return
		}

		c.Set(CtxAccount, cred.Account)
		c.Set(CtxAccessKey, cred.AccessKey)
		c.Set(CtxRole, cred.Role)
		c.Next()
	}
}

// JWTAuth validates holder bearer tokens.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenStr == "" {
			abort(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("rejected holder token")
			abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxAccount, claims.Account)
		c.Next()
	}
}

// RequestID propagates X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"kind":       string(apperror.KindInternal),
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
