package middleware

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comnet/modserve/common/apiutil"
	"github.com/comnet/modserve/internal/signer"
	"github.com/comnet/modserve/pkg/metrics"
)

// Signing headers required on every RPC request. Matching is
// case-insensitive; the lowercase form appears in error messages.
const (
	HeaderSignature = "x-signature"
	HeaderKey       = "x-key"
	HeaderCrypto    = "x-crypto"
	HeaderTimestamp = "x-timestamp"
)

// rawBodyKey is the gin context key holding the captured request body.
const rawBodyKey = "raw_body"

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// RawBody returns the request body captured by SignatureAuth. The buffer is
// the exact bytes the signature was verified over; dispatch must decode from
// it rather than re-reading the request.
func RawBody(c *gin.Context) ([]byte, bool) {
	v, ok := c.Get(rawBodyKey)
	if !ok {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}

// SignatureAuth authenticates that the raw request body was signed by the
// holder of the key named in the x-key header, under the scheme selected by
// x-crypto. The signature covers the exact bytes on the wire, so any
// mutation of the body invalidates it. maxStaleness, when positive, bounds
// the age of an optional x-timestamp claim.
func SignatureAuth(logger *zap.Logger, verifier signer.Verifier, maxStaleness time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			apiutil.WriteError(c, http.StatusBadRequest, "could not read request body")
			return
		}
		// Keep the body readable downstream and thread the captured
		// buffer through the context for dispatch.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(rawBodyKey, body)

		headers := make(map[string]string, 3)
		for _, name := range []string{HeaderSignature, HeaderKey, HeaderCrypto} {
			value := c.GetHeader(name)
			if value == "" {
				metrics.RequestsUnauthenticated.WithLabelValues("missing_header").Inc()
				apiutil.WriteError(c, http.StatusBadRequest, fmt.Sprintf("Missing header: %s", name))
				return
			}
			headers[name] = value
		}

		keyHex := strip0x(headers[HeaderKey])
		if !hexPattern.MatchString(keyHex) {
			metrics.RequestsUnauthenticated.WithLabelValues("malformed_header").Inc()
			apiutil.WriteError(c, http.StatusBadRequest, "X-Key should be a hex value")
			return
		}
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			metrics.RequestsUnauthenticated.WithLabelValues("malformed_header").Inc()
			apiutil.WriteError(c, http.StatusBadRequest, "X-Key should be a hex value")
			return
		}

		sig, err := hex.DecodeString(strip0x(headers[HeaderSignature]))
		if err != nil {
			metrics.RequestsUnauthenticated.WithLabelValues("malformed_header").Inc()
			apiutil.WriteError(c, http.StatusBadRequest, "X-Signature should be a hex value")
			return
		}

		scheme, err := strconv.Atoi(headers[HeaderCrypto])
		if err != nil {
			metrics.RequestsUnauthenticated.WithLabelValues("malformed_header").Inc()
			apiutil.WriteError(c, http.StatusBadRequest, "X-Crypto should be an integer")
			return
		}

		if maxStaleness > 0 {
			if ts := c.GetHeader(HeaderTimestamp); ts != "" {
				unix, err := strconv.ParseInt(ts, 10, 64)
				if err != nil {
					apiutil.WriteError(c, http.StatusBadRequest, "X-Timestamp should be a unix timestamp")
					return
				}
				if age := time.Since(time.Unix(unix, 0)); age > maxStaleness {
					metrics.RequestsUnauthenticated.WithLabelValues("stale").Inc()
					apiutil.WriteError(c, http.StatusBadRequest, "request is too stale")
					return
				}
			}
		}

		start := time.Now()
		verified := verifier.Verify(key, signer.Scheme(scheme), body, sig)
		metrics.SignatureVerifyDuration.Observe(time.Since(start).Seconds())
		if !verified {
			metrics.RequestsUnauthenticated.WithLabelValues("signature_mismatch").Inc()
			logger.Debug("signature verification failed",
				zap.String("client_ip", c.ClientIP()),
				zap.Int("scheme", scheme))
			// Plain string body, wire-compatible with existing clients.
			c.AbortWithStatusJSON(http.StatusUnauthorized, "Signatures doesn't match")
			return
		}

		c.Next()
	}
}

func strip0x(s string) string {
	return strings.TrimPrefix(s, "0x")
}
