package middleware

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comnet/modserve/common/apiutil"
	"github.com/comnet/modserve/internal/signer"
)

// spyVerifier records the arguments the stage passes to the capability.
type spyVerifier struct {
	result bool
	calls  int
	pubKey []byte
	scheme signer.Scheme
	msg    []byte
	sig    []byte
}

func (s *spyVerifier) Verify(pubKey []byte, scheme signer.Scheme, msg, sig []byte) bool {
	s.calls++
	s.pubKey = pubKey
	s.scheme = scheme
	s.msg = msg
	s.sig = sig
	return s.result
}

func authedRouter(v signer.Verifier, staleness time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(SignatureAuth(zap.NewNop(), v, staleness))
	r.POST("/method/test", func(c *gin.Context) {
		body, ok := RawBody(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"err": "no raw body"})
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", body)
	})
	return r
}

func signedRequest(t *testing.T, body []byte) (*http.Request, *signer.Keypair) {
	t.Helper()
	kp, err := signer.GenerateKeypair(signer.SchemeEd25519)
	require.NoError(t, err)
	sig, err := kp.Sign(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/method/test", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig))
	req.Header.Set(HeaderKey, hex.EncodeToString(kp.Public))
	req.Header.Set(HeaderCrypto, strconv.Itoa(int(signer.SchemeEd25519)))
	return req, kp
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apiutil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Message
}

func TestSignatureAuthAcceptsValidSignature(t *testing.T) {
	body := []byte(`{"params": {"text": "hello"}}`)
	r := authedRouter(signer.NewSchemeVerifier(), 0)

	req, _ := signedRequest(t, body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// The captured buffer downstream must be the exact signed bytes.
	assert.Equal(t, body, w.Body.Bytes())
}

func TestSignatureAuthRejectsMutatedBody(t *testing.T) {
	body := []byte(`{"params": {"text": "hello"}}`)
	r := authedRouter(signer.NewSchemeVerifier(), 0)

	kp, err := signer.GenerateKeypair(signer.SchemeEd25519)
	require.NoError(t, err)
	sig, err := kp.Sign(body)
	require.NoError(t, err)

	mutated := bytes.Clone(body)
	mutated[10] ^= 0x01
	req := httptest.NewRequest(http.MethodPost, "/method/test", bytes.NewReader(mutated))
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig))
	req.Header.Set(HeaderKey, hex.EncodeToString(kp.Public))
	req.Header.Set(HeaderCrypto, strconv.Itoa(int(signer.SchemeEd25519)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	// Signature mismatch keeps its historical plain-string body.
	assert.JSONEq(t, `"Signatures doesn't match"`, w.Body.String())
}

func TestSignatureAuthMissingHeaders(t *testing.T) {
	body := []byte(`{}`)

	for _, missing := range []string{HeaderSignature, HeaderKey, HeaderCrypto} {
		spy := &spyVerifier{result: true}
		r := authedRouter(spy, 0)

		req, _ := signedRequest(t, body)
		req.Header.Del(missing)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "missing %s", missing)
		assert.Equal(t, fmt.Sprintf("Missing header: %s", missing), errorMessage(t, w))
		assert.Zero(t, spy.calls, "verifier must not run without %s", missing)
	}
}

func TestSignatureAuthRejectsNonHexKey(t *testing.T) {
	spy := &spyVerifier{result: true}
	r := authedRouter(spy, 0)

	req, _ := signedRequest(t, []byte(`{}`))
	req.Header.Set(HeaderKey, "zz11")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "X-Key should be a hex value", errorMessage(t, w))
	assert.Zero(t, spy.calls)
}

func TestSignatureAuthAccepts0xPrefixedHex(t *testing.T) {
	spy := &spyVerifier{result: true}
	r := authedRouter(spy, 0)

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/method/test", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, "0xDEADBEEF")
	req.Header.Set(HeaderKey, "0xAB12")
	req.Header.Set(HeaderCrypto, "2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, spy.calls)
	assert.Equal(t, []byte{0xAB, 0x12}, spy.pubKey)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, spy.sig)
	assert.Equal(t, signer.SchemeEcdsa, spy.scheme)
	assert.Equal(t, body, spy.msg)
}

func TestSignatureAuthRejectsNonIntegerScheme(t *testing.T) {
	spy := &spyVerifier{result: true}
	r := authedRouter(spy, 0)

	req, _ := signedRequest(t, []byte(`{}`))
	req.Header.Set(HeaderCrypto, "sr25519")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "X-Crypto should be an integer", errorMessage(t, w))
	assert.Zero(t, spy.calls)
}

func TestSignatureAuthStaleness(t *testing.T) {
	spy := &spyVerifier{result: true}
	r := authedRouter(spy, time.Minute)

	// A stale claim is rejected before verification.
	req, _ := signedRequest(t, []byte(`{}`))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Add(-2*time.Minute).Unix(), 10))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request is too stale", errorMessage(t, w))
	assert.Zero(t, spy.calls)

	// A fresh claim passes.
	req, _ = signedRequest(t, []byte(`{}`))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// No claim at all is accepted; the bound applies only when present.
	req, _ = signedRequest(t, []byte(`{}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
