// Package sigv4 implements AWS Signature Version 4 request signing from
// scratch (no aws-sdk-go-v2), as mandated by spec.md §4.2: the Bedrock
// provider must produce its own Authorization header rather than delegate
// to the AWS SDK's Bedrock runtime client. crypto/hmac and crypto/sha256
// are the standard library's primitives for exactly this primitive, and
// there is no third-party replacement in the retrieval pack that doesn't
// reintroduce the SDK dependency this component exists to avoid.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	amzDateLayout = "20060102T150405Z"
	algorithm     = "AWS4-HMAC-SHA256"
	terminator    = "aws4_request"
)

// Credentials is the minimal set sigv4 needs to sign a request. It is
// distinct from awsauth.Credentials so this package has no dependency on
// how credentials were resolved.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string // optional
}

// SignedRequest holds the headers sigv4 computed, ready to be merged into
// an outgoing http.Request.
type SignedRequest struct {
	AmzDate       string
	ContentType   string
	Authorization string
	SecurityToken string // empty when Credentials.SessionToken is empty
}

// Sign produces the SigV4 headers for a POST of body to rawURL, per
// spec.md §4.2 steps 1-9. now is injected (rather than time.Now()) so
// callers get deterministic signatures for testing (property P3).
func Sign(method, rawURL string, body []byte, creds Credentials, region, service string, now time.Time) (SignedRequest, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SignedRequest{}, fmt.Errorf("sigv4: parse url: %w", err)
	}

	amzDate := now.UTC().Format(amzDateLayout)
	dateStamp := amzDate[:8]

	host := u.Host
	path := u.Path
	if path == "" {
		path = "/"
	}
	encodedPath := encodePath(path)

	payloadHash := hexSHA256(body)

	canonicalHeaders := fmt.Sprintf("host:%s\nx-amz-date:%s\n", host, amzDate)
	signedHeaders := "host;x-amz-date"

	canonicalRequest := strings.Join([]string{
		strings.ToUpper(method),
		encodedPath,
		"", // empty canonical query string line
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/%s", dateStamp, region, service, terminator)
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		credentialScope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveSigningKey(creds.SecretAccessKey, dateStamp, region, service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	authHeader := fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, creds.AccessKeyID, credentialScope, signedHeaders, signature,
	)

	return SignedRequest{
		AmzDate:       amzDate,
		ContentType:   "application/json",
		Authorization: authHeader,
		SecurityToken: creds.SessionToken,
	}, nil
}

// deriveSigningKey implements the HMAC-SHA256 chain of spec.md §4.2 step 7.
func deriveSigningKey(secret, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, terminator)
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// unreserved is the SigV4 URI-encoding unreserved character set:
// A-Z a-z 0-9 - _ . ~
func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	}
	return false
}

// encodePath percent-encodes a URI path keeping '/' literal, per spec.md
// §4.2 step 2.
func encodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = encodeSegment(seg)
	}
	return strings.Join(segments, "/")
}

func encodeSegment(seg string) string {
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
