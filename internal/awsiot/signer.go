package awsiot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SigV4 constants for the AWS IoT device gateway.
const (
	// signingAlgorithm is the SigV4 algorithm identifier.
	signingAlgorithm = "AWS4-HMAC-SHA256"

	// signingService is the AWS service name for IoT websocket connections.
	signingService = "iotdevicegateway"

	// websocketPath is the MQTT-over-websocket endpoint path.
	websocketPath = "/mqtt"

	// amzDateFormat is the X-Amz-Date timestamp layout.
	amzDateFormat = "20060102T150405Z"

	// dateStampFormat is the credential-scope date layout.
	dateStampFormat = "20060102"
)

// SignerCredentials are the temporary AWS credentials used to presign
// the websocket URL.
type SignerCredentials struct {
	AccessKeyID  string
	SecretKey    string
	SessionToken string
}

// PresignWebsocketURL builds a SigV4-presigned wss:// URL for the AWS
// IoT device gateway.
//
// The signature covers the canonical GET request for /mqtt with the
// host header; the session token is appended AFTER signing as
// X-Amz-Security-Token, which is how the device gateway expects
// temporary credentials to be presented.
//
// Parameters:
//   - host: IoT endpoint hostname (no scheme, e.g. "abc-ats.iot.us-west-2.amazonaws.com")
//   - region: AWS region matching the endpoint
//   - creds: Temporary AWS credentials from the Cognito exchange
//   - now: Signing time (pass time.Now(); parameterised for tests)
//
// Returns:
//   - string: Complete wss:// URL ready for the websocket dial
func PresignWebsocketURL(host, region string, creds SignerCredentials, now time.Time) string {
	amzDate := now.UTC().Format(amzDateFormat)
	dateStamp := now.UTC().Format(dateStampFormat)

	scope := strings.Join([]string{dateStamp, region, signingService, "aws4_request"}, "/")

	// Canonical query string: parameters sorted by name, values
	// URI-encoded. These four names happen to sort in this order.
	query := strings.Join([]string{
		"X-Amz-Algorithm=" + signingAlgorithm,
		"X-Amz-Credential=" + uriEncode(creds.AccessKeyID+"/"+scope),
		"X-Amz-Date=" + amzDate,
		"X-Amz-SignedHeaders=host",
	}, "&")

	canonicalRequest := strings.Join([]string{
		"GET",
		websocketPath,
		query,
		"host:" + host,
		"",
		"host",
		emptyPayloadHash(),
	}, "\n")

	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveSigningKey(creds.SecretKey, dateStamp, region, signingService)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	signedQuery := query + "&X-Amz-Signature=" + signature
	if creds.SessionToken != "" {
		signedQuery += "&X-Amz-Security-Token=" + uriEncode(creds.SessionToken)
	}

	return fmt.Sprintf("wss://%s%s?%s", host, websocketPath, signedQuery)
}

// deriveSigningKey performs the SigV4 key derivation chain.
func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}

// hmacSHA256 computes HMAC-SHA256 of data with the given key.
func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

// hexSHA256 returns the lowercase hex SHA-256 digest of data.
func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// emptyPayloadHash returns the SHA-256 of the empty string, the payload
// hash for a bodyless GET.
func emptyPayloadHash() string {
	return hexSHA256(nil)
}

// uriEncode applies the strict RFC 3986 encoding SigV4 requires.
// url.QueryEscape encodes spaces as '+' and leaves some reserved
// characters alone, so adjust its output.
func uriEncode(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return escaped
}

// EndpointHost strips any scheme prefix from the endpoint value the
// token endpoint returns (it arrives as "https://xyz-ats.iot.….amazonaws.com").
func EndpointHost(endpoint string) string {
	host := strings.TrimPrefix(endpoint, "https://")
	host = strings.TrimPrefix(host, "wss://")
	return strings.TrimSuffix(host, "/")
}
