package hatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nerrad567/hatch-bridge/internal/infrastructure/config"
)

// Request constants.
const (
	// defaultHTTPTimeout bounds every cloud request.
	defaultHTTPTimeout = 30 * time.Second

	// userAgent identifies the bridge to the Hatch cloud. The header key
	// is the literal "USER_AGENT" the vendor API expects, not the
	// standard User-Agent header.
	userAgent = "hatch-bridge"

	// maxResponseSize caps response bodies to guard against a
	// misbehaving endpoint (device lists are a few KB at most).
	maxResponseSize = 4 << 20 // 4MB

	// cognitoTarget is the X-Amz-Target for the credential exchange.
	cognitoTarget = "AWSCognitoIdentityService.GetCredentialsForIdentity"

	// cognitoLoginsKey is the Logins map key for the Cognito exchange.
	cognitoLoginsKey = "cognito-identity.amazonaws.com"
)

// Client talks to the Hatch cloud REST API.
//
// All methods retry HTTP 429 responses internally with exponential
// backoff per the configured rate-limit policy.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the client holds no
//     mutable state beyond the shared http.Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      config.RateRetryConfig
}

// New creates a Hatch cloud client from configuration.
//
// Parameters:
//   - cfg: Hatch section of config.yaml (API base, retry policy)
//   - httpClient: Optional HTTP client; pass nil for a default with a
//     30 second timeout
//
// Returns:
//   - *Client: Ready-to-use client (no connection is made until the
//     first call)
func New(cfg config.HatchConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.APIBase,
		retry:      cfg.RateLimit,
	}
}

// Login authenticates with the Hatch cloud and returns the account auth
// token. The token is sent as the X-HatchBaby-Auth header on subsequent
// calls.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - email: Hatch account email
//   - password: Hatch account password
//
// Returns:
//   - string: Auth token
//   - error: ErrAuthFailed for rejected credentials, ErrRateLimited
//     after exhausted retries, ErrAPIStatus otherwise
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("encoding login request: %w", err)
	}

	var payload loginPayload
	err = c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, c.baseURL+"public/v1/login", "", body, &payload)
	})
	if err != nil {
		return "", err
	}

	if payload.Token == "" {
		return "", fmt.Errorf("%w: login response carried no token", ErrAuthFailed)
	}
	return payload.Token, nil
}

// Member fetches the account profile, including the product families
// registered to the account.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - authToken: Token from Login
//
// Returns:
//   - *Member: Account profile
//   - error: ErrAuthFailed if the token is rejected
func (c *Client) Member(ctx context.Context, authToken string) (*Member, error) {
	var member Member
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, c.baseURL+"service/app/v2/member", authToken, nil, &member)
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// IoTDevices fetches the account's IoT device inventory for the given
// product families.
//
// The query carries one iotProducts parameter per product, preserving
// order. Rows missing product, name, thingName or macAddress are
// dropped (the cloud returns partial rows for deregistered devices).
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - authToken: Token from Login
//   - products: Product families to query (typically
//     MergeProducts(config list, member products))
//
// Returns:
//   - []IoTDevice: Valid device rows
//   - error: ErrNoDevices if no valid rows remain
func (c *Client) IoTDevices(ctx context.Context, authToken string, products []string) ([]IoTDevice, error) {
	values := url.Values{}
	for _, p := range products {
		values.Add("iotProducts", p)
	}
	endpoint := c.baseURL + "service/app/iotDevice/v2/fetch?" + values.Encode()

	var rows []IoTDevice
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, endpoint, authToken, nil, &rows)
	})
	if err != nil {
		return nil, err
	}

	devices := make([]IoTDevice, 0, len(rows))
	for _, row := range rows {
		if row.Valid() {
			devices = append(devices, row)
		}
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	return devices, nil
}

// AWSIoTToken fetches the Cognito bootstrap material (endpoint, region,
// identity ID and OpenID token) used to mint AWS credentials.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - authToken: Token from Login
//
// Returns:
//   - *AWSToken: Cognito bootstrap material
//   - error: ErrAuthFailed if the token is rejected
func (c *Client) AWSIoTToken(ctx context.Context, authToken string) (*AWSToken, error) {
	var token AWSToken
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, c.baseURL+"service/app/restPlus/token/v1/fetch", authToken, nil, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// AWSCredentials exchanges the Cognito token for temporary AWS
// credentials via GetCredentialsForIdentity.
//
// This call goes to cognito-identity.{region}.amazonaws.com, not the
// Hatch API base, and uses the x-amz-json-1.1 wire format rather than
// the prod-sleep envelope.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - token: Bootstrap material from AWSIoTToken
//
// Returns:
//   - *Credentials: Temporary AWS credentials with unix-seconds expiry
//   - error: ErrAPIStatus for non-200 responses
func (c *Client) AWSCredentials(ctx context.Context, token *AWSToken) (*Credentials, error) {
	body, err := json.Marshal(map[string]interface{}{
		"IdentityId": token.IdentityID,
		"Logins": map[string]string{
			cognitoLoginsKey: token.Token,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding cognito request: %w", err)
	}

	endpoint := fmt.Sprintf("https://cognito-identity.%s.amazonaws.com/", token.Region)

	var creds *Credentials
	err = c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building cognito request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-amz-json-1.1")
		req.Header.Set("X-Amz-Target", cognitoTarget)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("cognito request: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck // Best effort

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("reading cognito response: %w", err)
		}

		if err := statusError(resp.StatusCode); err != nil {
			return fmt.Errorf("%w: cognito returned %d", err, resp.StatusCode)
		}

		var parsed credentialsResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("decoding cognito response: %w", err)
		}
		creds = &parsed.Credentials
		return nil
	})
	if err != nil {
		return nil, err
	}

	if creds.AccessKeyID == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("%w: cognito response carried no credentials", ErrAPIStatus)
	}
	return creds, nil
}

// doJSON performs a prod-sleep request and decodes the envelope payload
// into out. Pass an empty authToken for unauthenticated endpoints and a
// nil body for GETs.
func (c *Client) doJSON(ctx context.Context, method, endpoint, authToken string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	// The vendor API matches on the literal USER_AGENT header key.
	req.Header.Set("USER_AGENT", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("X-HatchBaby-Auth", authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hatch api request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := statusError(resp.StatusCode); err != nil {
		return fmt.Errorf("%w: %s returned %d", err, endpoint, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding response envelope: %w", err)
	}

	if out != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return fmt.Errorf("decoding response payload: %w", err)
		}
	}
	return nil
}

// statusError maps an HTTP status to a sentinel error, or nil for 2xx.
func statusError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthFailed
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrAPIStatus
	}
}
