package hatchbridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/hatch-bridge/internal/awsiot"
	"github.com/nerrad567/hatch-bridge/internal/hatch"
)

// CloudClient is the Hatch cloud surface the session manager needs.
// Satisfied by *hatch.Client; narrowed for testability.
type CloudClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	Member(ctx context.Context, authToken string) (*hatch.Member, error)
	IoTDevices(ctx context.Context, authToken string, products []string) ([]hatch.IoTDevice, error)
	AWSIoTToken(ctx context.Context, authToken string) (*hatch.AWSToken, error)
	AWSCredentials(ctx context.Context, token *hatch.AWSToken) (*hatch.Credentials, error)
}

// AWSConnection is the device-gateway surface the bridge needs.
// Satisfied by *awsiot.Connection; narrowed for testability.
type AWSConnection interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Publish(topic string, qos byte, payload []byte) error
	IsConnected() bool
	SetOnConnectionLost(callback func(err error))
	Close() error
}

// Dialer establishes a device-gateway connection from a presigned URL.
// The default dialer wraps awsiot.Connect; tests inject a fake.
type Dialer func(presignedURL, clientID string, logger awsiot.Logger) (AWSConnection, error)

func defaultDialer(presignedURL, clientID string, logger awsiot.Logger) (AWSConnection, error) {
	return awsiot.Connect(presignedURL, clientID, logger)
}

// session holds the resources of one established cloud session. The
// whole session is torn down and rebuilt when credentials approach
// expiry or the connection drops.
type session struct {
	conn    AWSConnection
	shadow  *awsiot.ShadowClient
	devices []hatch.IoTDevice

	established time.Time
	expiry      time.Time

	// lost receives at most one connection-loss notification.
	lost chan error
}

func (s *session) close() {
	if s.conn != nil {
		//nolint:errcheck // Teardown is best-effort; a fresh session follows.
		s.conn.Close()
	}
}

// establishSession runs the full cloud bootstrap:
// login → member merge → device fetch → IoT token → Cognito credential
// exchange → presigned websocket connect.
//
// Rate-limit retries happen inside the cloud client; any other failure
// aborts the bootstrap and the caller schedules a retry.
func (b *Bridge) establishSession(ctx context.Context) (*session, error) {
	cfg := b.cfg

	authToken, err := b.cloud.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	// The member profile may list products beyond the configured set
	// (order-preserving merge, configured products first).
	products := cfg.Products
	member, err := b.cloud.Member(ctx, authToken)
	if err != nil {
		return nil, fmt.Errorf("fetch member: %w", err)
	}
	products = hatch.MergeProducts(products, member.Products)

	devices, err := b.cloud.IoTDevices(ctx, authToken, products)
	if err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}

	token, err := b.cloud.AWSIoTToken(ctx, authToken)
	if err != nil {
		return nil, fmt.Errorf("fetch iot token: %w", err)
	}

	creds, err := b.cloud.AWSCredentials(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("exchange credentials: %w", err)
	}

	url := awsiot.PresignWebsocketURL(
		awsiot.EndpointHost(token.Endpoint),
		token.Region,
		awsiot.SignerCredentials{
			AccessKeyID:  creds.AccessKeyID,
			SecretKey:    creds.SecretKey,
			SessionToken: creds.SessionToken,
		},
		time.Now().UTC(),
	)

	conn, err := b.dial(url, awsiot.BuildClientID(cfg.Email), b.getLogger())
	if err != nil {
		return nil, fmt.Errorf("connect device gateway: %w", err)
	}

	sess := &session{
		conn:        conn,
		shadow:      awsiot.NewShadowClient(conn),
		devices:     devices,
		established: time.Now().UTC(),
		expiry:      creds.ExpiresAt(),
		lost:        make(chan error, 1),
	}
	conn.SetOnConnectionLost(func(err error) {
		select {
		case sess.lost <- err:
		default:
		}
	})

	return sess, nil
}

// refreshDelay computes how long the session may run before rebuild:
// the margin before credential expiry, floored so a clock-skewed or
// short-lived credential cannot cause a rebuild storm.
func refreshDelay(expiry time.Time, margin time.Duration) time.Duration {
	const minDelay = 10 * time.Second

	d := time.Until(expiry) - margin
	if d < minDelay {
		return minDelay
	}
	return d
}
