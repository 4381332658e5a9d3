package awsiot

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Connection constants.
const (
	// connectTimeout is the maximum time to wait for the websocket
	// connection and MQTT handshake.
	connectTimeout = 30 * time.Second

	// opTimeout is the maximum time to wait for subscribe/publish acks.
	opTimeout = 10 * time.Second

	// keepAlive matches the interval the vendor apps use against the
	// device gateway.
	keepAlive = 30 * time.Second

	// disconnectQuiesce is the time to wait for in-flight operations on
	// disconnect, in milliseconds.
	disconnectQuiesce = 500

	// clientIDPrefix namespaces this bridge's AWS IoT client IDs.
	clientIDPrefix = "hatch-bridge"
)

// nonAlpha matches everything that is not an ASCII letter.
var nonAlpha = regexp.MustCompile(`[^a-zA-Z]`)

// Logger is the minimal logging surface the connection needs.
// Compatible with logging.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Connection is an MQTT-over-websocket session with the AWS IoT device
// gateway.
//
// Unlike the local broker client, a Connection does NOT auto-reconnect:
// its presigned URL embeds credentials that expire, so the session
// manager tears the whole connection down and rebuilds it with fresh
// credentials instead. OnConnectionLost signals the manager.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Connection struct {
	client   pahomqtt.Client
	clientID string

	connected bool
	mu        sync.RWMutex

	onLost func(err error)
	lostMu sync.RWMutex

	logger Logger
}

// BuildClientID returns an AWS IoT client ID in the form
// prefix/safe-email/uuid. The email is reduced to its letters and
// lowercased, matching the vendor app's scheme so the gateway's
// per-prefix policies apply.
func BuildClientID(email string) string {
	safeEmail := strings.ToLower(nonAlpha.ReplaceAllString(email, ""))
	return fmt.Sprintf("%s/%s/%s", clientIDPrefix, safeEmail, uuid.New().String())
}

// Connect dials the device gateway over the presigned websocket URL.
//
// Parameters:
//   - presignedURL: wss:// URL from PresignWebsocketURL
//   - clientID: Client ID from BuildClientID
//   - logger: Logger for handler errors (may be nil)
//
// Returns:
//   - *Connection: Live connection
//   - error: ErrConnectionFailed if the dial or handshake fails
func Connect(presignedURL, clientID string, logger Logger) (*Connection, error) {
	conn := &Connection{
		clientID: clientID,
		logger:   logger,
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(presignedURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetConnectTimeout(connectTimeout)

	// No auto-reconnect: the URL's embedded credentials expire, so
	// reconnecting with the same URL would be rejected. The session
	// manager rebuilds the connection with fresh credentials.
	opts.SetAutoReconnect(false)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		conn.handleLost(err)
	})

	conn.client = pahomqtt.NewClient(opts)
	token := conn.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	conn.mu.Lock()
	conn.connected = true
	conn.mu.Unlock()

	return conn, nil
}

// handleLost marks the connection down and notifies the session manager.
func (c *Connection) handleLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Warn("AWS IoT connection lost", "client_id", c.clientID, "error", err)
	}

	c.lostMu.RLock()
	callback := c.onLost
	c.lostMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// SetOnConnectionLost sets a callback invoked when the gateway drops
// the connection. The session manager uses this to trigger a rebuild.
func (c *Connection) SetOnConnectionLost(callback func(err error)) {
	c.lostMu.Lock()
	c.onLost = callback
	c.lostMu.Unlock()
}

// IsConnected returns the current connection state.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// ClientID returns the MQTT client ID of this connection.
func (c *Connection) ClientID() string {
	return c.clientID
}

// Subscribe registers a handler on a device gateway topic.
func (c *Connection) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	wrapped := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil && c.logger != nil {
				c.logger.Error("shadow handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		handler(msg.Topic(), msg.Payload())
	}

	token := c.client.Subscribe(topic, qos, wrapped)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Publish sends a payload to a device gateway topic.
func (c *Connection) Publish(topic string, qos byte, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%w: timeout publishing to %s", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Close disconnects from the device gateway.
func (c *Connection) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Disconnect(disconnectQuiesce)
	return nil
}
