package hatch

import (
	"encoding/json"
	"math"
	"time"
)

// envelope is the response wrapper used by all prod-sleep endpoints.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

// loginPayload is the payload of a successful login response.
type loginPayload struct {
	Token string `json:"token"`
}

// Member describes the account returned by the member endpoint.
// Products lists the product families registered to this account; they
// are merged into the discovery query alongside the known product list.
type Member struct {
	Products []string `json:"products"`
	Member   struct {
		Email string `json:"email"`
	} `json:"member"`
}

// IoTDevice is one device row from the iotDevice fetch endpoint.
//
// ThingName doubles as the AWS IoT thing name used for shadow topics and
// as the bridge's device ID.
type IoTDevice struct {
	Product         string `json:"product"`
	Name            string `json:"name"`
	ThingName       string `json:"thingName"`
	MACAddress      string `json:"macAddress"`
	FirmwareVersion string `json:"firmwareVersion"`
}

// Valid reports whether the row carries everything the bridge needs.
// The cloud occasionally returns partial rows for deregistered devices.
func (d IoTDevice) Valid() bool {
	return d.Product != "" && d.Name != "" && d.ThingName != "" && d.MACAddress != ""
}

// AWSToken is the Cognito bootstrap material from the token endpoint.
type AWSToken struct {
	Endpoint   string `json:"endpoint"`
	Region     string `json:"region"`
	IdentityID string `json:"identityId"`
	Token      string `json:"token"`
}

// Credentials are temporary AWS credentials from the Cognito identity
// exchange. Expiration is unix seconds (the Cognito wire format).
type Credentials struct {
	AccessKeyID  string  `json:"AccessKeyId"`
	SecretKey    string  `json:"SecretKey"`
	SessionToken string  `json:"SessionToken"`
	Expiration   float64 `json:"Expiration"`
}

// ExpiresAt returns the credential expiry as a time.Time.
func (c Credentials) ExpiresAt() time.Time {
	sec, frac := math.Modf(c.Expiration)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// credentialsResponse is the Cognito GetCredentialsForIdentity response body.
type credentialsResponse struct {
	IdentityID  string      `json:"IdentityId"`
	Credentials Credentials `json:"Credentials"`
}

// MergeProducts returns the union of the known product list and the
// account's member products, preserving first-seen order and dropping
// duplicates. The order matters: the cloud answers fastest for the
// products it sees first, and known products come first by convention.
func MergeProducts(known, member []string) []string {
	seen := make(map[string]bool, len(known)+len(member))
	out := make([]string, 0, len(known)+len(member))
	for _, lists := range [][]string{known, member} {
		for _, p := range lists {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
