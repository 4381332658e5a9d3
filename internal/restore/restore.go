package restore

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProduct is returned when a discovered product has no
// device model.
var ErrUnsupportedProduct = errors.New("unsupported product")

// Products with device models, keyed to their generation.
var productGenerations = map[string]string{
	"restore":    GenerationLegacy,
	"restoreIot": GenerationIoT,
	"restoreV4":  GenerationIoT,
	"restoreV5":  GenerationIoT,
}

// SupportedProduct reports whether a product string has a device model.
func SupportedProduct(product string) bool {
	_, ok := productGenerations[product]
	return ok
}

// ProductGeneration returns GenerationLegacy or GenerationIoT for a
// supported product, or "" otherwise.
func ProductGeneration(product string) string {
	return productGenerations[product]
}

// New constructs the device model for a discovered product.
//
// Parameters:
//   - product: Hatch product identifier (e.g. "restore", "restoreV4")
//   - thingName: AWS IoT thing name (stable device identifier)
//   - name: User-assigned device name
//   - mac: Device MAC address as reported by the cloud
//   - writer: Shadow update publisher
//
// Returns:
//   - Device: Generation-appropriate model
//   - error: ErrUnsupportedProduct for products without a model
func New(product, thingName, name, mac string, writer ShadowWriter) (Device, error) {
	switch productGenerations[product] {
	case GenerationLegacy:
		return NewLegacyRestore(thingName, name, mac, product, writer), nil
	case GenerationIoT:
		return NewIoTRestore(thingName, name, mac, product, writer), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProduct, product)
	}
}
