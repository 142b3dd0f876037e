// Package origin implements the client side of the Celestron Origin
// WebSocket JSON command protocol. It owns the single outbound session to
// the telescope, translates high-level mount and camera operations into
// tagged wire commands, and bridges the asynchronous protocol into bounded
// synchronous calls for the Alpaca layer.
package origin

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers. The Alpaca layer maps these to the
// corresponding ASCOM error numbers.
var (
	// ErrNotConnected indicates no WebSocket session is established.
	ErrNotConnected = errors.New("not connected to telescope")

	// ErrTimeout indicates a bounded wait expired before the device
	// delivered the expected notification.
	ErrTimeout = errors.New("operation timed out")

	// ErrBusy indicates an imaging session is already in flight.
	ErrBusy = errors.New("exposure already in progress")

	// ErrAborted indicates a pending exposure was cancelled by the caller.
	ErrAborted = errors.New("exposure aborted")
)

// TelescopeStatus is the cached snapshot of the telescope state, replaced
// wholesale on every telemetry update so readers never observe a torn
// write. Coordinates are in Alpaca units: right ascension in hours,
// everything else in degrees.
type TelescopeStatus struct {
	Altitude       float64
	Azimuth        float64
	RightAscension float64
	Declination    float64

	Connected bool
	Slewing   bool
	Tracking  bool
	Parked    bool
	Aligned   bool

	// CurrentOperation is a free-text state label ("Idle", "Slewing", ...).
	CurrentOperation string

	// Temperature is the ambient temperature in degrees Celsius.
	Temperature float64
}

// Direction identifies a manual-motion direction on the mount.
type Direction int

const (
	North Direction = iota // Dec positive
	South                  // Dec negative
	East                   // RA positive
	West                   // RA negative
)

// wire returns the axis name and direction name the Origin MoveAxis command
// expects.
func (d Direction) wire() (axis, direction string, err error) {
	switch d {
	case North:
		return "Dec", "Positive", nil
	case South:
		return "Dec", "Negative", nil
	case East:
		return "Ra", "Positive", nil
	case West:
		return "Ra", "Negative", nil
	default:
		return "", "", fmt.Errorf("invalid direction %d", d)
	}
}

// EventKind identifies a gateway lifecycle event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventStatusUpdated
	EventImageReady
)

// String returns the event kind name for logging and MQTT topics.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventStatusUpdated:
		return "statusUpdated"
	case EventImageReady:
		return "imageReady"
	default:
		return "unknown"
	}
}

// Event is a typed notification emitted by the client. Status carries the
// snapshot current at the time the event fired.
type Event struct {
	Kind   EventKind
	Status TelescopeStatus
}
