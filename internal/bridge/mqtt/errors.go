// internal/bridge/mqtt/errors.go
package mqtt

import "errors"

// Use errors.Is() to check for these.
var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrInvalidTopic      = errors.New("mqtt: topic cannot be empty")
	ErrTimeout           = errors.New("mqtt: operation timed out")
	ErrInvalidPayload    = errors.New("mqtt: invalid set payload")
	ErrUnexpectedCommand = errors.New("mqtt: topic is not a set command")
)
