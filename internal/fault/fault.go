// internal/fault/fault.go
package fault

import (
	"errors"
	"fmt"

	"github.com/goburrow/modbus"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindTransportFault covers everything that is not a recognised
	// Modbus exception (timeouts, broken connections, unknown codes).
	KindTransportFault Kind = iota
	KindIllegalFunction
	KindIllegalAddress
	KindIllegalValue
	KindDeviceFailure
	KindAcknowledge
	KindBusy
	KindNegativeAcknowledge
	KindMemoryParity
	KindGatewayPath
	KindGatewayTarget
)

// negativeAcknowledge is not exported by goburrow/modbus.
const negativeAcknowledge = 7

type entry struct {
	kind Kind
	text string
}

// exceptions is the fixed Modbus exception table, keyed by exception code.
var exceptions = map[byte]entry{
	modbus.ExceptionCodeIllegalFunction:                   {KindIllegalFunction, "illegal function"},
	modbus.ExceptionCodeIllegalDataAddress:                {KindIllegalAddress, "illegal data address"},
	modbus.ExceptionCodeIllegalDataValue:                  {KindIllegalValue, "illegal data value"},
	modbus.ExceptionCodeServerDeviceFailure:               {KindDeviceFailure, "server device failure"},
	modbus.ExceptionCodeAcknowledge:                       {KindAcknowledge, "acknowledge"},
	modbus.ExceptionCodeServerDeviceBusy:                  {KindBusy, "server device busy"},
	negativeAcknowledge:                                   {KindNegativeAcknowledge, "negative acknowledge"},
	modbus.ExceptionCodeMemoryParityError:                 {KindMemoryParity, "memory parity error"},
	modbus.ExceptionCodeGatewayPathUnavailable:            {KindGatewayPath, "gateway path unavailable"},
	modbus.ExceptionCodeGatewayTargetDeviceFailedToRespond: {KindGatewayTarget, "gateway target device failed to respond"},
}

// Lookup returns the kind and description of an exception code.
// ok is false for codes outside the table.
func Lookup(code byte) (Kind, string, bool) {
	e, ok := exceptions[code]
	if !ok {
		return KindTransportFault, "", false
	}
	return e.kind, e.text, true
}

// Describe returns a human-readable reason for an exception code.
func Describe(code byte) string {
	if _, text, ok := Lookup(code); ok {
		return text
	}
	return fmt.Sprintf("transport fault (code %d)", code)
}

// Fault is a classified transport error.
// Code is 0 when the failure carried no exception code.
type Fault struct {
	Kind Kind
	Code byte
	Err  error
}

func (f *Fault) Error() string {
	if f.Code == 0 {
		return fmt.Sprintf("transport fault: %v", f.Err)
	}
	return fmt.Sprintf("%s: %v", Describe(f.Code), f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// ErrorCode exposes the raw code (0 when unknown).
func (f *Fault) ErrorCode() uint16 { return uint16(f.Code) }

// Classify wraps err into a Fault.
// It returns nil for a nil error and passes existing Faults through.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}

	var f *Fault
	if errors.As(err, &f) {
		return f
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		kind, _, _ := Lookup(me.ExceptionCode)
		return &Fault{Kind: kind, Code: me.ExceptionCode, Err: err}
	}

	return &Fault{Kind: KindTransportFault, Err: err}
}
