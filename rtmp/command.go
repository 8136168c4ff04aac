package rtmp

import (
	"fmt"

	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/rtmpmsg"
)

// Command is one AMF0 command message (spec.md §4.5): name, transaction id,
// a command object (Object or Null), and trailing positional arguments.
type Command struct {
	Name          string
	TransactionID uint32
	CommandObject *amf0.Value
	Args          []*amf0.Value
}

// EncodeCommand serializes cmd as a COMMAND_AMF0 payload: name, transaction
// id, command object, then each argument in order.
func EncodeCommand(cmd *Command) []byte {
	out := amf0.Encode(amf0.String(cmd.Name))
	out = append(out, amf0.Encode(amf0.Number(float64(cmd.TransactionID)))...)
	obj := cmd.CommandObject
	if obj == nil {
		obj = amf0.Null()
	}
	out = append(out, amf0.Encode(obj)...)
	for _, a := range cmd.Args {
		out = append(out, amf0.Encode(a)...)
	}
	return out
}

// DecodeCommand parses a COMMAND_AMF0 payload into its name, transaction id,
// command object, and trailing arguments.
func DecodeCommand(payload []byte) (*Command, error) {
	r := amf0.NewReader(payload)

	nameV, err := r.ReadValue()
	if err != nil {
		return nil, fmt.Errorf("%w: command name: %v", ErrInvalidFormat, err)
	}
	txV, err := r.ReadValue()
	if err != nil {
		return nil, fmt.Errorf("%w: transaction id: %v", ErrInvalidFormat, err)
	}

	cmd := &Command{Name: nameV.Str(), TransactionID: uint32(txV.Int64())}

	if r.Len() > 0 {
		obj, err := r.ReadValue()
		if err != nil {
			return nil, fmt.Errorf("%w: command object: %v", ErrInvalidFormat, err)
		}
		cmd.CommandObject = obj
	}

	for r.Len() > 0 {
		arg, err := r.ReadValue()
		if err != nil {
			return nil, fmt.Errorf("%w: command argument: %v", ErrInvalidFormat, err)
		}
		cmd.Args = append(cmd.Args, arg)
	}

	return cmd, nil
}

// peekCommand extracts just the fields the reactor needs to route a command
// to a transaction waiter, without requiring every caller to re-decode the
// full argument list: name, transaction id, and (for onStatus) the info
// object's "code" property.
func peekCommand(payload []byte) (name string, txID uint32, infoCode string, ok bool) {
	cmd, err := DecodeCommand(payload)
	if err != nil {
		return "", 0, "", false
	}
	infoCode = ""
	if len(cmd.Args) > 0 {
		infoCode = cmd.Args[len(cmd.Args)-1].Get("code").Str()
	}
	return cmd.Name, cmd.TransactionID, infoCode, true
}

// NewCommandMessage wraps an encoded command as a COMMAND_AMF0 message on
// the command chunk stream, ready to hand to Conn.Send.
func NewCommandMessage(streamID uint32, cmd *Command) *rtmpmsg.Message {
	return &rtmpmsg.Message{
		Type:      rtmpmsg.TypeCommandAMF0,
		StreamID:  streamID,
		ChunkCSID: rtmpmsg.CSIDCommand,
		Payload:   EncodeCommand(cmd),
	}
}

// StatusInfo builds the `info` object onStatus/`_error` replies carry:
// level ("status"|"error"), code (e.g. "NetStream.Publish.Start"), and an
// optional human-readable description.
func StatusInfo(level, code, description string) *amf0.Value {
	info := amf0.Object()
	info.Set("level", amf0.String(level))
	info.Set("code", amf0.String(code))
	if description != "" {
		info.Set("description", amf0.String(description))
	}
	return info
}
