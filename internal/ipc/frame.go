package ipc

import (
	"bufio"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// maxFrameSize caps a single length-delimited frame.
const maxFrameSize = 4 * 1024

var frameReader = protodelim.UnmarshalOptions{MaxSize: maxFrameSize}

func writeBytes(w io.Writer, b []byte) error {
	if _, err := protodelim.MarshalTo(w, wrapperspb.Bytes(b)); err != nil {
		return fmt.Errorf("ipc: write frame: %w", err)
	}
	return nil
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	var v wrapperspb.BytesValue
	if err := frameReader.UnmarshalFrom(r, &v); err != nil {
		return nil, fmt.Errorf("ipc: read frame: %w", err)
	}
	return v.GetValue(), nil
}

func writeMessage(w io.Writer, m Message) error {
	s, err := structpb.NewStruct(map[string]any{
		"id":       m.ID,
		"callback": m.Callback,
		"pid":      m.PID,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if _, err := protodelim.MarshalTo(w, s); err != nil {
		return fmt.Errorf("ipc: write message: %w", err)
	}
	return nil
}

func readMessage(r *bufio.Reader) (Message, error) {
	var s structpb.Struct
	if err := frameReader.UnmarshalFrom(r, &s); err != nil {
		return Message{}, fmt.Errorf("ipc: read message: %w", err)
	}
	f := s.GetFields()
	m := Message{
		ID:       f["id"].GetStringValue(),
		Callback: f["callback"].GetStringValue(),
		PID:      int(f["pid"].GetNumberValue()),
	}
	if m.Callback == "" {
		return Message{}, fmt.Errorf("%w: no callback name", ErrBadFrame)
	}
	return m, nil
}
