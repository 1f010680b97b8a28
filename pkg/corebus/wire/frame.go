// Package wire implements the length-prefixed frame format carried over
// a core bus connection (spec.md §4.2, component C2). It is
// conn-agnostic: the reference daemons use Unix domain sockets, but
// ReadFrame/WriteFrame operate on any io.Reader/io.Writer so tests can run
// the protocol over net.Pipe.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
)

// RequestType is the frame's request_type field (spec.md §4.2). The
// numbering is part of the wire contract and must stay stable across
// conforming implementations.
type RequestType uint8

const (
	Call RequestType = iota
	Notify
	Response
	StreamMessage
	StreamClose
	ErrorResponse
)

func (t RequestType) String() string {
	switch t {
	case Call:
		return "Call"
	case Notify:
		return "Notify"
	case Response:
		return "Response"
	case StreamMessage:
		return "StreamMessage"
	case StreamClose:
		return "StreamClose"
	case ErrorResponse:
		return "ErrorResponse"
	default:
		return "Unknown"
	}
}

// MaxFrameLen is GGL_COREBUS_MAX_MSG_LEN from the source: the compile-
// time ceiling on a single frame's total wire size. Frames at or under
// this size are accepted; anything larger fails with ggerr.Range.
const MaxFrameLen = 128 * 1024

// Frame is one length-prefixed unit on the wire.
type Frame struct {
	Type      RequestType
	StreamID  int32
	Method    []byte      // set only on Call/Notify
	ErrorKind ggerr.Kind  // set only on ErrorResponse
	Payload   []byte      // serialized ggobject.Value, typically a map
}

// marshal lays out {u32 length, header block, payload block} as one
// contiguous buffer. Header block: 1 byte type, 4 bytes stream_id (LE),
// then either a u16-prefixed method (Call/Notify) or a single error-kind
// byte (ErrorResponse); other types carry no extra header fields.
func (f Frame) marshal() ([]byte, error) {
	header := make([]byte, 0, 16)
	header = append(header, byte(f.Type))
	var sid [4]byte
	binary.LittleEndian.PutUint32(sid[:], uint32(f.StreamID))
	header = append(header, sid[:]...)

	switch f.Type {
	case Call, Notify:
		if len(f.Method) > 0xFFFF {
			return nil, ggerr.New(ggerr.Range, "method name too long")
		}
		var mlen [2]byte
		binary.LittleEndian.PutUint16(mlen[:], uint16(len(f.Method)))
		header = append(header, mlen[:]...)
		header = append(header, f.Method...)
	case ErrorResponse:
		header = append(header, byte(f.ErrorKind))
	}

	total := 4 + len(header) + len(f.Payload)
	if total > MaxFrameLen {
		return nil, ggerr.New(ggerr.Range, "frame of %d bytes exceeds max %d", total, MaxFrameLen)
	}

	out := make([]byte, 0, total)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(total-4))
	out = append(out, lenBuf[:]...)
	out = append(out, header...)
	out = append(out, f.Payload...)
	return out, nil
}

// WriteFrame serializes f and writes it to w in one call. Callers that
// need writes from multiple logical streams serialized onto one
// connection (corebus's sub_respond contract) must hold their own
// per-connection lock around WriteFrame; wire itself is not
// connection-aware.
func WriteFrame(w io.Writer, f Frame) error {
	data, err := f.marshal()
	if err != nil {
		return err
	}
	_, err = writeAll(w, data)
	if err != nil {
		return ggerr.Wrap(ggerr.NoConn, err)
	}
	return nil
}

func writeAll(w io.Writer, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := w.Write(data[written:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadFrame reads exactly one frame from r, transparently retrying
// short reads (spec.md §7: "transient I/O ... retried transparently").
// A length prefix announcing a frame (prefix included) over MaxFrameLen
// fails with ggerr.Range without attempting to read the (oversize) body.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, ggerr.Wrap(ggerr.NoConn, err)
	}
	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
	if bodyLen > MaxFrameLen-4 {
		return Frame{}, ggerr.New(ggerr.Range, "incoming frame of %d bytes exceeds max %d", bodyLen, MaxFrameLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, ggerr.Wrap(ggerr.NoConn, err)
	}
	return unmarshalBody(body)
}

func unmarshalBody(body []byte) (Frame, error) {
	if len(body) < 5 {
		return Frame{}, ggerr.New(ggerr.Parse, "frame header truncated")
	}
	f := Frame{Type: RequestType(body[0])}
	f.StreamID = int32(binary.LittleEndian.Uint32(body[1:5]))
	rest := body[5:]

	switch f.Type {
	case Call, Notify:
		if len(rest) < 2 {
			return Frame{}, ggerr.New(ggerr.Parse, "truncated method length")
		}
		mlen := binary.LittleEndian.Uint16(rest[:2])
		rest = rest[2:]
		if uint64(len(rest)) < uint64(mlen) {
			return Frame{}, ggerr.New(ggerr.Parse, "truncated method name")
		}
		f.Method = rest[:mlen]
		rest = rest[mlen:]
	case ErrorResponse:
		if len(rest) < 1 {
			return Frame{}, ggerr.New(ggerr.Parse, "truncated error kind")
		}
		f.ErrorKind = ggerr.Kind(rest[0])
		rest = rest[1:]
	}

	f.Payload = rest
	return f, nil
}
