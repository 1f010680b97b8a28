package wire

import (
	"bytes"
	"testing"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []Frame{
		{Type: Call, StreamID: 0, Method: []byte("publish"), Payload: []byte("params")},
		{Type: Notify, StreamID: 0, Method: []byte("write"), Payload: nil},
		{Type: Response, StreamID: 0, Payload: []byte("ok")},
		{Type: StreamMessage, StreamID: 7, Payload: []byte("msg")},
		{Type: StreamClose, StreamID: 7},
		{Type: ErrorResponse, StreamID: 0, ErrorKind: ggerr.NoEntry},
	}

	for _, f := range tests {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if got.Type != f.Type || got.StreamID != f.StreamID {
			t.Errorf("got %+v, want %+v", got, f)
		}
		if !bytes.Equal(got.Method, f.Method) {
			t.Errorf("method mismatch: got %q want %q", got.Method, f.Method)
		}
		if !bytes.Equal(got.Payload, f.Payload) {
			t.Errorf("payload mismatch: got %q want %q", got.Payload, f.Payload)
		}
		if got.ErrorKind != f.ErrorKind {
			t.Errorf("error kind mismatch: got %v want %v", got.ErrorKind, f.ErrorKind)
		}
	}
}

func TestReadFrameRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	lenBuf[3] = 0xFF // huge bogus length
	buf.Write(lenBuf)

	_, err := ReadFrame(&buf)
	if ggerr.KindOf(err) != ggerr.Range {
		t.Fatalf("expected Range, got %v", err)
	}
}

func TestWriteFrameRejectsOversizePayload(t *testing.T) {
	f := Frame{Type: Response, Payload: make([]byte, MaxFrameLen+1)}
	err := WriteFrame(&bytes.Buffer{}, f)
	if ggerr.KindOf(err) != ggerr.Range {
		t.Fatalf("expected Range, got %v", err)
	}
}

func TestReadFrameHandlesShortReads(t *testing.T) {
	f := Frame{Type: Call, Method: []byte("m"), Payload: []byte("abcdefgh")}
	data, err := f.marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	r := &slowReader{data: data, chunk: 1}
	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame over slow reader: %v", err)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("payload mismatch: got %q want %q", got.Payload, f.Payload)
	}
}

// slowReader returns at most chunk bytes per Read call, to exercise the
// "reads are chunked; partial reads are buffered" contract (spec.md
// §4.2).
type slowReader struct {
	data  []byte
	chunk int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, bytes.ErrTooLarge // any non-nil, non-EOF sentinel would do; tests never reach this
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}
