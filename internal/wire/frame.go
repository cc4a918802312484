package wire

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// DefaultGrowthStep is the amount by which the decode buffer grows each
// time it proves too small for a frame, mirroring the original embedded
// implementation's fixed 1KiB resizing step.
const DefaultGrowthStep = 1024

const sentinel = 0x00

// Conn is a framed byte-stream channel: read one frame (blocking) or write
// one frame. It is implemented identically whether the underlying stream is
// a UART-like port (host<->enclave) or a TCP socket (client<->host).
type Conn struct {
	r          *bufio.Reader
	w          io.Writer
	growthStep int
}

// NewConn wraps rw as a framed connection using the default growth step.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{r: bufio.NewReader(rw), w: rw, growthStep: DefaultGrowthStep}
}

// NewConnWithGrowthStep is as NewConn but lets tests exercise growth steps
// other than the default.
func NewConnWithGrowthStep(rw io.ReadWriter, growthStep int) *Conn {
	if growthStep < 1 {
		growthStep = DefaultGrowthStep
	}
	return &Conn{r: bufio.NewReader(rw), w: rw, growthStep: growthStep}
}

// WriteFrame serialises msg to CBOR, COBS-encodes it, and writes the framed
// bytes terminated by the sentinel.
func (c *Conn) WriteFrame(msg any) error {
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wire: encode cbor payload: %w", err)
	}
	encoded := cobsEncode(payload)
	encoded = append(encoded, sentinel)
	if _, err := c.w.Write(encoded); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}

// ReadFrame blocks until one complete frame has been read from the
// underlying stream, COBS-decodes it, and CBOR-decodes the result into out.
//
// The decode buffer starts at growthStep bytes and grows by growthStep
// every time it proves too small, replaying the bytes read so far rather
// than discarding them. Any read error (including io.EOF mid-frame) is
// returned unwrapped so callers can distinguish transport failure from a
// malformed frame.
func (c *Conn) ReadFrame(out any) error {
	raw, err := c.readRawFrame()
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("wire: decode cbor payload: %w", err)
	}
	return nil
}

func (c *Conn) readRawFrame() ([]byte, error) {
	var encoded []byte
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != sentinel {
			encoded = append(encoded, b)
			continue
		}
		return c.decodeGrowing(encoded)
	}
}

// decodeGrowing runs cobsDecode against encoded, growing the destination
// buffer by growthStep whenever it is reported too small.
func (c *Conn) decodeGrowing(encoded []byte) ([]byte, error) {
	bufSize := c.growthStep
	for {
		dst := make([]byte, bufSize)
		n, err := cobsDecode(encoded, dst)
		switch err {
		case nil:
			return dst[:n], nil
		case errTargetTooSmall:
			bufSize += c.growthStep
		default:
			return nil, fmt.Errorf("wire: %w", err)
		}
	}
}
