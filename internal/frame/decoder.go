package frame

import (
	"bytes"

	"github.com/smallnest/ringbuffer"
)

// DefaultMaxFrameSize bounds the terminator accumulator
const DefaultMaxFrameSize = 256

// Raw is one undecoded frame. Overflow marks bytes flushed because no
// terminator arrived before the accumulator filled up.
type Raw struct {
	Data     []byte
	Overflow bool
}

// Decoder splits read results into raw frames
type Decoder interface {
	Decode(chunk []byte) []Raw
	Reset()
}

// ChunkDecoder treats every read result as exactly one frame
type ChunkDecoder struct{}

// Decode copies chunk into a single frame
func (ChunkDecoder) Decode(chunk []byte) []Raw {
	if len(chunk) == 0 {
		return nil
	}
	data := make([]byte, len(chunk))
	copy(data, chunk)
	return []Raw{{Data: data}}
}

// Reset is a no-op; ChunkDecoder keeps no state
func (ChunkDecoder) Reset() {}

// TerminatorDecoder reassembles frames that span reads. Bytes after the last
// terminator are kept for the next Decode call. Blank frames between adjacent
// terminators are skipped.
type TerminatorDecoder struct {
	term    byte
	acc     *ringbuffer.RingBuffer
	scratch []byte
}

// NewTerminatorDecoder creates a decoder splitting on term. maxFrame <= 0 uses DefaultMaxFrameSize.
func NewTerminatorDecoder(term byte, maxFrame int) *TerminatorDecoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &TerminatorDecoder{
		term:    term,
		acc:     ringbuffer.New(maxFrame),
		scratch: make([]byte, maxFrame),
	}
}

// Terminator returns the split byte
func (d *TerminatorDecoder) Terminator() byte {
	return d.term
}

// Pending returns the number of buffered bytes awaiting a terminator
func (d *TerminatorDecoder) Pending() int {
	return d.acc.Length()
}

// Decode appends chunk to the accumulator and returns every complete frame
func (d *TerminatorDecoder) Decode(chunk []byte) []Raw {
	var frames []Raw
	for len(chunk) > 0 {
		n, _ := d.acc.Write(chunk)
		chunk = chunk[n:]

		frames = d.drain(frames)

		if d.acc.IsFull() {
			// A full accumulator after draining holds no terminator at all
			frames = append(frames, Raw{Data: d.take(), Overflow: true})
		}
	}
	return frames
}

// Reset discards any partial frame
func (d *TerminatorDecoder) Reset() {
	d.acc.Reset()
}

// drain extracts complete frames and writes the remainder back
func (d *TerminatorDecoder) drain(frames []Raw) []Raw {
	buffered := d.take()
	for {
		i := bytes.IndexByte(buffered, d.term)
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(buffered[:i], "\r"); len(bytes.TrimSpace(line)) > 0 {
			frames = append(frames, Raw{Data: line})
		}
		buffered = buffered[i+1:]
	}
	if len(buffered) > 0 {
		_, _ = d.acc.Write(buffered)
	}
	return frames
}

// take empties the accumulator into a fresh slice
func (d *TerminatorDecoder) take() []byte {
	n := d.acc.Length()
	if n == 0 {
		return nil
	}
	read, _ := d.acc.Read(d.scratch[:n])
	out := make([]byte, read)
	copy(out, d.scratch[:read])
	return out
}
