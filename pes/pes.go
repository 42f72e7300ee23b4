// Package pes implements continuity-counter-aware reassembly and
// segmentation of PES (Packetized Elementary Stream) packets over
// 188-byte MPEG-TS packets, including adaptation-field stuffing on
// segmentation. It is a pure library, used by higher-layer demultiplexers
// and remultiplexers.
package pes

import (
	"fmt"

	"github.com/dvbcore/tsengine/ts"
)

// MaxPacketSize is the largest PES packet this packetizer accepts:
// 0xFFFF (the maximum 16-bit PES_packet_length) plus the 6-byte header.
const MaxPacketSize = 0xFFFF + 6

// minHeaderSize is the fixed PES start-code + stream_id + length header.
const minHeaderSize = 6

// PacketCallback receives one fully reassembled PES packet, including its
// 6-byte header. The slice aliases the context's internal buffer and is
// only valid for the duration of the call; callers that keep it must
// copy it.
type PacketCallback func(packet []byte)

// Context owns the reassembly and the segmentation-side build state for
// one PID. It is not safe for concurrent use.
type Context struct {
	PID      uint16
	StreamID byte

	buffer     [MaxPacketSize]byte
	bufferSize int
	bufferSkip int
	lastCC     uint8
}

// NewContext creates a reassembly/build context for pid.
func NewContext(pid uint16) *Context {
	return &Context{PID: pid}
}

// Reset discards any in-progress reassembly.
func (c *Context) Reset() {
	c.bufferSize = 0
	c.bufferSkip = 0
}

// Push feeds one TS packet belonging to this context's PID into the
// reassembler. cb is invoked once when a complete PES packet accumulates.
func (c *Context) Push(pkt []byte, cb PacketCallback) error {
	if !ts.HasPayload(pkt) {
		return nil
	}
	payload := ts.Payload(pkt)
	cc := ts.CC(pkt)

	if ts.PUSI(pkt) {
		return c.pushPUSI(payload, cc, cb)
	}
	return c.pushContinuation(payload, cc, cb)
}

func (c *Context) pushPUSI(payload []byte, cc uint8, cb PacketCallback) error {
	c.Reset()
	if len(payload) < minHeaderSize {
		return fmt.Errorf("pes: PUSI payload shorter than PES header (%d bytes)", len(payload))
	}
	declared := 6 + (int(payload[4])<<8 | int(payload[5]))
	if declared <= 6 || declared > MaxPacketSize {
		return fmt.Errorf("pes: invalid PES_packet_length yielding total %d", declared)
	}
	if len(payload) > declared {
		// Never copy more than the declared total out of the first TS
		// packet's body.
		payload = payload[:declared]
	} else if len(payload) > ts.PacketSize-4 {
		return fmt.Errorf("pes: first TS payload larger than TS body size")
	}

	c.bufferSize = declared
	n := copy(c.buffer[:], payload)
	c.bufferSkip = n
	c.lastCC = cc

	if c.bufferSkip == c.bufferSize {
		cb(c.buffer[:c.bufferSize])
		c.Reset()
	}
	return nil
}

func (c *Context) pushContinuation(payload []byte, cc uint8, cb PacketCallback) error {
	if c.bufferSkip == 0 {
		return fmt.Errorf("pes: continuation packet with no reassembly in progress")
	}
	if cc != (c.lastCC+1)&0x0F {
		c.Reset()
		return fmt.Errorf("pes: continuity counter discontinuity")
	}
	need := c.bufferSize - c.bufferSkip
	if need <= len(payload) {
		n := copy(c.buffer[c.bufferSkip:c.bufferSize], payload[:need])
		c.bufferSkip += n
		c.lastCC = cc
		cb(c.buffer[:c.bufferSize])
		c.Reset()
		return nil
	}
	n := copy(c.buffer[c.bufferSkip:], payload)
	c.bufferSkip += n
	c.lastCC = cc
	return nil
}

// Builder accumulates a PES packet's payload for later segmentation,
// mirroring the source's add_data entry point: the header is emitted on
// first append and the length placeholder patched in on Bytes().
type Builder struct {
	streamID byte
	pts      uint64
	hasPTS   bool
	data     []byte
	started  bool
	overflow bool
}

// NewBuilder creates a PES Builder for the given stream_id. If hasPTS is
// true, pts is encoded into the optional PES header and 5 extra header
// bytes are reserved.
func NewBuilder(streamID byte, pts uint64, hasPTS bool) *Builder {
	return &Builder{streamID: streamID, pts: pts, hasPTS: hasPTS}
}

// Append adds payload bytes to the packet being built. On the first call
// it emits the fixed 9-byte header (6-byte start code/stream_id/length
// placeholder, plus the 3-byte optional-header preamble used here) and,
// if hasPTS, the 5 PTS bytes. Once the total would exceed MaxPacketSize
// the append is silently dropped — this is the deliberate truncation
// point callers detect via Len().
func (b *Builder) Append(payload []byte) {
	if !b.started {
		b.emitHeader()
		b.started = true
	}
	if b.overflow {
		return
	}
	if len(b.data)+len(payload) > MaxPacketSize {
		b.overflow = true
		return
	}
	b.data = append(b.data, payload...)
}

func (b *Builder) emitHeader() {
	flags := byte(0x00)
	headerDataLen := byte(0)
	if b.hasPTS {
		flags = 0x80
		headerDataLen = 5
	}
	b.data = append(b.data,
		0x00, 0x00, 0x01, b.streamID, // start code + stream_id
		0x00, 0x00, // PES_packet_length placeholder
		0x80,       // marker bits, no scrambling/priority/alignment/copyright
		flags,      // PTS_DTS_indicators in top 2 bits
		headerDataLen,
	)
	if b.hasPTS {
		b.data = append(b.data, encodePTS(b.pts, 0x2)...)
	}
}

// encodePTS packs a 33-bit timestamp into the standard 5-byte PES PTS
// (or DTS) field with the given 4-bit marker prefix (0x2 for PTS-only,
// 0x3/0x1 for PTS+DTS pairs).
func encodePTS(ts uint64, marker byte) []byte {
	b := make([]byte, 5)
	b[0] = marker<<4 | byte(ts>>29&0x0E) | 0x01
	b[1] = byte(ts >> 22)
	b[2] = byte(ts>>14&0xFE) | 0x01
	b[3] = byte(ts >> 7)
	b[4] = byte(ts<<1&0xFE) | 0x01
	return b
}

// Len returns the number of bytes built so far, including the header.
func (b *Builder) Len() int { return len(b.data) }

// Overflowed reports whether any Append call was silently truncated.
func (b *Builder) Overflowed() bool { return b.overflow }

// Bytes patches the PES_packet_length field and returns the complete PES
// packet.
func (b *Builder) Bytes() []byte {
	length := len(b.data) - 6
	if length > 0xFFFF {
		length = 0xFFFF
	}
	b.data[4] = byte(length >> 8)
	b.data[5] = byte(length)
	return b.data
}

// Segment splits a complete PES packet (as produced by Builder, or any
// buffer shaped like one) into 188-byte TS packets carrying c.PID,
// starting continuity counter at startCC. PUSI is set only on the first
// packet. When the final packet's payload does not fill the TS body, an
// adaptation field is inserted to pad it out exactly: AF header
// len=af_size-1, flags byte 0x00, remaining bytes 0xFF.
func (c *Context) Segment(packet []byte, startCC uint8) ([][]byte, error) {
	if len(packet) <= 6 || len(packet) > MaxPacketSize {
		return nil, fmt.Errorf("pes: packet length %d out of bounds", len(packet))
	}

	var packets [][]byte
	cc := startCC
	offset := 0
	first := true
	const bodyCap = ts.PacketSize - 4

	for offset < len(packet) {
		remaining := len(packet) - offset
		pkt := make([]byte, ts.PacketSize)
		pkt[0] = ts.SyncByte
		pkt[1] = byte(c.PID >> 8 & 0x1F)
		if first {
			pkt[1] |= 0x40
		}
		pkt[2] = byte(c.PID)

		if remaining >= bodyCap {
			pkt[3] = 0x10 | (cc & 0x0F)
			copy(pkt[4:], packet[offset:offset+bodyCap])
			offset += bodyCap
		} else {
			afSize := bodyCap - remaining
			pkt[3] = 0x30 | (cc & 0x0F) // adaptation field + payload
			writeStuffingAF(pkt[4:4+afSize], afSize)
			copy(pkt[4+afSize:], packet[offset:])
			offset = len(packet)
		}

		packets = append(packets, pkt)
		cc = (cc + 1) & 0x0F
		first = false
	}
	return packets, nil
}

// writeStuffingAF fills an afSize-byte adaptation field whose sole
// purpose is padding: length byte, a zeroed flags byte, then 0xFF filler.
func writeStuffingAF(af []byte, afSize int) {
	af[0] = byte(afSize - 1)
	if afSize > 1 {
		af[1] = 0x00
		for i := 2; i < afSize; i++ {
			af[i] = 0xFF
		}
	}
}
