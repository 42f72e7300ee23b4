// Package psi implements continuity-counter-aware reassembly and
// segmentation of PSI (Program Specific Information) sections over
// 188-byte MPEG-TS packets, per ISO/IEC 13818-1. It is a pure library:
// callers push TS packets in and receive complete sections via callback,
// or hand a complete section to Segment and receive TS packets out.
package psi

import (
	"fmt"

	"github.com/dvbcore/tsengine/ts"
)

// MaxSectionSize is the largest PSI section this packetizer accepts.
const MaxSectionSize = 4096

// SectionCallback receives one fully reassembled and length-validated
// section. The slice is only valid for the duration of the call: it
// aliases the context's internal buffer (reused for the next section) or
// the pushed packet's body, so callers that keep it must copy it.
type SectionCallback func(section []byte)

// Context owns the reassembly state for one PID. It is not safe for
// concurrent use; each PID subscription should own its own Context.
type Context struct {
	PID uint16

	buffer     [MaxSectionSize]byte
	bufferSize int // declared total length of the section in progress
	bufferSkip int // bytes accumulated so far
	lastCC     uint8
	ccValid    bool

	scratch [ts.PacketSize]byte
	segCC   uint8
}

// NewContext creates a reassembly/segmentation context for pid.
func NewContext(pid uint16) *Context {
	return &Context{PID: pid}
}

// Reset discards any in-progress reassembly, as if a discontinuity or
// malformed pointer_field had been observed.
func (c *Context) Reset() {
	c.bufferSize = 0
	c.bufferSkip = 0
	c.ccValid = false
}

// Push feeds one TS packet belonging to this context's PID into the
// reassembler. Every time a complete, length-matching section accumulates,
// cb is invoked with it. Multiple sections may be emitted from a single
// call when they are back-to-back within the same TS packet.
func (c *Context) Push(pkt []byte, cb SectionCallback) error {
	if !ts.HasPayload(pkt) {
		// No payload: CC state is unchanged, nothing to do.
		return nil
	}
	payload := ts.Payload(pkt)
	cc := ts.CC(pkt)

	if ts.PUSI(pkt) {
		return c.pushPUSI(payload, cc, cb)
	}
	return c.pushContinuation(payload, cc, cb)
}

func (c *Context) pushPUSI(payload []byte, cc uint8, cb SectionCallback) error {
	if len(payload) < 1 {
		c.Reset()
		return fmt.Errorf("psi: empty payload on PUSI packet")
	}
	pointerField := int(payload[0])
	body := payload[1:]
	if pointerField > len(body) {
		c.Reset()
		return fmt.Errorf("psi: pointer_field %d exceeds body size %d", pointerField, len(body))
	}

	if c.bufferSkip > 0 {
		if cc != c.nextCC() {
			c.Reset()
		} else {
			// Complete the section in progress with the first
			// pointerField bytes of this packet.
			c.append(body[:pointerField])
			c.lastCC = cc
			if c.bufferSkip == c.bufferSize && c.bufferSize > 0 {
				cb(c.buffer[:c.bufferSize])
			}
			c.Reset()
		}
	}

	// Extract back-to-back sections starting after the completed one.
	offset := pointerField
	for offset < len(body) {
		if body[offset] == 0xFF {
			break // stuffing terminates the per-TS loop
		}
		if offset+3 > len(body) {
			// Fewer than 3 header bytes remain in this packet; too
			// little to even read a declared length. Drop the
			// trailing bytes rather than crash on a short read.
			return nil
		}
		declared := sectionLength(body[offset:])
		if declared < 4 || declared > MaxSectionSize {
			return fmt.Errorf("psi: invalid section length %d", declared)
		}
		remaining := len(body) - offset
		if declared <= remaining {
			cb(body[offset : offset+declared])
			offset += declared
			continue
		}
		// Section spans into subsequent TS packets.
		c.startSection(body[offset:], cc)
		return nil
	}
	return nil
}

func (c *Context) pushContinuation(payload []byte, cc uint8, cb SectionCallback) error {
	if c.bufferSkip == 0 {
		// No reassembly in progress and no PUSI: nothing to append to.
		return nil
	}
	if cc != c.nextCC() {
		c.Reset()
		return fmt.Errorf("psi: continuity counter discontinuity")
	}
	need := c.bufferSize - c.bufferSkip
	if need <= len(payload) {
		c.append(payload[:need])
		c.lastCC = cc
		cb(c.buffer[:c.bufferSize])
		c.Reset()
		return nil
	}
	c.append(payload)
	c.lastCC = cc
	return nil
}

// startSection begins reassembly with the bytes available in the current
// TS packet. It computes the declared length from the first three bytes
// of data; pushPUSI only calls it once at least 3 header bytes are
// present, so the length is always known here.
func (c *Context) startSection(data []byte, cc uint8) {
	c.bufferSize = sectionLength(data)
	c.bufferSkip = 0
	c.append(data)
	c.lastCC = cc
	c.ccValid = true
}

func (c *Context) append(data []byte) {
	n := copy(c.buffer[c.bufferSkip:], data)
	c.bufferSkip += n
}

func (c *Context) nextCC() uint8 {
	return (c.lastCC + 1) & 0x0F
}

// sectionLength computes 3 + section_length from the first three bytes
// of a section (table_id, then 4 reserved/length bits, then 8 length
// bits).
func sectionLength(data []byte) int {
	return 3 + (int(data[1]&0x0F)<<8 | int(data[2]))
}

// Segment splits a complete section (including its trailing CRC) into
// 188-byte TS packets carrying c.PID, starting continuity counter at
// startCC. PUSI is set only on the first packet; the final packet is
// padded with 0xFF stuffing in the body. No adaptation field is used.
func (c *Context) Segment(section []byte, startCC uint8) ([][]byte, error) {
	if len(section) < 4 || len(section) > MaxSectionSize {
		return nil, fmt.Errorf("psi: section length %d out of bounds", len(section))
	}

	// First TS packet body is [pointer_field=0][section...].
	data := make([]byte, 0, len(section)+1)
	data = append(data, 0x00)
	data = append(data, section...)

	var packets [][]byte
	cc := startCC
	first := true
	for offset := 0; offset < len(data); {
		pkt := make([]byte, ts.PacketSize)
		pkt[0] = ts.SyncByte
		pkt[1] = byte(c.PID >> 8 & 0x1F)
		if first {
			pkt[1] |= 0x40 // PUSI
		}
		pkt[2] = byte(c.PID)
		pkt[3] = 0x10 | (cc & 0x0F) // payload only

		n := copy(pkt[4:], data[offset:])
		if n < ts.PacketSize-4 {
			for i := 4 + n; i < ts.PacketSize; i++ {
				pkt[i] = 0xFF
			}
		}
		packets = append(packets, pkt)
		offset += n
		cc = (cc + 1) & 0x0F
		first = false
	}
	return packets, nil
}

// GetCRC returns the trailing 4-byte CRC of section as a big-endian
// uint32, without validating it.
func GetCRC(section []byte) (uint32, error) {
	if len(section) < 4 {
		return 0, fmt.Errorf("psi: section too short for CRC")
	}
	n := len(section)
	return uint32(section[n-4])<<24 | uint32(section[n-3])<<16 | uint32(section[n-2])<<8 | uint32(section[n-1]), nil
}

// CalcCRC recomputes the MPEG-2 CRC-32 over section minus its trailing 4
// bytes.
func CalcCRC(section []byte) (uint32, error) {
	if len(section) < 4 {
		return 0, fmt.Errorf("psi: section too short for CRC")
	}
	return ts.CRC32(section[:len(section)-4]), nil
}

// VerifyCRC reports whether section's trailing CRC matches CalcCRC.
func VerifyCRC(section []byte) error {
	got, err := GetCRC(section)
	if err != nil {
		return err
	}
	want, err := CalcCRC(section)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("psi: CRC mismatch: section has %#08x, computed %#08x", got, want)
	}
	return nil
}
