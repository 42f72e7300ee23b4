package pes

import (
	"bytes"
	"testing"

	"github.com/dvbcore/tsengine/ts"
)

// buildPES constructs a minimal PES packet (no optional header) with
// esLen bytes of elementary stream data, for a total length of 6+esLen.
func buildPES(streamID byte, esLen int) []byte {
	buf := make([]byte, 6+esLen)
	buf[0], buf[1], buf[2] = 0x00, 0x00, 0x01
	buf[3] = streamID
	buf[4] = byte(esLen >> 8)
	buf[5] = byte(esLen)
	for i := 0; i < esLen; i++ {
		buf[6+i] = byte(i)
	}
	return buf
}

func makeTSPacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, ts.PacketSize)
	buf[0] = ts.SyncByte
	buf[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		buf[1] |= 0x40
	}
	buf[2] = byte(pid)
	buf[3] = 0x10 | (cc & 0x0F)
	n := copy(buf[4:], payload)
	for i := 4 + n; i < ts.PacketSize; i++ {
		buf[i] = 0xFF
	}
	return buf
}

func TestSegmentRoundTripSinglePacket(t *testing.T) {
	packet := buildPES(0xE0, 100)
	c := NewContext(0x100)
	packets, err := c.Segment(packet, 0)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}

	var got []byte
	rc := NewContext(0x100)
	for _, pkt := range packets {
		if err := rc.Push(pkt, func(p []byte) { got = append([]byte{}, p...) }); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if !bytes.Equal(got, packet) {
		t.Fatalf("round-trip mismatch:\n got  %x\n want %x", got, packet)
	}
}

// TestScenario2 covers a PES with 400 bytes of elementary stream data,
// PID 0x100, CC starting at 7, and checks that the final packet is padded
// with a stuffing adaptation field.
func TestScenario2(t *testing.T) {
	packet := buildPES(0xE0, 400) // total length 406
	c := NewContext(0x100)
	packets, err := c.Segment(packet, 7)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("expected 3 TS packets, got %d", len(packets))
	}

	wantCC := []uint8{7, 8, 9}
	for i, pkt := range packets {
		if ts.PID(pkt) != 0x100 {
			t.Fatalf("packet %d: PID = %#x, want 0x100", i, ts.PID(pkt))
		}
		if ts.CC(pkt) != wantCC[i] {
			t.Fatalf("packet %d: CC = %d, want %d", i, ts.CC(pkt), wantCC[i])
		}
		wantPUSI := i == 0
		if ts.PUSI(pkt) != wantPUSI {
			t.Fatalf("packet %d: PUSI = %v, want %v", i, ts.PUSI(pkt), wantPUSI)
		}
	}

	last := packets[2]
	if !ts.HasAdaptationField(last) {
		t.Fatal("final packet must carry an adaptation field for padding")
	}
	afLen := int(last[4])
	wantAFSize := 188 - (6 + 400 - 2*184) - 4
	if afLen != wantAFSize-1 {
		t.Fatalf("adaptation field length byte = %d, want %d", afLen, wantAFSize-1)
	}

	var got []byte
	rc := NewContext(0x100)
	for _, pkt := range packets {
		if err := rc.Push(pkt, func(p []byte) { got = append([]byte{}, p...) }); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if !bytes.Equal(got, packet) {
		t.Fatal("scenario 2 round-trip mismatch")
	}
}

func TestRejectZeroLength(t *testing.T) {
	packet := buildPES(0xE0, 0)
	packet = packet[:6] // declared length already forces total==6
	c := NewContext(0x100)
	if err := c.Push(makeTSPacket(0x100, 0, true, packet), func([]byte) {
		t.Fatal("zero-length PES must not reassemble")
	}); err == nil {
		t.Fatal("expected rejection of PES_packet_length == 0")
	}
}

func TestMaxPacketSizeBoundary(t *testing.T) {
	c := NewContext(0x100)
	packet := buildPES(0xE0, 0xFFFF)
	if _, err := c.Segment(packet, 0); err != nil {
		t.Fatalf("maximum-size PES must segment: %v", err)
	}

	tooBig := append(packet, 0x00)
	if _, err := c.Segment(tooBig, 0); err == nil {
		t.Fatal("PES longer than 65541 bytes must be rejected")
	}
}

func TestBuilderRoundTrip(t *testing.T) {
	b := NewBuilder(0xE0, 0, false)
	b.Append([]byte{1, 2, 3, 4, 5})
	b.Append([]byte{6, 7, 8})
	out := b.Bytes()

	c := NewContext(0x200)
	packets, err := c.Segment(out, 0)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	var got []byte
	rc := NewContext(0x200)
	for _, pkt := range packets {
		rc.Push(pkt, func(p []byte) { got = append([]byte{}, p...) })
	}
	if !bytes.Equal(got, out) {
		t.Fatal("builder round-trip mismatch")
	}
	if got[len(got)-3] != 6 {
		t.Fatalf("payload not appended in order: %v", got[6:])
	}
}

func TestBuilderPTSFlag(t *testing.T) {
	b := NewBuilder(0xE0, 90000, true)
	b.Append([]byte{0xAA})
	out := b.Bytes()
	if out[7]&0x80 == 0 {
		t.Fatal("PTS flag bit not set in byte 7")
	}
	if len(out) != 6+3+5+1 {
		t.Fatalf("unexpected built length %d", len(out))
	}
}

func TestCCDiscontinuityAbortsReassembly(t *testing.T) {
	packet := buildPES(0xE0, 400)
	c := NewContext(0x50)
	packets, _ := c.Segment(packet, 0)

	rc := NewContext(0x50)
	if err := rc.Push(packets[0], func([]byte) {}); err != nil {
		t.Fatalf("Push(0): %v", err)
	}
	corrupt := append([]byte{}, packets[1]...)
	ts.SetCC(corrupt, (ts.CC(corrupt)+1)&0x0F)
	if err := rc.Push(corrupt, func([]byte) {
		t.Fatal("must not emit after a CC discontinuity")
	}); err == nil {
		t.Fatal("expected a CC discontinuity error")
	}
}

func FuzzSegmentReassemble(f *testing.F) {
	f.Add(uint16(0x100), uint8(7), 1)
	f.Add(uint16(0x100), uint8(7), 400)
	f.Add(uint16(0x44), uint8(0), 0xFFFF)
	f.Fuzz(func(t *testing.T, pid uint16, startCC uint8, esLen int) {
		pid &= 0x1FFF
		if esLen < 1 {
			esLen = 1
		}
		if esLen > 0xFFFF {
			esLen = 0xFFFF
		}
		packet := buildPES(0xE0, esLen)
		c := NewContext(pid)
		packets, err := c.Segment(packet, startCC)
		if err != nil {
			t.Fatalf("Segment: %v", err)
		}
		var got []byte
		rc := NewContext(pid)
		for _, pkt := range packets {
			if err := rc.Push(pkt, func(p []byte) { got = append([]byte{}, p...) }); err != nil {
				t.Fatalf("Push: %v", err)
			}
		}
		if !bytes.Equal(got, packet) {
			t.Fatalf("round-trip mismatch for esLen %d", esLen)
		}
	})
}
