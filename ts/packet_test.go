package ts

import "testing"

// makePacket builds a minimal 188-byte TS packet with the given PID,
// continuity counter, and PUSI bit, carrying payload as its payload.
func makePacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, PacketSize)
	buf[0] = SyncByte
	buf[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		buf[1] |= 0x40
	}
	buf[2] = byte(pid)
	buf[3] = 0x10 | (cc & 0x0F) // payload only
	n := copy(buf[4:], payload)
	for i := 4 + n; i < PacketSize; i++ {
		buf[i] = 0xFF
	}
	return buf
}

func TestFieldAccessors(t *testing.T) {
	pkt := makePacket(0x100, 7, true, []byte{0xAB})
	if !Sync(pkt) {
		t.Fatal("expected sync byte")
	}
	if got := PID(pkt); got != 0x100 {
		t.Fatalf("PID = %#x, want 0x100", got)
	}
	if !PUSI(pkt) {
		t.Fatal("expected PUSI set")
	}
	if got := CC(pkt); got != 7 {
		t.Fatalf("CC = %d, want 7", got)
	}
	if !HasPayload(pkt) {
		t.Fatal("expected payload bit set")
	}
	if HasAdaptationField(pkt) {
		t.Fatal("expected no adaptation field")
	}
}

func TestSetCC(t *testing.T) {
	pkt := makePacket(0x100, 3, false, nil)
	SetCC(pkt, 9)
	if got := CC(pkt); got != 9 {
		t.Fatalf("CC after SetCC = %d, want 9", got)
	}
	// Must not disturb adaptation_field_control bits.
	if AFBits(pkt) != AFPayloadOnly {
		t.Fatalf("AFBits changed by SetCC: %#x", AFBits(pkt))
	}
}

func TestAFBitsNoPayload(t *testing.T) {
	pkt := makePacket(0x100, 0, false, nil)
	pkt[3] = 0x20 // adaptation field only, no payload
	if HasPayload(pkt) {
		t.Fatal("af_bits==adaptation-only must report no payload")
	}
}

// buildPCRPacket constructs a TS packet with an adaptation field carrying
// the given 27MHz PCR value.
func buildPCRPacket(pid uint16, cc uint8, pcr uint64) []byte {
	buf := make([]byte, PacketSize)
	buf[0] = SyncByte
	buf[1] = byte(pid >> 8 & 0x1F)
	buf[2] = byte(pid)
	buf[3] = 0x30 | (cc & 0x0F) // adaptation field + payload
	buf[4] = 183               // AF length fills the rest of the packet
	buf[5] = 0x10               // PCR_flag
	base := pcr / 300
	ext := pcr % 300
	buf[6] = byte(base >> 25)
	buf[7] = byte(base >> 17)
	buf[8] = byte(base >> 9)
	buf[9] = byte(base >> 1)
	buf[10] = byte(base<<7) | 0x7E | byte(ext>>8)
	buf[11] = byte(ext)
	for i := 12; i < PacketSize; i++ {
		buf[i] = 0xFF
	}
	return buf
}

func TestPCRRoundTrip(t *testing.T) {
	want := uint64(12345678901)
	pkt := buildPCRPacket(0x20, 0, want)
	if !CheckPCR(pkt) {
		t.Fatal("expected CheckPCR true")
	}
	got, err := PCR(pkt)
	if err != nil {
		t.Fatalf("PCR: %v", err)
	}
	if got != want {
		t.Fatalf("PCR = %d, want %d", got, want)
	}
}

func TestCheckPCRFalseWithoutFlag(t *testing.T) {
	pkt := buildPCRPacket(0x20, 0, 1000)
	pkt[5] &^= 0x10 // clear PCR_flag
	if CheckPCR(pkt) {
		t.Fatal("expected CheckPCR false when PCR_flag clear")
	}
}

func TestNewNullPacket(t *testing.T) {
	pkt := NewNullPacket()
	if PID(pkt) != NullPID {
		t.Fatalf("null packet PID = %#x, want %#x", PID(pkt), NullPID)
	}
	if !Sync(pkt) {
		t.Fatal("expected sync byte on null packet")
	}
}
