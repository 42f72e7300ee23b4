package pacer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dvbcore/tsengine/ts"
)

func buildPCRPacket(pcr uint64) []byte {
	buf := make([]byte, ts.PacketSize)
	buf[0] = ts.SyncByte
	buf[1] = 0
	buf[2] = 1
	buf[3] = ts.AFAdaptationOnly | 0x00
	buf[4] = 7 // AF length
	buf[5] = 0x10
	base := pcr / 300
	ext := pcr % 300
	buf[6] = byte(base >> 25)
	buf[7] = byte(base >> 17)
	buf[8] = byte(base >> 9)
	buf[9] = byte(base >> 1)
	buf[10] = byte(base<<7) | 0x7E | byte(ext>>8)
	buf[11] = byte(ext)
	return buf
}

func buildPlainPacket(pid uint16, cc uint8) []byte {
	buf := make([]byte, ts.PacketSize)
	buf[0] = ts.SyncByte
	buf[1] = byte(pid >> 8)
	buf[2] = byte(pid)
	buf[3] = ts.AFPayloadOnly | (cc & 0x0F)
	return buf
}

func writeTempTS(t *testing.T, blocks [][][]byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pace-*.ts")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, block := range blocks {
		for _, pkt := range block {
			if _, err := f.Write(pkt); err != nil {
				t.Fatal(err)
			}
		}
	}
	return f.Name()
}

func TestPacerEmitsAllPackets(t *testing.T) {
	block1 := [][]byte{buildPlainPacket(1, 0), buildPlainPacket(1, 1), buildPCRPacket(27_000_000)}

	path := writeTempTS(t, [][][]byte{block1})

	var got int
	p := New(path, "", func(pkt []byte) { got++ })
	if err := p.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	<-ctx.Done()
	<-done

	if got < 3 {
		t.Fatalf("forwarded %d packets, want at least the file's 3", got)
	}
}

func TestPcrDeltaHandlesWraparound(t *testing.T) {
	const pcrMax = uint64(1) << 42
	got := pcrDelta(pcrMax-10, 5)
	if got != 15 {
		t.Fatalf("pcrDelta across wraparound = %d, want 15", got)
	}
	got = pcrDelta(100, 200)
	if got != 100 {
		t.Fatalf("pcrDelta = %d, want 100", got)
	}
}

func TestReopenFromStartResetsSkip(t *testing.T) {
	block := [][]byte{buildPlainPacket(1, 0)}
	path := writeTempTS(t, [][][]byte{block})

	p := New(path, "", func([]byte) {})
	if err := p.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.readPacket(); err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if err := p.reopenFromStart(); err != nil {
		t.Fatalf("reopenFromStart: %v", err)
	}
	if p.skip != 0 {
		t.Fatalf("skip = %d, want 0 after reopen", p.skip)
	}
}
