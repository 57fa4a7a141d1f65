package ecsfs

import (
	"testing"

	"github.com/arfadev/ecs150fs/blockdev"
)

func TestFormatBareProducesMountableImage(t *testing.T) {
	dev := blockdev.NewMemory(20)
	if err := Format(dev, 20, FormatConfig{}); err != nil {
		t.Fatalf("format: %v", err)
	}
	var fsys FS
	if err := fsys.Mount(dev); err != nil {
		t.Fatalf("mount formatted image: %v", err)
	}
	info, err := fsys.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.TotalBlocks != 20 {
		t.Fatalf("TotalBlocks = %d, want 20", info.TotalBlocks)
	}
}

func TestFormatRejectsOversizedRequest(t *testing.T) {
	dev := blockdev.NewMemory(4)
	if err := Format(dev, 20, FormatConfig{}); err == nil {
		t.Fatal("expected formatting more blocks than the device has to fail")
	}
}

func TestFormatMBRReservesOneBlock(t *testing.T) {
	dev := blockdev.NewMemory(24)
	if err := Format(dev, 20, FormatConfig{Scheme: SchemeMBR}); err != nil {
		t.Fatalf("format: %v", err)
	}
	raw := make([]byte, BlockSize)
	if err := dev.ReadBlock(raw, 1); err != nil {
		t.Fatalf("read superblock: %v", err)
	}
	sb := superblockView{data: raw}
	if sb.Signature() != signature {
		t.Fatal("expected the filesystem image to start at block 1, after the MBR")
	}
}

func TestFormatGPTReservesThreeBlocks(t *testing.T) {
	dev := blockdev.NewMemory(26)
	if err := Format(dev, 20, FormatConfig{Scheme: SchemeGPT}); err != nil {
		t.Fatalf("format: %v", err)
	}
	raw := make([]byte, BlockSize)
	if err := dev.ReadBlock(raw, 3); err != nil {
		t.Fatalf("read superblock: %v", err)
	}
	sb := superblockView{data: raw}
	if sb.Signature() != signature {
		t.Fatal("expected the filesystem image to start at block 3, after the protective MBR and GPT tables")
	}
}
