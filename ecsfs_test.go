package ecsfs

import (
	"testing"

	"github.com/arfadev/ecs150fs/blockdev"
)

// formatMemory lays out a minimal valid image directly on an in-memory
// device, bypassing Format, so tests can pick exact small data-block counts
// (well below a single FAT block) without going through partition-table
// bookkeeping Format handles for on-disk images.
func formatMemory(t *testing.T, dataBlocks int) *blockdev.Memory {
	t.Helper()
	fatBlocks := (dataBlocks + fatEntriesPerBlock - 1) / fatEntriesPerBlock
	if fatBlocks == 0 {
		fatBlocks = 1
	}
	total := int64(1 + fatBlocks + 1 + dataBlocks)
	dev := blockdev.NewMemory(total)

	sb := superblockView{data: make([]byte, BlockSize)}
	sb.SetSignature(signature)
	sb.SetTotalBlocks(uint16(total))
	sb.SetFATBlockCount(uint8(fatBlocks))
	sb.SetRootDirBlock(uint16(1 + fatBlocks))
	sb.SetDataStartBlock(uint16(2 + fatBlocks))
	sb.SetDataBlockCount(uint16(dataBlocks))
	if err := dev.WriteBlock(sb.data, 0); err != nil {
		t.Fatalf("write superblock: %v", err)
	}

	entries := make([]uint16, fatEntriesPerBlock)
	entries[0] = eoc
	scratch := make([]byte, BlockSize)
	encodeFATBlock(scratch, entries)
	if err := dev.WriteBlock(scratch, 1); err != nil {
		t.Fatalf("write fat block 0: %v", err)
	}
	clear(scratch)
	for i := 1; i < fatBlocks; i++ {
		if err := dev.WriteBlock(scratch, int64(1+i)); err != nil {
			t.Fatalf("write fat block %d: %v", i, err)
		}
	}

	clear(scratch)
	if err := dev.WriteBlock(scratch, int64(sb.RootDirBlock())); err != nil {
		t.Fatalf("write root dir: %v", err)
	}
	return dev
}

func mustMount(t *testing.T, dev BlockDevice) *FS {
	t.Helper()
	var fsys FS
	if err := fsys.Mount(dev); err != nil {
		t.Fatalf("mount: %v", err)
	}
	return &fsys
}

func TestMountRejectsBadSignature(t *testing.T) {
	dev := blockdev.NewMemory(4)
	var fsys FS
	if err := fsys.Mount(dev); err == nil {
		t.Fatal("expected mount of an unformatted device to fail")
	}
}

func TestMountRejectsBlockCountMismatch(t *testing.T) {
	dev := formatMemory(t, 4)
	sb := superblockView{data: make([]byte, BlockSize)}
	dev.ReadBlock(sb.data, 0)
	sb.SetTotalBlocks(sb.TotalBlocks() + 1)
	dev.WriteBlock(sb.data, 0)

	var fsys FS
	if err := fsys.Mount(dev); err == nil {
		t.Fatal("expected mount to reject a total-blocks mismatch")
	}
}

func TestMountTwiceFails(t *testing.T) {
	dev := formatMemory(t, 4)
	fsys := mustMount(t, dev)
	if err := fsys.Mount(dev); err == nil {
		t.Fatal("expected a second Mount on an already-mounted FS to fail")
	}
}

func TestUmountRequiresNoOpenFiles(t *testing.T) {
	dev := formatMemory(t, 4)
	fsys := mustMount(t, dev)
	if err := fsys.Create("a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	fp, err := fsys.OpenFile("a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := fsys.Umount(); err == nil {
		t.Fatal("expected umount to fail with a file still open")
	}
	if err := fp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := fsys.Umount(); err != nil {
		t.Fatalf("umount after close: %v", err)
	}
}
