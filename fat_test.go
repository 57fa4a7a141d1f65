package ecsfs

import (
	"testing"

	"github.com/boljen/go-bitmap"

	"github.com/arfadev/ecs150fs/blockdev"
)

func TestFATLoadRejectsNonEOCReservedEntry(t *testing.T) {
	dev := blockdev.NewMemory(3)
	scratch := make([]byte, BlockSize)
	entries := make([]uint16, fatEntriesPerBlock)
	entries[0] = 0 // should be eoc
	encodeFATBlock(scratch, entries)
	dev.WriteBlock(scratch, 1)

	var fat fatTable
	fat.fs = &FS{}
	if fr := fat.load(dev, 1, 2); fr != BadImage {
		t.Fatalf("load with entries[0]!=eoc = %v, want BadImage", fr)
	}
}

func TestFATAllocateSkipsReservedEntry(t *testing.T) {
	fat := fatTable{entries: make([]uint16, 3), free: bitmap.New(3), fs: &FS{}}
	fat.entries[0] = eoc
	fat.free.Set(0, true)
	idx, fr := fat.allocate()
	if fr != resultOK || idx == 0 {
		t.Fatalf("allocate() = %d, %v; want a nonzero index", idx, fr)
	}
}

func TestFATAllocateReportsFullWhenExhausted(t *testing.T) {
	fat := fatTable{entries: []uint16{eoc, eoc, eoc}, free: bitmap.New(3), fs: &FS{}}
	fat.free.Set(0, true)
	fat.free.Set(1, true)
	fat.free.Set(2, true)
	if _, fr := fat.allocate(); fr != Full {
		t.Fatalf("allocate() on an exhausted table = %v, want Full", fr)
	}
}

func TestFATSetRejectsReservedIndex(t *testing.T) {
	fat := fatTable{entries: make([]uint16, 3), free: bitmap.New(3), fs: &FS{}}
	if fr := fat.set(0, eoc); fr != BadArg {
		t.Fatalf("set(0, ...) = %v, want BadArg", fr)
	}
}

func TestFATFreeChainDetectsCorruption(t *testing.T) {
	fat := fatTable{entries: []uint16{eoc, 2, 0}, free: bitmap.New(3), fs: &FS{}}
	// entries[1] points at 2, but entries[2] is 0 (unallocated): the chain
	// walked into a block that was never allocated to anything.
	if fr := fat.freeChain(1); fr != Corrupt {
		t.Fatalf("freeChain into an unallocated entry = %v, want Corrupt", fr)
	}
}

func TestFATFreeChainWalksToEOC(t *testing.T) {
	fat := fatTable{entries: []uint16{eoc, 2, eoc}, free: bitmap.New(3), fs: &FS{}}
	if fr := fat.freeChain(1); fr != resultOK {
		t.Fatalf("freeChain: %v", fr)
	}
	if fat.entries[1] != 0 || fat.entries[2] != 0 {
		t.Fatalf("freeChain left entries = %v, want all zero", fat.entries)
	}
}

func TestFATFlushRoundTrips(t *testing.T) {
	dev := blockdev.NewMemory(3)
	fat := fatTable{entries: make([]uint16, 3), fs: &FS{}}
	fat.entries[0] = eoc
	fat.entries[1] = eoc
	if fr := fat.flush(dev, 1); fr != resultOK {
		t.Fatalf("flush: %v", fr)
	}

	var loaded fatTable
	loaded.fs = &FS{}
	if fr := loaded.load(dev, 1, 3); fr != resultOK {
		t.Fatalf("load: %v", fr)
	}
	if loaded.entries[1] != eoc || loaded.entries[2] != 0 {
		t.Fatalf("loaded entries = %v, want [eoc eoc 0]", loaded.entries)
	}
}
