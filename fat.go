package ecsfs

import (
	"encoding/binary"
	"log/slog"

	"github.com/boljen/go-bitmap"
)

// fatTable is the FAT Manager. It holds the entire allocation table in
// memory for the lifetime of the mount: data_blocks is bounded by a uint16,
// so unlike the reference FAT32 driver (which windows a single sector at a
// time to fit tinygo's memory budget) there is no reason not to hold the
// whole thing and save a disk round trip on every chain hop.
//
// free mirrors entries as a bitmap purely as a query accelerant (§3.1):
// entries remains the single structure that gets flushed to disk.
type fatTable struct {
	entries []uint16
	free    bitmap.Bitmap
	fs      *FS
}

func (t *fatTable) dataBlocks() int { return len(t.entries) }

// load reads fatBlocks consecutive blocks starting at block 1 into entries,
// handling the final partial block (when dataBlocks isn't a multiple of
// fatEntriesPerBlock) through a scratch buffer so only the live entries are
// copied out.
func (t *fatTable) load(dev BlockDevice, fatBlocks int, dataBlocks int) Result {
	t.fs.trace("fat:load", slog.Int("fatBlocks", fatBlocks), slog.Int("dataBlocks", dataBlocks))
	t.entries = make([]uint16, dataBlocks)
	t.free = bitmap.New(dataBlocks)

	scratch := make([]byte, BlockSize)
	fullBlocks := dataBlocks / fatEntriesPerBlock
	tailEntries := dataBlocks % fatEntriesPerBlock

	for i := 0; i < fatBlocks; i++ {
		last := i == fatBlocks-1 && tailEntries != 0
		if !last {
			if err := dev.ReadBlock(scratch, int64(1+i)); err != nil {
				t.fs.logerror("fat:load", slog.Any("err", err))
				return IoError
			}
			decodeFATBlock(t.entries[i*fatEntriesPerBlock:(i+1)*fatEntriesPerBlock], scratch)
			continue
		}
		if err := dev.ReadBlock(scratch, int64(1+i)); err != nil {
			t.fs.logerror("fat:load", slog.Any("err", err))
			return IoError
		}
		decodeFATBlock(t.entries[i*fatEntriesPerBlock:i*fatEntriesPerBlock+tailEntries], scratch)
	}

	for i, v := range t.entries {
		if v != 0 {
			t.free.Set(i, true)
		}
	}
	if dataBlocks > 0 && t.entries[0] != eoc {
		return BadImage
	}
	return resultOK
}

func decodeFATBlock(dst []uint16, block []byte) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint16(block[i*2:])
	}
}

func encodeFATBlock(block []byte, src []uint16) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(block[i*2:], v)
	}
}

// flush mirrors load: full blocks are written directly, the final partial
// block is zero-padded in a scratch buffer before being written so the
// unused tail of the last FAT block is always zero on disk.
func (t *fatTable) flush(dev BlockDevice, fatBlocks int) Result {
	t.fs.trace("fat:flush", slog.Int("fatBlocks", fatBlocks))
	dataBlocks := len(t.entries)
	tailEntries := dataBlocks % fatEntriesPerBlock
	scratch := make([]byte, BlockSize)

	for i := 0; i < fatBlocks; i++ {
		last := i == fatBlocks-1 && tailEntries != 0
		if !last {
			encodeFATBlock(scratch, t.entries[i*fatEntriesPerBlock:(i+1)*fatEntriesPerBlock])
		} else {
			clear(scratch)
			encodeFATBlock(scratch, t.entries[i*fatEntriesPerBlock:i*fatEntriesPerBlock+tailEntries])
		}
		if err := dev.WriteBlock(scratch, int64(1+i)); err != nil {
			t.fs.logerror("fat:flush", slog.Any("err", err))
			return IoError
		}
	}
	return resultOK
}

// allocate finds the lowest-indexed free entry without marking it; the
// caller decides whether to terminate or extend the chain. It scans free
// byte by byte so a fully-occupied byte (0xFF, all 8 entries taken) is
// skipped without probing individual bits.
func (t *fatTable) allocate() (int, Result) {
	nBytes := (len(t.entries) + 7) / 8
	for b := 0; b < nBytes; b++ {
		if b < len(t.free) && t.free[b] == 0xFF {
			continue
		}
		base := b * 8
		for i := base; i < base+8 && i < len(t.entries); i++ {
			if i == 0 {
				continue
			}
			if !t.free.Get(i) {
				return i, resultOK
			}
		}
	}
	return -1, Full
}

func (t *fatTable) next(i int) uint16 {
	return t.entries[i]
}

func (t *fatTable) set(i int, v uint16) Result {
	if i == 0 {
		return BadArg
	}
	t.entries[i] = v
	t.free.Set(i, v != 0)
	return resultOK
}

// freeChain walks from head, zeroing every entry until EOC. A head of EOC
// is a no-op (empty file).
func (t *fatTable) freeChain(head uint16) Result {
	t.fs.trace("fat:freeChain", slog.Uint64("head", uint64(head)))
	cur := head
	for cur != eoc {
		if int(cur) <= 0 || int(cur) >= len(t.entries) {
			return Corrupt
		}
		next := t.entries[cur]
		t.entries[cur] = 0
		t.free.Set(int(cur), false)
		if next == 0 {
			return Corrupt
		}
		cur = next
	}
	return resultOK
}

// freeCount returns the number of free entries, excluding the reserved
// entry 0. Like allocate, it skips any fully-occupied byte of free in one
// comparison instead of checking its 8 entries individually.
func (t *fatTable) freeCount() int {
	n := 0
	nBytes := (len(t.entries) + 7) / 8
	for b := 0; b < nBytes; b++ {
		if b < len(t.free) && t.free[b] == 0xFF {
			continue
		}
		base := b * 8
		for i := base; i < base+8 && i < len(t.entries); i++ {
			if i == 0 {
				continue
			}
			if !t.free.Get(i) {
				n++
			}
		}
	}
	return n
}
