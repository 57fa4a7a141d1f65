package ecsfs

import (
	"encoding/binary"

	"github.com/arfadev/ecs150fs/internal/gpt"
	"github.com/arfadev/ecs150fs/internal/mbr"
)

// PartitionScheme selects how Format wraps the filesystem image on the
// underlying device: written bare, behind an MBR partition table, or
// behind a GPT partition table and its protective MBR.
type PartitionScheme int

const (
	// SchemeNone formats the whole device as a single filesystem image,
	// starting at block 0. This is the layout Mount expects by default.
	SchemeNone PartitionScheme = iota
	// SchemeMBR writes a Master Boot Record at block 0 with a single
	// primary partition of type PartitionTypeECS150FS covering the image.
	SchemeMBR
	// SchemeGPT writes a protective MBR followed by a GPT header and
	// partition table entry of type PartitionTypeECS150FS covering the
	// image.
	SchemeGPT
)

// FormatConfig controls the layout Format lays down.
type FormatConfig struct {
	// Scheme selects whether and how the image is wrapped in a partition
	// table. Defaults to SchemeNone.
	Scheme PartitionScheme
	// DiskGUID is used for the GPT disk and partition unique GUIDs when
	// Scheme is SchemeGPT. If zero, an all-zero GUID is written; callers
	// that care about GPT tooling recognizing a stable disk identity
	// should supply one.
	DiskGUID [16]byte
}

// ReservedBlocks returns how many leading blocks of a device Format must
// leave untouched for the partition table before the filesystem image
// itself begins under the given scheme. Callers sizing a device or image
// file ahead of calling Format use this to leave enough room.
func ReservedBlocks(scheme PartitionScheme) int64 {
	return reservedBlocksForScheme(scheme)
}

func reservedBlocksForScheme(scheme PartitionScheme) int64 {
	switch scheme {
	case SchemeMBR:
		return 1
	case SchemeGPT:
		// protective MBR + primary GPT header&table + mirror at the end
		// of the reserved region is skipped here: only the leading
		// reservation matters for where the filesystem image starts.
		return 3
	default:
		return 0
	}
}

// Format writes a fresh, empty ECS150FS image to dev: a superblock, a FAT
// whose only non-zero entry is the reserved EOC entry 0, and a zeroed root
// directory. blockCount is the total
// number of blocks dev exposes for the filesystem image itself, not
// including any partition-table overhead reservedBlocksForScheme adds.
//
// Mirrors the reference implementation's mkfs-style layout computation
// (1 superblock + fatBlocks + 1 root dir block + dataBlocks == total),
// generalized to pick the smallest FAT size that can address blockCount-2
// data blocks.
func Format(dev BlockDevice, blockCount int64, cfg FormatConfig) error {
	if dev == nil || blockCount < 3 {
		return wrap("format", BadArg)
	}
	reserved := reservedBlocksForScheme(cfg.Scheme)
	if dev.BlockCount() < reserved+blockCount {
		return wrap("format", BadArg)
	}

	dataBlocks := blockCount - 2
	for {
		fatBlocks := (int(dataBlocks) + fatEntriesPerBlock - 1) / fatEntriesPerBlock
		if int64(fatBlocks)+2+dataBlocks == blockCount {
			break
		}
		dataBlocks--
		if dataBlocks <= 0 {
			return wrap("format", BadArg)
		}
	}
	fatBlocks := (int(dataBlocks) + fatEntriesPerBlock - 1) / fatEntriesPerBlock
	if fatBlocks > 255 || blockCount > 0xFFFF {
		return wrap("format", BadArg)
	}

	switch cfg.Scheme {
	case SchemeMBR:
		if err := writeMBR(dev, reserved, blockCount); err != nil {
			return wrap("format", IoError)
		}
	case SchemeGPT:
		if err := writeGPT(dev, reserved, blockCount, cfg.DiskGUID); err != nil {
			return wrap("format", IoError)
		}
	}

	base := reserved
	sb := superblockView{data: make([]byte, BlockSize)}
	sb.SetSignature(signature)
	sb.SetTotalBlocks(uint16(blockCount))
	sb.SetFATBlockCount(uint8(fatBlocks))
	sb.SetRootDirBlock(uint16(1 + fatBlocks))
	sb.SetDataStartBlock(uint16(2 + fatBlocks))
	sb.SetDataBlockCount(uint16(dataBlocks))
	if err := dev.WriteBlock(sb.data, base+0); err != nil {
		return wrap("format", IoError)
	}

	scratch := make([]byte, BlockSize)
	entries := make([]uint16, fatEntriesPerBlock)
	entries[0] = eoc // block 0 of entry 0's block is the reserved entry
	encodeFATBlock(scratch, entries)
	if err := dev.WriteBlock(scratch, base+1); err != nil {
		return wrap("format", IoError)
	}
	clear(scratch)
	for i := 1; i < fatBlocks; i++ {
		if err := dev.WriteBlock(scratch, base+1+int64(i)); err != nil {
			return wrap("format", IoError)
		}
	}

	clear(scratch)
	if err := dev.WriteBlock(scratch, base+int64(sb.RootDirBlock())); err != nil {
		return wrap("format", IoError)
	}
	return nil
}

func writeMBR(dev BlockDevice, reserved, blockCount int64) error {
	buf := make([]byte, 512)
	bs, err := mbr.ToBootSector(buf)
	if err != nil {
		return err
	}
	pte := mbr.MakePTE(0, mbr.PartitionTypeECS150FS, uint32(reserved), uint32(blockCount), 0, 0)
	bs.SetPartitionTable(0, pte)
	binary.LittleEndian.PutUint16(buf[510:512], mbr.BootSignature)
	return dev.WriteBlock(padTo(buf, BlockSize), 0)
}

func writeGPT(dev BlockDevice, reserved, blockCount int64, diskGUID [16]byte) error {
	// Block 0: protective MBR, a single entry covering the whole disk.
	mbrBuf := make([]byte, 512)
	bs, err := mbr.ToBootSector(mbrBuf)
	if err != nil {
		return err
	}
	pte := mbr.MakePTE(0, mbr.PartitionTypeGPTProtective, 1, uint32(reserved+blockCount-1), 0, 0)
	bs.SetPartitionTable(0, pte)
	binary.LittleEndian.PutUint16(mbrBuf[510:512], mbr.BootSignature)
	if err := dev.WriteBlock(padTo(mbrBuf, BlockSize), 0); err != nil {
		return err
	}

	// Block 1: GPT header. Block 2: partition table (1 entry used).
	hdrBuf := make([]byte, 92)
	binary.LittleEndian.PutUint64(hdrBuf[0:8], gptSignature)
	h, err := gpt.ToHeader(hdrBuf)
	if err != nil {
		return err
	}
	h.SetSize(92)
	h.SetCurrentLBA(1)
	h.SetBackupLBA(reserved + blockCount - 1)
	h.SetFirstUsableLBA(reserved)
	h.SetLastUsableLBA(reserved + blockCount - 1)
	h.SetDiskGUID(diskGUID)
	h.SetPartitionEntryLBA(2)
	h.SetNumberOfPartitionEntries(1)
	h.SetSizeOfPartitionEntry(128)

	entryBuf := make([]byte, 128)
	pe, err := gpt.ToPartitionEntry(entryBuf)
	if err != nil {
		return err
	}
	pe.SetPartitionTypeGUID(gpt.PartitionTypeECS150FS)
	pe.SetUniquePartitionGUID(diskGUID)
	pe.SetFirstLBA(reserved)
	pe.SetLastLBA(reserved + blockCount - 1)
	if err := pe.WriteName("ECS150FS"); err != nil {
		return err
	}

	if err := dev.WriteBlock(padTo(hdrBuf, BlockSize), 1); err != nil {
		return err
	}
	if err := dev.WriteBlock(padTo(entryBuf, BlockSize), 2); err != nil {
		return err
	}
	return nil
}

const gptSignature uint64 = 0x5452415020494645 // "EFI PART" little-endian

func padTo(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}
