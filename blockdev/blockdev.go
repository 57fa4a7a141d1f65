// Package blockdev provides BlockDevice implementations for package ecsfs: a
// file-backed device enforcing single-mounter semantics with an OS advisory
// lock, an optional MBR/GPT partition offset, and an in-memory device for
// tests.
package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/arfadev/ecs150fs/internal/gpt"
	"github.com/arfadev/ecs150fs/internal/mbr"
)

// BlockSize is the fixed block size every File and Memory device speaks.
// It must match ecsfs.BlockSize.
const BlockSize = 4096

// File is a BlockDevice backed by a regular file or block special file on
// disk. Opening one takes an exclusive, non-blocking advisory lock on the
// underlying file descriptor for the lifetime of the device, so a second
// process attempting to mount the same image observes ErrLocked instead of
// silently corrupting it.
type File struct {
	f      *os.File
	base   int64 // LBA offset of block 0, past any partition table
	blocks int64
}

// ErrLocked is returned by Open when another process already holds the
// device's advisory lock.
var ErrLocked = errors.New("blockdev: device already locked by another process")

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	partType string // "", "mbr" or "gpt"
}

// WithMBRPartition tells Open to look for an MBR partition of type
// mbr.PartitionTypeECS150FS and present only that region as the device,
// rather than the whole file.
func WithMBRPartition() Option {
	return func(c *openConfig) { c.partType = "mbr" }
}

// WithGPTPartition tells Open to look for a GPT partition of type
// gpt.PartitionTypeECS150FS and present only that region as the device.
func WithGPTPartition() Option {
	return func(c *openConfig) { c.partType = "gpt" }
}

// Open opens path for reading and writing as a block device. Without a
// partition option BlockCount is the file size in whole blocks; with one it
// is the size of the partition found.
func Open(path string, opts ...Option) (*File, error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("blockdev: flock: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("blockdev: stat: %w", err)
	}

	base, count, err := locatePartition(f, fi.Size(), cfg.partType)
	if err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, err
	}

	return &File{f: f, base: base, blocks: count}, nil
}

func locatePartition(f *os.File, size int64, partType string) (base, blocks int64, err error) {
	total := size / BlockSize
	switch partType {
	case "":
		return 0, total, nil
	case "mbr":
		buf := make([]byte, 512)
		if _, err := f.ReadAt(buf, 0); err != nil {
			return 0, 0, fmt.Errorf("blockdev: read mbr: %w", err)
		}
		bs, err := mbr.ToBootSector(buf)
		if err != nil {
			return 0, 0, fmt.Errorf("blockdev: %w", err)
		}
		if !bs.Valid() {
			return 0, 0, fmt.Errorf("blockdev: no valid MBR at block 0")
		}
		_, startLBA, numLBA, ok := bs.FindPartition(mbr.PartitionTypeECS150FS)
		if !ok {
			return 0, 0, fmt.Errorf("blockdev: no ECS150FS partition in MBR")
		}
		return int64(startLBA), int64(numLBA), nil
	case "gpt":
		hdrBuf := make([]byte, 92)
		if _, err := f.ReadAt(hdrBuf, BlockSize); err != nil {
			return 0, 0, fmt.Errorf("blockdev: read gpt header: %w", err)
		}
		h, err := gpt.ToHeader(hdrBuf)
		if err != nil {
			return 0, 0, fmt.Errorf("blockdev: %w", err)
		}
		entrySize := int64(h.SizeOfPartitionEntry())
		n := int64(h.NumberOfPartitionEntries())
		entries := make([]byte, n*entrySize)
		if _, err := f.ReadAt(entries, h.PartitionEntryLBA()*BlockSize); err != nil {
			return 0, 0, fmt.Errorf("blockdev: read gpt partition table: %w", err)
		}
		_, pe, ok := h.FindPartition(entries, gpt.PartitionTypeECS150FS)
		if !ok {
			return 0, 0, fmt.Errorf("blockdev: no ECS150FS partition in GPT")
		}
		return pe.FirstLBA(), pe.LastLBA() - pe.FirstLBA() + 1, nil
	default:
		return 0, 0, fmt.Errorf("blockdev: unknown partition scheme %q", partType)
	}
}

func (d *File) checkIndex(index int64) error {
	if index < 0 || index >= d.blocks {
		return fmt.Errorf("blockdev: block index %d out of range [0,%d)", index, d.blocks)
	}
	return nil
}

// ReadBlock reads the block at index into dst, which must be BlockSize
// bytes long.
func (d *File) ReadBlock(dst []byte, index int64) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	off := (d.base + index) * BlockSize
	n, err := d.f.ReadAt(dst[:BlockSize], off)
	if err != nil && !(err == io.EOF && n == BlockSize) {
		return fmt.Errorf("blockdev: read block %d: %w", index, err)
	}
	return nil
}

// WriteBlock writes BlockSize bytes from data to the block at index.
func (d *File) WriteBlock(data []byte, index int64) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	off := (d.base + index) * BlockSize
	if _, err := d.f.WriteAt(data[:BlockSize], off); err != nil {
		return fmt.Errorf("blockdev: write block %d: %w", index, err)
	}
	return nil
}

// BlockCount returns the number of blocks presented by the device, which is
// the partition size when a partition scheme was given to Open, or the
// whole file size otherwise.
func (d *File) BlockCount() int64 { return d.blocks }

// Close syncs the file, releases the advisory lock and closes the
// descriptor.
func (d *File) Close() error {
	syncErr := d.f.Sync()
	unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	closeErr := d.f.Close()
	if syncErr != nil {
		return fmt.Errorf("blockdev: sync: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("blockdev: close: %w", closeErr)
	}
	return nil
}

// Memory is an in-memory BlockDevice, useful for tests and for building an
// image before writing it out with Format.
type Memory struct {
	data   []byte
	blocks int64
	closed bool
}

// NewMemory allocates a zeroed in-memory device of the given block count.
func NewMemory(blocks int64) *Memory {
	return &Memory{data: make([]byte, blocks*BlockSize), blocks: blocks}
}

func (m *Memory) checkIndex(index int64) error {
	if m.closed {
		return fmt.Errorf("blockdev: device closed")
	}
	if index < 0 || index >= m.blocks {
		return fmt.Errorf("blockdev: block index %d out of range [0,%d)", index, m.blocks)
	}
	return nil
}

func (m *Memory) ReadBlock(dst []byte, index int64) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	copy(dst[:BlockSize], m.data[index*BlockSize:(index+1)*BlockSize])
	return nil
}

func (m *Memory) WriteBlock(data []byte, index int64) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	copy(m.data[index*BlockSize:(index+1)*BlockSize], data[:BlockSize])
	return nil
}

func (m *Memory) BlockCount() int64 { return m.blocks }

func (m *Memory) Close() error {
	m.closed = true
	return nil
}
