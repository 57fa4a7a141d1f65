package ecsfs

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"
)

// BlockDevice is the external collaborator this library builds on: fixed
// size block I/O against a named backing store. A concrete file-backed and
// an in-memory implementation live in package blockdev.
type BlockDevice interface {
	ReadBlock(dst []byte, index int64) error
	WriteBlock(data []byte, index int64) error
	BlockCount() int64
	Close() error
}

// FS is a mounted session: the single process-wide value that owns the
// superblock, FAT, root directory and descriptor table from Mount until
// Umount, mirroring the reference driver's single *FS-as-mounted-context
// idiom rather than a package-level global.
type FS struct {
	device BlockDevice
	sb     superblockView
	fat    fatTable
	dir    rootDir
	fds    fdTable

	fatBlocks int
	id        uint32 // mount generation; bumped on every Mount to invalidate stale *File handles

	dirDirty bool

	log *slog.Logger
}

// Info summarizes the mounted filesystem for informational display.
type Info struct {
	TotalBlocks    uint16
	FATBlocks      uint8
	RootDirBlock   uint16
	DataStartBlock uint16
	DataBlockCount uint16
	FreeFATEntries int
	FreeDirSlots   int
}

// DirEntry describes one non-empty root directory slot, for Ls.
type DirEntry struct {
	Name       string
	Size       uint32
	FirstBlock uint16
}

const slogLevelTrace = slog.LevelDebug - 2

func (fsys *FS) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if fsys.log != nil {
		fsys.log.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

func (fsys *FS) trace(msg string, attrs ...slog.Attr)    { fsys.logattrs(slogLevelTrace, msg, attrs...) }
func (fsys *FS) debug(msg string, attrs ...slog.Attr)    { fsys.logattrs(slog.LevelDebug, msg, attrs...) }
func (fsys *FS) warn(msg string, attrs ...slog.Attr)     { fsys.logattrs(slog.LevelWarn, msg, attrs...) }
func (fsys *FS) logerror(msg string, attrs ...slog.Attr) { fsys.logattrs(slog.LevelError, msg, attrs...) }

// SetLogger attaches a structured logger. A nil logger (the default)
// silences all tracing.
func (fsys *FS) SetLogger(log *slog.Logger) { fsys.log = log }

func (fsys *FS) mounted() bool { return fsys.device != nil }

// mount loads and validates the superblock, FAT and root directory from dev.
// It is the internal worker behind the exported Mount in exported.go.
func (fsys *FS) mount(dev BlockDevice) Result {
	fsys.trace("fs:mount")
	if dev == nil {
		return BadArg
	}
	raw := make([]byte, BlockSize)
	if err := dev.ReadBlock(raw, 0); err != nil {
		fsys.logerror("fs:mount read superblock", slog.Any("err", err))
		return IoError
	}
	sb := superblockView{data: raw}
	if fr := sb.validate(dev.BlockCount()); fr != resultOK {
		fsys.warn("fs:mount bad superblock")
		return fr
	}

	fatBlocks := int(sb.FATBlockCount())
	dataBlocks := int(sb.DataBlockCount())

	var fat fatTable
	fat.fs = fsys
	if fr := fat.load(dev, fatBlocks, dataBlocks); fr != resultOK {
		fsys.warn("fs:mount bad fat", slog.String("err", fr.Error()))
		return fr
	}

	var dir rootDir
	dir.fs = fsys
	if fr := dir.load(dev, int64(sb.RootDirBlock())); fr != resultOK {
		return fr
	}

	fsys.device = dev
	fsys.sb = sb
	fsys.fat = fat
	fsys.dir = dir
	fsys.fatBlocks = fatBlocks
	fsys.fds.fs = fsys
	fsys.fds.reset()
	fsys.dirDirty = false
	fsys.id++
	fsys.debug("fs:mount ok", slog.Int("dataBlocks", dataBlocks), slog.Int("fatBlocks", fatBlocks))
	return resultOK
}

// umount flushes the FAT and root directory and releases the device. All
// descriptors must be closed first.
func (fsys *FS) umount() error {
	fsys.trace("fs:umount")
	if !fsys.mounted() {
		return NotMounted
	}
	if fsys.fds.anyOpen() {
		return Busy
	}

	var result *multierror.Error
	if fr := fsys.fat.flush(fsys.device, fsys.fatBlocks); fr != resultOK {
		result = multierror.Append(result, fr)
	}
	if fsys.dirDirty {
		if fr := fsys.dir.flush(fsys.device, int64(fsys.sb.RootDirBlock())); fr != resultOK {
			result = multierror.Append(result, fr)
		}
	}
	if err := fsys.device.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	fsys.device = nil
	fsys.sb = superblockView{}
	fsys.fat = fatTable{}
	fsys.dir = rootDir{}
	fsys.fds.reset()
	fsys.dirDirty = false

	return result.ErrorOrNil()
}

func (fsys *FS) info() (Info, Result) {
	if !fsys.mounted() {
		return Info{}, NotMounted
	}
	return Info{
		TotalBlocks:    fsys.sb.TotalBlocks(),
		FATBlocks:      fsys.sb.FATBlockCount(),
		RootDirBlock:   fsys.sb.RootDirBlock(),
		DataStartBlock: fsys.sb.DataStartBlock(),
		DataBlockCount: fsys.sb.DataBlockCount(),
		FreeFATEntries: fsys.fat.freeCount(),
		FreeDirSlots:   fsys.dir.countEmpty(),
	}, resultOK
}

func (fsys *FS) ls() ([]DirEntry, Result) {
	if !fsys.mounted() {
		return nil, NotMounted
	}
	var out []DirEntry
	for i := 0; i < maxRootFiles; i++ {
		e := fsys.dir.entry(i)
		if e.empty() {
			continue
		}
		out = append(out, DirEntry{Name: e.name(), Size: e.size(), FirstBlock: e.first()})
	}
	return out, resultOK
}
