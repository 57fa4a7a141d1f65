package ecsfs

import (
	"fmt"
	"io"
)

// Mount validates dev as an ECS150FS image and loads the superblock, FAT
// and root directory into memory. A *FS must not be mounted twice without
// an intervening Umount.
func (fsys *FS) Mount(dev BlockDevice) error {
	if fsys.mounted() {
		return wrap("mount", resultBadArg)
	}
	if fr := fsys.mount(dev); fr != resultOK {
		return wrap("mount", fr)
	}
	return nil
}

// Umount flushes the FAT and root directory and releases the device. All
// files opened against this session must be closed first.
func (fsys *FS) Umount() error {
	if err := fsys.umount(); err != nil {
		return fmt.Errorf("umount: %w", err)
	}
	return nil
}

// Info reports the mounted filesystem's layout and occupancy.
func (fsys *FS) Info() (Info, error) {
	info, fr := fsys.info()
	if fr != resultOK {
		return Info{}, wrap("info", fr)
	}
	return info, nil
}

// Ls lists the non-empty root directory entries.
func (fsys *FS) Ls() ([]DirEntry, error) {
	entries, fr := fsys.ls()
	if fr != resultOK {
		return nil, wrap("ls", fr)
	}
	return entries, nil
}

// Create registers a new, empty file named name.
func (fsys *FS) Create(name string) error {
	if !fsys.mounted() {
		return wrap("create", NotMounted)
	}
	if fr := fsys.dir.create(name); fr != resultOK {
		return wrap("create", fr)
	}
	return nil
}

// Delete removes the named file and frees its blocks. Fails with Busy if
// any File handle for it is still open.
func (fsys *FS) Delete(name string) error {
	if !fsys.mounted() {
		return wrap("delete", NotMounted)
	}
	if fr := fsys.dir.delete(name, &fsys.fat, &fsys.fds); fr != resultOK {
		return wrap("delete", fr)
	}
	return nil
}

// File is an open handle bound to a directory entry and a byte offset. It
// implements io.ReadWriteSeeker and io.Closer.
type File struct {
	fsys *FS
	fd   int
	id   uint32 // the fsys.id at Open time; a later Mount invalidates this handle
}

// OpenFile opens name for reading and writing at offset 0.
func (fsys *FS) OpenFile(name string) (*File, error) {
	if !fsys.mounted() {
		return nil, wrap("open", NotMounted)
	}
	if fr := validFilename(name); fr != resultOK {
		return nil, wrap("open", fr)
	}
	idx, fr := fsys.dir.find(name)
	if fr != resultOK {
		return nil, wrap("open", fr)
	}
	fd, fr := fsys.fds.open(idx)
	if fr != resultOK {
		return nil, wrap("open", fr)
	}
	return &File{fsys: fsys, fd: fd, id: fsys.id}, nil
}

func (fp *File) validate() Result {
	if fp.fsys == nil || !fp.fsys.mounted() || fp.fsys.id != fp.id {
		return BadArg
	}
	return resultOK
}

// Read implements io.Reader. It returns io.EOF once the file's current
// offset reaches its size.
func (fp *File) Read(buf []byte) (int, error) {
	if fr := fp.validate(); fr != resultOK {
		return 0, wrap("read", fr)
	}
	n, fr := fp.fsys.read(fp.fd, buf)
	if fr != resultOK {
		return n, wrap("read", fr)
	}
	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer.
func (fp *File) Write(buf []byte) (int, error) {
	if fr := fp.validate(); fr != resultOK {
		return 0, wrap("write", fr)
	}
	n, fr := fp.fsys.write(fp.fd, buf)
	if fr != resultOK {
		return n, wrap("write", fr)
	}
	return n, nil
}

// Seek implements io.Seeker. Only whole-file offsets are meaningful; this
// filesystem has no sparse regions or holes.
func (fp *File) Seek(offset int64, whence int) (int64, error) {
	if fr := fp.validate(); fr != resultOK {
		return 0, wrap("seek", fr)
	}
	slot, fr := fp.fsys.fds.slot(fp.fd)
	if fr != resultOK {
		return 0, wrap("seek", fr)
	}
	size := int64(fp.fsys.dir.entry(slot.entry).size())

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = slot.offset + offset
	case io.SeekEnd:
		target = size + offset
	default:
		return 0, wrap("seek", BadArg)
	}
	if target < 0 || target > size {
		return 0, wrap("seek", OutOfRange)
	}
	slot.offset = target
	return target, nil
}

// Stat returns the file's current size in bytes.
func (fp *File) Stat() (int64, error) {
	if fr := fp.validate(); fr != resultOK {
		return 0, wrap("stat", fr)
	}
	slot, fr := fp.fsys.fds.slot(fp.fd)
	if fr != resultOK {
		return 0, wrap("stat", fr)
	}
	return int64(fp.fsys.dir.entry(slot.entry).size()), nil
}

// Close releases the descriptor slot.
func (fp *File) Close() error {
	if fr := fp.validate(); fr != resultOK {
		return wrap("close", fr)
	}
	if fr := fp.fsys.fds.close(fp.fd); fr != resultOK {
		return wrap("close", fr)
	}
	return nil
}

func wrap(op string, fr Result) error {
	if fr == resultOK {
		return nil
	}
	return fmt.Errorf("ecsfs: %s: %w", op, fr)
}
