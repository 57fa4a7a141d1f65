package ecsfs

import (
	"bytes"
	"encoding/binary"
	"log/slog"
)

// direntView is a packed view over one 32-byte slot of the root directory
// block, following the same byte-window idiom as superblockView.
type direntView struct {
	data []byte // always direntSize bytes
}

func (d direntView) empty() bool {
	return d.data[direntNameOff] == 0
}

func (d direntView) name() string {
	end := bytes.IndexByte(d.data[direntNameOff:direntNameOff+16], 0)
	if end < 0 {
		end = 16
	}
	return string(d.data[direntNameOff : direntNameOff+end])
}

func (d direntView) setName(name string) {
	nameField := d.data[direntNameOff : direntNameOff+16]
	clear(nameField)
	copy(nameField, name)
}

func (d direntView) size() uint32 {
	return binary.LittleEndian.Uint32(d.data[direntSizeOff:])
}

func (d direntView) setSize(v uint32) {
	binary.LittleEndian.PutUint32(d.data[direntSizeOff:], v)
}

func (d direntView) first() uint16 {
	return binary.LittleEndian.Uint16(d.data[direntFirstOff:])
}

func (d direntView) setFirst(v uint16) {
	binary.LittleEndian.PutUint16(d.data[direntFirstOff:], v)
}

func (d direntView) clear() {
	d.data[direntNameOff] = 0
	d.setSize(0)
	d.setFirst(eoc)
}

// rootDir is the Root Directory Manager: a single block holding maxRootFiles
// fixed-size entries, loaded wholesale at mount and flushed wholesale at
// unmount.
type rootDir struct {
	block []byte // BlockSize bytes, the on-disk image of the directory block
	fs    *FS
}

func (rd *rootDir) entry(i int) direntView {
	return direntView{data: rd.block[i*direntSize : (i+1)*direntSize]}
}

func (rd *rootDir) load(dev BlockDevice, blockIdx int64) Result {
	rd.fs.trace("dir:load", slog.Int64("block", blockIdx))
	if rd.block == nil {
		rd.block = make([]byte, BlockSize)
	}
	if err := dev.ReadBlock(rd.block, blockIdx); err != nil {
		rd.fs.logerror("dir:load", slog.Any("err", err))
		return IoError
	}
	return resultOK
}

func (rd *rootDir) flush(dev BlockDevice, blockIdx int64) Result {
	rd.fs.trace("dir:flush", slog.Int64("block", blockIdx))
	if err := dev.WriteBlock(rd.block, blockIdx); err != nil {
		rd.fs.logerror("dir:flush", slog.Any("err", err))
		return IoError
	}
	return resultOK
}

// find returns the index of the entry named name, or NotFound.
func (rd *rootDir) find(name string) (int, Result) {
	for i := 0; i < maxRootFiles; i++ {
		e := rd.entry(i)
		if !e.empty() && e.name() == name {
			return i, resultOK
		}
	}
	return -1, NotFound
}

// findEmpty returns the index of the first empty slot, or Full.
func (rd *rootDir) findEmpty() (int, Result) {
	for i := 0; i < maxRootFiles; i++ {
		if rd.entry(i).empty() {
			return i, resultOK
		}
	}
	return -1, Full
}

func validFilename(name string) Result {
	if len(name) == 0 {
		return BadArg
	}
	if len(name) > maxFilenameSz {
		return TooLong
	}
	return resultOK
}

// create registers a new zero-length file named name.
func (rd *rootDir) create(name string) Result {
	rd.fs.trace("dir:create", slog.String("name", name))
	if fr := validFilename(name); fr != resultOK {
		return fr
	}
	if _, fr := rd.find(name); fr == resultOK {
		return Exists
	}
	idx, fr := rd.findEmpty()
	if fr != resultOK {
		return fr
	}
	e := rd.entry(idx)
	e.setName(name)
	e.setSize(0)
	e.setFirst(eoc)
	rd.fs.dirDirty = true
	return resultOK
}

// delete removes the named file, freeing its block chain through fat. It
// fails with Busy if any descriptor still references the entry.
func (rd *rootDir) delete(name string, fat *fatTable, fds *fdTable) Result {
	rd.fs.trace("dir:delete", slog.String("name", name))
	idx, fr := rd.find(name)
	if fr != resultOK {
		return fr
	}
	if fds.references(idx) {
		return Busy
	}
	e := rd.entry(idx)
	fat.freeChain(e.first())
	e.clear()
	rd.fs.dirDirty = true
	return resultOK
}

// countEmpty returns the number of unused directory slots, for Info().
func (rd *rootDir) countEmpty() int {
	n := 0
	for i := 0; i < maxRootFiles; i++ {
		if rd.entry(i).empty() {
			n++
		}
	}
	return n
}
