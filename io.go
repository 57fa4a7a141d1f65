package ecsfs

import "log/slog"

// blockForOffset walks the chain starting at first by offset/BlockSize hops
// and returns the data block index currently covering offset. The caller
// must already know the file is non-empty and offset is in range, i.e. the
// chain already reaches at least that far; it never allocates. read() is
// the only caller, and its avail clamp guarantees this.
func (fsys *FS) blockForOffset(first uint16, offset int64) uint16 {
	cur := first
	hops := offset / BlockSize
	for i := int64(0); i < hops; i++ {
		cur = fsys.fat.next(int(cur))
	}
	return cur
}

// advanceOrAllocate returns the block chained after cur, allocating and
// linking a fresh one first if cur is the chain's current tail. write()
// uses this instead of blockForOffset wherever the walk may run past the
// blocks the chain already has, such as appending right at an existing
// block boundary.
func (fsys *FS) advanceOrAllocate(cur uint16) (next uint16, justAllocated bool, fr Result) {
	next = fsys.fat.next(int(cur))
	if next != eoc {
		return next, false, resultOK
	}
	idx, fr := fsys.fat.allocate()
	if fr != resultOK {
		return 0, false, fr
	}
	fsys.fat.set(int(cur), uint16(idx))
	fsys.fat.set(idx, eoc)
	return uint16(idx), true, resultOK
}

func (fsys *FS) dataBlockLBA(dataIdx uint16) int64 {
	return int64(fsys.sb.DataStartBlock()) + int64(dataIdx)
}

// spanBlocks returns how many blocks a request of count bytes starting at
// intra-block offset o touches: one for the head partial block, whole
// blocks in between, and one for the tail partial block if any.
func spanBlocks(o int64, count int64) int {
	head := BlockSize - o
	if head > count {
		return 1
	}
	remain := count - head
	n := 1 + int(remain/BlockSize)
	if remain%BlockSize != 0 {
		n++
	}
	return n
}

// read implements the I/O Engine's read algorithm (§4.5): clamp, walk,
// copy through a scratch buffer, advance the offset. It never allocates and
// never touches the FAT or directory.
func (fsys *FS) read(fd int, buf []byte) (int, Result) {
	if !fsys.mounted() {
		return 0, NotMounted
	}
	slot, fr := fsys.fds.slot(fd)
	if fr != resultOK {
		return 0, fr
	}
	e := fsys.dir.entry(slot.entry)
	size := int64(e.size())
	avail := size - slot.offset
	if avail < 0 {
		avail = 0
	}
	count := int64(len(buf))
	if count > avail {
		count = avail
	}
	if count <= 0 {
		return 0, resultOK
	}

	fsys.trace("io:read", slog.Int("fd", fd), slog.Int64("offset", slot.offset), slog.Int64("count", count))

	first := e.first()
	cur := fsys.blockForOffset(first, slot.offset)
	o := slot.offset % BlockSize
	n := spanBlocks(o, count)
	scratch := make([]byte, BlockSize)

	var copied int64
	for i := 0; i < n; i++ {
		if err := fsys.device.ReadBlock(scratch, fsys.dataBlockLBA(cur)); err != nil {
			fsys.logerror("io:read", slog.Any("err", err))
			return int(copied), IoError
		}
		var lo, hi int64
		switch {
		case i == 0:
			lo = o
			hi = BlockSize
			if hi-lo > count-copied {
				hi = lo + (count - copied)
			}
		case i == n-1:
			lo = 0
			hi = count - copied
		default:
			lo = 0
			hi = BlockSize
		}
		copy(buf[copied:], scratch[lo:hi])
		copied += hi - lo

		if i < n-1 {
			next := fsys.fat.next(int(cur))
			if next == eoc {
				break // should not occur given the clamp above
			}
			cur = next
		}
	}

	slot.offset += copied
	return int(copied), resultOK
}

// write implements the I/O Engine's write algorithm (§4.5): allocate on
// demand, read-modify-write each touched block, extend the file size.
// Newly allocated blocks are zero-filled before the partial overwrite,
// hardening the source's behavior of leaking prior disk contents.
func (fsys *FS) write(fd int, buf []byte) (int, Result) {
	if !fsys.mounted() {
		return 0, NotMounted
	}
	slot, fr := fsys.fds.slot(fd)
	if fr != resultOK {
		return 0, fr
	}
	count := int64(len(buf))
	if count <= 0 {
		return 0, resultOK
	}

	fsys.trace("io:write", slog.Int("fd", fd), slog.Int64("offset", slot.offset), slog.Int64("count", count))

	e := fsys.dir.entry(slot.entry)
	first := e.first()
	justAllocated := false
	if first == eoc {
		idx, fr := fsys.fat.allocate()
		if fr != resultOK {
			return 0, resultOK // disk full: truncates, not a failure
		}
		fsys.fat.set(idx, eoc)
		first = uint16(idx)
		e.setFirst(first)
		fsys.dirDirty = true
		justAllocated = true
	}

	// Walk to the block covering the current offset, allocating and linking
	// fresh blocks wherever the walk runs past the chain's existing tail
	// (e.g. appending right after a file whose size is already a multiple
	// of BlockSize: the chain has no block there yet).
	cur := first
	hops := slot.offset / BlockSize
	for i := int64(0); i < hops; i++ {
		next, alloc, fr := fsys.advanceOrAllocate(cur)
		if fr != resultOK {
			return 0, resultOK // disk full before reaching the offset at all
		}
		cur = next
		justAllocated = alloc
	}
	o := slot.offset % BlockSize
	n := spanBlocks(o, count)
	scratch := make([]byte, BlockSize)

	var written int64
	for i := 0; i < n; i++ {
		needsNext := i < n-1
		var nextBlock uint16
		nextJustAllocated := false
		if needsNext {
			next, alloc, fr := fsys.advanceOrAllocate(cur)
			if fr != resultOK {
				break // disk full: stop, keep what was written so far
			}
			nextBlock = next
			nextJustAllocated = alloc
		}

		if justAllocated {
			// Newly allocated blocks never held on-disk content relevant to
			// this file; zero the scratch instead of reading stale bytes.
			clear(scratch)
		} else if err := fsys.device.ReadBlock(scratch, fsys.dataBlockLBA(cur)); err != nil {
			fsys.logerror("io:write", slog.Any("err", err))
			return int(written), IoError
		}

		var lo, hi int64
		switch {
		case i == 0:
			lo = o
			hi = BlockSize
			if hi-lo > count-written {
				hi = lo + (count - written)
			}
		case i == n-1:
			lo = 0
			hi = count - written
		default:
			lo = 0
			hi = BlockSize
		}
		copy(scratch[lo:hi], buf[written:])
		written += hi - lo

		if err := fsys.device.WriteBlock(scratch, fsys.dataBlockLBA(cur)); err != nil {
			fsys.logerror("io:write", slog.Any("err", err))
			return int(written), IoError
		}

		if needsNext {
			cur = nextBlock
			justAllocated = nextJustAllocated
		}
	}

	slot.offset += written
	newSize := slot.offset
	if int64(e.size()) > newSize {
		newSize = int64(e.size())
	}
	e.setSize(uint32(newSize))
	fsys.dirDirty = true
	return int(written), resultOK
}
