package ecsfs

import "encoding/binary"

// superblockView is a packed, byte-for-byte view over block 0 of the device.
// It never copies the underlying bytes into a Go struct; every accessor
// reads or writes directly through explicit little-endian offsets so the
// on-disk representation is exactly what's described in the layout,
// independent of host endianness.
type superblockView struct {
	data []byte // always BlockSize bytes
}

func (sb *superblockView) Signature() uint64 {
	return binary.LittleEndian.Uint64(sb.data[sbSignatureOff:])
}

func (sb *superblockView) SetSignature(v uint64) {
	binary.LittleEndian.PutUint64(sb.data[sbSignatureOff:], v)
}

func (sb *superblockView) TotalBlocks() uint16 {
	return binary.LittleEndian.Uint16(sb.data[sbTotalBlockOff:])
}

func (sb *superblockView) SetTotalBlocks(v uint16) {
	binary.LittleEndian.PutUint16(sb.data[sbTotalBlockOff:], v)
}

func (sb *superblockView) RootDirBlock() uint16 {
	return binary.LittleEndian.Uint16(sb.data[sbRootDirOff:])
}

func (sb *superblockView) SetRootDirBlock(v uint16) {
	binary.LittleEndian.PutUint16(sb.data[sbRootDirOff:], v)
}

func (sb *superblockView) DataStartBlock() uint16 {
	return binary.LittleEndian.Uint16(sb.data[sbDataStartOff:])
}

func (sb *superblockView) SetDataStartBlock(v uint16) {
	binary.LittleEndian.PutUint16(sb.data[sbDataStartOff:], v)
}

func (sb *superblockView) DataBlockCount() uint16 {
	return binary.LittleEndian.Uint16(sb.data[sbDataCountOff:])
}

func (sb *superblockView) SetDataBlockCount(v uint16) {
	binary.LittleEndian.PutUint16(sb.data[sbDataCountOff:], v)
}

func (sb *superblockView) FATBlockCount() uint8 {
	return sb.data[sbFATBlocksOff]
}

func (sb *superblockView) SetFATBlockCount(v uint8) {
	sb.data[sbFATBlocksOff] = v
}

// validate checks the signature and the layout invariants from the data
// model against the block count reported by the underlying device. It does
// not check FAT[0], which is the FAT manager's responsibility once loaded.
func (sb *superblockView) validate(deviceBlocks int64) Result {
	if sb.Signature() != signature {
		return BadImage
	}
	total := sb.TotalBlocks()
	if int64(total) != deviceBlocks {
		return BadImage
	}
	fatBlocks := sb.FATBlockCount()
	dataBlocks := sb.DataBlockCount()
	if uint32(1)+uint32(fatBlocks)+1+uint32(dataBlocks) != uint32(total) {
		return BadImage
	}
	if sb.RootDirBlock() != uint16(1)+uint16(fatBlocks) {
		return BadImage
	}
	if sb.DataStartBlock() != sb.RootDirBlock()+1 {
		return BadImage
	}
	return resultOK
}
