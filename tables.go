package ecsfs

// Fixed layout constants for the on-disk format. All multi-byte integers
// are little-endian; offsets are byte offsets within the relevant block.

const (
	// BlockSize is the size in bytes of every block on the device, including
	// the superblock, FAT blocks, the root directory block and data blocks.
	BlockSize = 4096

	// signature is the exact 8-byte magic stamped into the superblock,
	// read as a little-endian uint64 (on disk: the ASCII bytes "A40250FS").
	signature uint64 = 0x5346303532303441

	// eoc is the FAT end-of-chain sentinel.
	eoc uint16 = 0xFFFF

	// fatEntriesPerBlock is the number of 16-bit FAT entries packed into one block.
	fatEntriesPerBlock = BlockSize / 2 // 2048

	maxOpenFiles  = 32
	maxRootFiles  = 128
	maxFilenameSz = 15 // not counting the terminating NUL
)

// Superblock field offsets (block 0).
const (
	sbSignatureOff  = 0  // 8 bytes
	sbTotalBlockOff = 8  // 2 bytes
	sbRootDirOff    = 10 // 2 bytes
	sbDataStartOff  = 12 // 2 bytes
	sbDataCountOff  = 14 // 2 bytes
	sbFATBlocksOff  = 16 // 1 byte
	// bytes 17..4095 are reserved padding.
)

// Root directory entry field offsets, relative to the start of the 32-byte entry.
const (
	direntNameOff  = 0  // 16 bytes, NUL-terminated
	direntSizeOff  = 16 // 4 bytes
	direntFirstOff = 20 // 2 bytes
	direntSize     = 32 // total size of one directory entry
	// bytes 22..31 are reserved padding.
)
