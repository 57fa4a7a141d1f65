package ecsfs

// Result is the filesystem's typed error sentinel: a small integer enum
// that satisfies error so callers can errors.Is against a specific failure
// kind instead of parsing strings.
type Result int

const (
	resultOK          Result = iota
	resultBadImage           // superblock/FAT mismatch or other corrupt on-disk structure
	resultNotMounted         // operation invoked outside a mounted session
	resultBadArg             // nil pointer/buffer, bad name, descriptor out of range
	resultNotFound           // directory lookup found nothing
	resultExists             // create() collided with an existing name
	resultBusy               // delete() while a descriptor is still open
	resultFull               // descriptor table or disk full
	resultIoError            // underlying block I/O failure
	resultCorrupt            // FAT chain-walk hit an invalid entry mid-traversal
	resultTooLong            // filename exceeds maxFilenameSz
	resultOutOfRange         // lseek offset beyond file size
)

var resultStrings = [...]string{
	resultOK:         "ok",
	resultBadImage:   "bad filesystem image",
	resultNotMounted: "not mounted",
	resultBadArg:     "bad argument",
	resultNotFound:   "file not found",
	resultExists:     "file already exists",
	resultBusy:       "file is open",
	resultFull:       "no free space",
	resultIoError:    "device i/o error",
	resultCorrupt:    "corrupt allocation chain",
	resultTooLong:    "filename too long",
	resultOutOfRange: "offset out of range",
}

func (r Result) Error() string {
	if int(r) < 0 || int(r) >= len(resultStrings) {
		return "ecsfs: unknown error"
	}
	return "ecsfs: " + resultStrings[r]
}

// BadImage, NotMounted, ... are exported so callers can match a failure with
// errors.Is(err, ecsfs.NotFound) without depending on unexported identifiers.
const (
	BadImage   = resultBadImage
	NotMounted = resultNotMounted
	BadArg     = resultBadArg
	NotFound   = resultNotFound
	Exists     = resultExists
	Busy       = resultBusy
	IoError    = resultIoError
	Full       = resultFull
	Corrupt    = resultCorrupt
	TooLong    = resultTooLong
	OutOfRange = resultOutOfRange
)
