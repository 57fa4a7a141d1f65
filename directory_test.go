package ecsfs

import (
	"fmt"
	"testing"

	"github.com/boljen/go-bitmap"
)

func newRootDir() *rootDir {
	return &rootDir{block: make([]byte, BlockSize), fs: &FS{}}
}

func TestDirentClearMarksEmpty(t *testing.T) {
	rd := newRootDir()
	e := rd.entry(0)
	e.setName("x")
	e.setSize(10)
	e.setFirst(3)
	if e.empty() {
		t.Fatal("entry should not be empty after setName")
	}
	e.clear()
	if !e.empty() {
		t.Fatal("entry should be empty after clear")
	}
	if e.first() != eoc {
		t.Fatalf("cleared entry.first() = %d, want eoc", e.first())
	}
}

func TestValidFilename(t *testing.T) {
	cases := []struct {
		name string
		want Result
	}{
		{"", BadArg},
		{"a", resultOK},
		{"123456789012345", resultOK}, // exactly maxFilenameSz
		{"1234567890123456", TooLong},
	}
	for _, c := range cases {
		if got := validFilename(c.name); got != c.want {
			t.Errorf("validFilename(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRootDirCreateThenFind(t *testing.T) {
	rd := newRootDir()
	if fr := rd.create("a"); fr != resultOK {
		t.Fatalf("create: %v", fr)
	}
	idx, fr := rd.find("a")
	if fr != resultOK || idx != 0 {
		t.Fatalf("find: idx=%d err=%v", idx, fr)
	}
}

func TestRootDirCreateRejectsDuplicate(t *testing.T) {
	rd := newRootDir()
	if fr := rd.create("a"); fr != resultOK {
		t.Fatalf("create: %v", fr)
	}
	if fr := rd.create("a"); fr != Exists {
		t.Fatalf("create duplicate = %v, want Exists", fr)
	}
}

func TestRootDirFindMissingIsNotFound(t *testing.T) {
	rd := newRootDir()
	if _, fr := rd.find("ghost"); fr != NotFound {
		t.Fatalf("find missing = %v, want NotFound", fr)
	}
}

func TestRootDirFullWhenAllSlotsTaken(t *testing.T) {
	rd := newRootDir()
	for i := 0; i < maxRootFiles; i++ {
		e := rd.entry(i)
		e.setName(fmt.Sprintf("f%d", i))
		e.setSize(0)
		e.setFirst(eoc)
	}
	if _, fr := rd.findEmpty(); fr != Full {
		t.Fatalf("findEmpty on a full directory = %v, want Full", fr)
	}
}

func TestRootDirDeleteFreesChainAndFailsIfBusy(t *testing.T) {
	rd := newRootDir()
	rd.create("a")
	idx, _ := rd.find("a")
	rd.entry(idx).setFirst(1)

	fat := fatTable{entries: []uint16{eoc, eoc}, free: bitmap.New(2), fs: rd.fs}
	fds := fdTable{fs: rd.fs}
	fds.open(idx)

	if fr := rd.delete("a", &fat, &fds); fr != Busy {
		t.Fatalf("delete while open = %v, want Busy", fr)
	}
	fds.close(0)
	if fr := rd.delete("a", &fat, &fds); fr != resultOK {
		t.Fatalf("delete after close: %v", fr)
	}
	if fat.entries[1] != 0 {
		t.Fatalf("entries[1] = %d, want 0 after delete", fat.entries[1])
	}
}
