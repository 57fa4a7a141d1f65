package ecsfs

import "testing"

func TestFDTableOpenCloseRoundTrip(t *testing.T) {
	fds := fdTable{fs: &FS{}}
	fd, fr := fds.open(5)
	if fr != resultOK {
		t.Fatalf("open: %v", fr)
	}
	if !fds.references(5) {
		t.Fatal("references(5) should be true while fd is open")
	}
	if !fds.anyOpen() {
		t.Fatal("anyOpen() should be true")
	}
	if fr := fds.close(fd); fr != resultOK {
		t.Fatalf("close: %v", fr)
	}
	if fds.references(5) {
		t.Fatal("references(5) should be false after close")
	}
	if fds.anyOpen() {
		t.Fatal("anyOpen() should be false once every slot is closed")
	}
}

func TestFDTableSlotRejectsOutOfRange(t *testing.T) {
	fds := fdTable{fs: &FS{}}
	if _, fr := fds.slot(-1); fr != BadArg {
		t.Fatalf("slot(-1) = %v, want BadArg", fr)
	}
	if _, fr := fds.slot(maxOpenFiles); fr != BadArg {
		t.Fatalf("slot(maxOpenFiles) = %v, want BadArg", fr)
	}
	if _, fr := fds.slot(0); fr != BadArg {
		t.Fatalf("slot(0) on an unopened slot = %v, want BadArg", fr)
	}
}

func TestFDTableExhaustion(t *testing.T) {
	fds := fdTable{fs: &FS{}}
	for i := 0; i < maxOpenFiles; i++ {
		if _, fr := fds.open(i); fr != resultOK {
			t.Fatalf("open #%d: %v", i, fr)
		}
	}
	if _, fr := fds.open(maxOpenFiles); fr != Full {
		t.Fatalf("open beyond capacity = %v, want Full", fr)
	}
}

func TestFDTableCloseTwiceFails(t *testing.T) {
	fds := fdTable{fs: &FS{}}
	fd, _ := fds.open(0)
	if fr := fds.close(fd); fr != resultOK {
		t.Fatalf("first close: %v", fr)
	}
	if fr := fds.close(fd); fr != BadArg {
		t.Fatalf("second close = %v, want BadArg", fr)
	}
}
