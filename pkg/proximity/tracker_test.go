package proximity

import (
	"slices"
	"testing"
)

func TestTracker_ConnectDisconnect(t *testing.T) {
	tr := New(3)

	if !tr.Connect(0, 1) {
		t.Fatal("Connect(0,1) = false, want true")
	}
	if tr.Connect(1, 0) {
		t.Error("Connect(1,0) on existing edge = true, want false")
	}
	if tr.Connect(2, 2) {
		t.Error("Connect(2,2) self loop = true, want false")
	}
	if !tr.Adjacent(1, 0) {
		t.Error("Adjacent(1,0) = false, want true")
	}

	if !tr.Disconnect(0, 1) {
		t.Error("Disconnect(0,1) = false, want true")
	}
	if tr.Disconnect(0, 1) {
		t.Error("Disconnect of absent edge = true, want false (no-op)")
	}
	if tr.Connected(0, 1) {
		t.Error("Connected(0,1) after disconnect = true")
	}
}

func TestTracker_ConnectedThroughPath(t *testing.T) {
	tr := New(4)
	tr.Connect(0, 1)
	tr.Connect(1, 2)

	if !tr.Connected(0, 2) {
		t.Error("Connected(0,2) = false, want true via 1")
	}
	if tr.Connected(0, 3) {
		t.Error("Connected(0,3) = true, want false")
	}

	// Closing a cycle then removing one edge keeps everyone connected.
	tr.Connect(0, 2)
	tr.Disconnect(0, 1)
	if !tr.Connected(0, 1) {
		t.Error("Connected(0,1) = false, want true through the cycle remainder")
	}
}

func TestTracker_Components(t *testing.T) {
	tr := New(6)
	tr.Connect(4, 5)
	tr.Connect(0, 2)
	tr.Connect(2, 3)

	got := tr.Components()
	want := [][]int{{0, 2, 3}, {1}, {4, 5}}
	if len(got) != len(want) {
		t.Fatalf("Components() = %v, want %v", got, want)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("Components()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTracker_Tags(t *testing.T) {
	tr := New(3)
	if tr.Tag(0) != -1 {
		t.Errorf("initial Tag(0) = %d, want -1", tr.Tag(0))
	}
	tr.SetTag([]int{0, 2}, 7)
	if tr.Tag(0) != 7 || tr.Tag(2) != 7 || tr.Tag(1) != -1 {
		t.Errorf("tags = %d,%d,%d, want 7,-1,7", tr.Tag(0), tr.Tag(1), tr.Tag(2))
	}
	if tr.Tag(99) != -1 {
		t.Error("Tag of unknown entity should be -1")
	}
}

func TestTracker_OutOfRange(t *testing.T) {
	tr := New(2)
	if tr.Connect(0, 5) {
		t.Error("Connect with unknown entity should be a no-op")
	}
	if tr.Component(9) != nil {
		t.Error("Component of unknown entity should be nil")
	}
	if got := tr.Neighbors(0); len(got) != 0 {
		t.Errorf("Neighbors(0) = %v, want empty", got)
	}
}
