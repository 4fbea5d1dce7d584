package persistence

import "testing"

func TestVLANGroupPosition(t *testing.T) {
	cases := []struct {
		vlanID        int
		group         uint16
		position      int
	}{
		{1, 0, 1},
		{4, 1, 0},
		{4095, 1023, 3},
	}
	for _, c := range cases {
		group, position := VLANGroup(c.vlanID)
		if group != c.group || position != c.position {
			t.Errorf("VLANGroup(%d) = (%d, %d), want (%d, %d)", c.vlanID, group, position, c.group, c.position)
		}
	}
}

func TestVLANPackUnpackRoundTrip(t *testing.T) {
	for position := 0; position < 4; position++ {
		for _, m := range []byte{0, 1, 0x1F, 0x15} {
			for _, valid := range []bool{true, false} {
				var data [indirectDataRegCount]byte
				// Poison unrelated bits to confirm packPosition doesn't
				// touch bytes/bits belonging to other positions.
				for i := range data {
					data[i] = 0xFF
				}
				e := VLANEntry{Valid: valid, Membership: m}
				packPosition(&data, position, e)
				got := unpackPosition(data, position)
				if got.Valid != e.Valid || got.Membership != m {
					t.Fatalf("position %d: round trip got %+v, want {Valid:%v Membership:%d}", position, got, valid, m)
				}
			}
		}
	}
}

func TestVLANPackDoesNotDisturbOtherPositions(t *testing.T) {
	var data [indirectDataRegCount]byte
	e0 := VLANEntry{Valid: true, Membership: 0x11}
	e1 := VLANEntry{Valid: false, Membership: 0x05}
	e2 := VLANEntry{Valid: true, Membership: 0x1F}
	e3 := VLANEntry{Valid: true, Membership: 0x02}

	packPosition(&data, 0, e0)
	packPosition(&data, 1, e1)
	packPosition(&data, 2, e2)
	packPosition(&data, 3, e3)

	if got := unpackPosition(data, 0); got != e0 {
		t.Errorf("position 0 disturbed: got %+v want %+v", got, e0)
	}
	if got := unpackPosition(data, 1); got != e1 {
		t.Errorf("position 1 disturbed: got %+v want %+v", got, e1)
	}
	if got := unpackPosition(data, 2); got != e2 {
		t.Errorf("position 2 disturbed: got %+v want %+v", got, e2)
	}
	if got := unpackPosition(data, 3); got != e3 {
		t.Errorf("position 3 disturbed: got %+v want %+v", got, e3)
	}
}

func TestVLANMirrorEncodeDecode(t *testing.T) {
	e := VLANEntry{Valid: true, Membership: 0x1D}
	b := EncodeVLANMirror(e)
	got := DecodeVLANMirror(b)
	if got != e {
		t.Fatalf("mirror round trip: got %+v, want %+v", got, e)
	}
	if b&0x03 != 0 {
		t.Fatalf("reserved bits must be zero, got %#x", b)
	}
}

func TestVLANSaveGateIsLogicalNotBitwise(t *testing.T) {
	// Open question 2: any non-zero byte gates the branch, not just
	// bit 7.
	if !vlanSaveGateSet(0x01) {
		t.Fatal("expected gate set for 0x01 (logical AND semantics)")
	}
	if vlanSaveGateSet(0x00) {
		t.Fatal("expected gate clear for 0x00")
	}
}
