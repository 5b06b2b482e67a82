package ezsp

import "testing"

func TestAdapterVersionCompletesOnlyAfterBothSetters(t *testing.T) {
	var v AdapterVersion
	v.SetXncpData(1, 2)
	if v.Complete() {
		t.Fatalf("expected Complete() false before version info set")
	}
	v.SetEzspVersionInfo(8)
	if !v.Complete() {
		t.Fatalf("expected Complete() true after both setters")
	}
}

func TestAdapterVersionInfo2RecordsStackFields(t *testing.T) {
	var v AdapterVersion
	v.SetXncpData(1, 2)
	v.SetEzspVersionInfo2(8, 0x02, 0x0600)
	if v.EzspProtocolVersion == nil || *v.EzspProtocolVersion != 8 {
		t.Fatalf("expected protocol version recorded")
	}
	if v.StackType == nil || *v.StackType != 0x02 {
		t.Fatalf("expected stack type recorded")
	}
	if v.StackVersion == nil || *v.StackVersion != 0x0600 {
		t.Fatalf("expected stack version recorded")
	}
}
