package sensor

import (
	"testing"
)

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGroupOrder(t *testing.T) {
	members := []Member{
		{RawName: "r8169_0_300:00", SeriesIndex: 0},
		{RawName: "coretemp", RawLabel: "Core 0", SeriesIndex: 1},
		{RawName: "iwlwifi_1", SeriesIndex: 2},
		{RawName: "amdgpu", RawLabel: "edge", SeriesIndex: 3},
		{RawName: "nvme", RawLabel: "Composite", SeriesIndex: 4},
		{RawName: "spd5118", RawLabel: "spd5118", SeriesIndex: 5},
	}
	groups := BuildGroups(members)

	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	want := []string{"cpu", "gpu", "ssd", "ram", "wifi", "eth"}
	if !equal(keys, want) {
		t.Errorf("group order: got %v, want %v", keys, want)
	}
}

func TestUnrankedGroupsKeepInsertionOrder(t *testing.T) {
	groups := BuildGroups([]Member{
		{RawName: "zzz"},
		{RawName: "acpitz"},
		{RawName: "coretemp", RawLabel: "Core 0"},
		{RawName: "aaa"},
	})
	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	want := []string{"cpu", "zzz", "acpi", "aaa"}
	if !equal(keys, want) {
		t.Errorf("group order: got %v, want %v", keys, want)
	}
}

func TestUnmatchedNameDoesNotJoinTableGroup(t *testing.T) {
	groups := BuildGroups([]Member{
		{RawName: "ssd", SeriesIndex: 0},
		{RawName: "nvme", RawLabel: "Composite", SeriesIndex: 1},
	})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	drive := groups[0]
	if drive.Key != "ssd" || drive.Warn != 70 || drive.Hot != 80 || len(drive.Items) != 1 {
		t.Errorf("drive group: got key=%s warn=%v hot=%v items=%d", drive.Key, drive.Warn, drive.Hot, len(drive.Items))
	}
	other := groups[1]
	if other.Key != "raw:ssd" || other.Display != "ssd" || len(other.Items) != 1 {
		t.Errorf("unmatched group: got key=%s display=%s items=%d", other.Key, other.Display, len(other.Items))
	}
}

func TestCPUItemOrder(t *testing.T) {
	groups := BuildGroups([]Member{
		{RawName: "coretemp", RawLabel: "Core 3", SeriesIndex: 10},
		{RawName: "coretemp", RawLabel: "Package", SeriesIndex: 11},
		{RawName: "coretemp", RawLabel: "Core 1", SeriesIndex: 12},
	})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if got := names(g.Items); !equal(got, []string{"Package", "Core 1", "Core 3"}) {
		t.Errorf("cpu order: got %v", got)
	}
	if g.Items[0].SeriesIndex != 11 {
		t.Errorf("series index must follow the item: got %d", g.Items[0].SeriesIndex)
	}
	if !g.Items[0].DefaultVisible || g.Items[1].DefaultVisible || g.Items[2].DefaultVisible {
		t.Error("only the package reading should be visible by default")
	}
}

func TestCPUNumericAndOtherTiers(t *testing.T) {
	groups := BuildGroups([]Member{
		{RawName: "coretemp", RawLabel: "Core 10"},
		{RawName: "coretemp", RawLabel: "Core 2"},
		{RawName: "coretemp", RawLabel: "Package id 0"},
		{RawName: "k10temp", RawLabel: "Tccd1"},
		{RawName: "k10temp", RawLabel: "Tctl"},
	})
	want := []string{"Package (Tctl)", "Package id 0", "Core 2", "Core 10", "CCD 1"}
	if got := names(groups[0].Items); !equal(got, want) {
		t.Errorf("cpu order: got %v, want %v", got, want)
	}
	visible := 0
	for _, it := range groups[0].Items {
		if it.DefaultVisible {
			visible++
			if it.Name != "Package id 0" {
				t.Errorf("first inserted aggregate should be visible, got %q", it.Name)
			}
		}
	}
	if visible != 1 {
		t.Errorf("expected exactly one visible item, got %d", visible)
	}
}

func TestGPUItems(t *testing.T) {
	groups := BuildGroups([]Member{
		{RawName: "amdgpu", RawLabel: "mem"},
		{RawName: "amdgpu", RawLabel: "hotspot"},
		{RawName: "amdgpu", RawLabel: "edge"},
	})
	want := []string{"GPU Edge", "GPU Hotspot", "GPU"}
	if got := names(groups[0].Items); !equal(got, want) {
		t.Errorf("gpu order: got %v, want %v", got, want)
	}
	// no aggregate reading: first inserted item is the representative
	for _, it := range groups[0].Items {
		if it.DefaultVisible != (it.Name == "GPU") {
			t.Errorf("%s visible=%v", it.Name, it.DefaultVisible)
		}
	}
}

func TestSSDNames(t *testing.T) {
	groups := BuildGroups([]Member{
		{RawName: "nvme", RawLabel: "Composite", SourcePath: "/sys/devices/pci0000:00/0000:02:00.0/nvme/nvme1/hwmon4/temp1_input"},
		{RawName: "nvme", RawLabel: "Sensor 1", SourcePath: "/sys/devices/pci0000:00/0000:02:00.0/nvme/nvme1/hwmon4/temp2_input"},
		{RawName: "nvme", RawLabel: "Composite", SourcePath: "/sys/class/hwmon/hwmon7/temp1_input"},
	})
	want := []string{"SSD (NVMe #3)", "SSD (NVMe nvme1)", "SSD (NVMe nvme1) Sensor 1"}
	if got := names(groups[0].Items); !equal(got, want) {
		t.Errorf("ssd names: got %v, want %v", got, want)
	}
	for _, it := range groups[0].Items {
		if it.DefaultVisible != (it.Name == "SSD (NVMe nvme1)") {
			t.Errorf("%s visible=%v", it.Name, it.DefaultVisible)
		}
	}
}

func TestCanonicalLabels(t *testing.T) {
	groups := BuildGroups([]Member{
		{RawName: "iwlwifi_1", RawLabel: "iwlwifi_1"},
		{RawName: "r8169_0_300:00", RawLabel: "r8169_0_300:00"},
		{RawName: "e1000e", RawLabel: "e1000e"},
		{RawName: "spd5118", RawLabel: "spd5118"},
		{RawName: "acpitz", RawLabel: "acpitz"},
	})
	got := map[string][]string{}
	for _, g := range groups {
		got[g.Key] = names(g.Items)
	}
	if !equal(got["wifi"], []string{"Wi-Fi"}) {
		t.Errorf("wifi: %v", got["wifi"])
	}
	if !equal(got["eth"], []string{"Ethernet (e1000)", "Ethernet (r8169)"}) {
		t.Errorf("eth: %v", got["eth"])
	}
	if !equal(got["ram"], []string{"SPD Hub"}) {
		t.Errorf("ram: %v", got["ram"])
	}
	if !equal(got["acpi"], []string{"acpitz"}) {
		t.Errorf("acpi: %v", got["acpi"])
	}
	for _, g := range groups {
		if len(g.Items) == 1 && !g.Items[0].DefaultVisible {
			t.Errorf("sole item of %s should be visible", g.Key)
		}
	}
}

func TestItemColors(t *testing.T) {
	members := make([]Member, 8)
	for i := range members {
		members[i] = Member{RawName: "acpitz", RawLabel: string(rune('a' + i)), SeriesIndex: i}
	}
	groups := BuildGroups(members)
	items := groups[0].Items
	for _, it := range items {
		// labels are inserted in sorted order, so position == insertion index
		want := Tint("acpi", it.SeriesIndex)
		if it.Color != want {
			t.Errorf("item %d color %s, want %s", it.SeriesIndex, it.Color.Hex(), want.Hex())
		}
	}
	if items[0].Color != items[6].Color {
		t.Error("tints should cycle every six items")
	}
	if items[0].Color == items[1].Color {
		t.Error("neighbouring items should differ")
	}
}

func TestTint(t *testing.T) {
	r, g, b := Tint("cpu", 0).RGB255()
	// 220 + 35*0.15, 30 + 225*0.15
	if r != 225 || g != 64 || b != 64 {
		t.Errorf("Tint(cpu, 0) = (%d,%d,%d), want (225,64,64)", r, g, b)
	}
	r, g, b = Tint("unknown", 5).RGB255()
	// 160 + 95*0.75
	if r != 231 || g != 231 || b != 231 {
		t.Errorf("Tint(unknown, 5) = (%d,%d,%d), want (231,231,231)", r, g, b)
	}
	if len(Palette("gpu", 3)) != 3 {
		t.Error("Palette length")
	}
}

func TestTempMembers(t *testing.T) {
	cat := NewCatalog([]TempSensor{
		{RawName: "coretemp", RawLabel: "Core 0", SourcePath: "/x"},
		{RawName: "nvme", RawLabel: "Composite", SourcePath: "/y"},
	}, nil)
	ms := TempMembers(cat, func(i int) int { return 100 + i })
	if len(ms) != 2 || ms[1].SeriesIndex != 101 || ms[1].RawName != "nvme" {
		t.Errorf("TempMembers: %+v", ms)
	}
}
