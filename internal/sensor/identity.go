package sensor

import "strings"

// Class is the taxonomy entry a raw device name maps to.
type Class struct {
	Key     string  // group key, e.g. "cpu"
	Display string  // group display name
	Warn    float64 // degrees at which a reading is warm
	Hot     float64 // degrees at which a reading is hot
}

// classTable maps device name substrings to groups. First match wins.
var classTable = []struct {
	patterns []string
	class    Class
}{
	{[]string{"coretemp", "k10temp", "zen", "cpu"}, Class{"cpu", "CPU", 90, 100}},
	{[]string{"amdgpu"}, Class{"gpu", "GPU", 85, 95}},
	{[]string{"nvidia", "gpu"}, Class{"gpu", "GPU", 85, 95}},
	{[]string{"nvme"}, Class{"ssd", "SSD (NVMe)", 70, 80}},
	{[]string{"spd"}, Class{"ram", "Memory (SPD Hub)", 70, 85}},
	{[]string{"iwlwifi"}, Class{"wifi", "Wi-Fi", 80, 90}},
	{[]string{"r8169", "igc", "e1000", "r8125"}, Class{"eth", "Ethernet", 80, 90}},
	{[]string{"acpitz"}, Class{"acpi", "System (ACPI)", 80, 95}},
	{[]string{"pch", "isa"}, Class{"chipset", "Chipset", 85, 95}},
}

// fallbackPrefix marks the key of an unmatched name that would otherwise
// collide with a table key.
const fallbackPrefix = "raw:"

// Classify maps a raw device name to its group. Names matching no pattern
// form a group of their own, keyed and displayed by the raw name.
func Classify(raw string) Class {
	lower := strings.ToLower(raw)
	for _, entry := range classTable {
		for _, p := range entry.patterns {
			if strings.Contains(lower, p) {
				return entry.class
			}
		}
	}
	key := raw
	if isTableKey(raw) {
		key = fallbackPrefix + raw
	}
	return Class{Key: key, Display: raw, Warn: 90, Hot: 100}
}

func isTableKey(key string) bool {
	for _, entry := range classTable {
		if entry.class.Key == key {
			return true
		}
	}
	return false
}
