package sensor

import (
	"cmp"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Member is one counter handed to the group builder.
type Member struct {
	RawName     string
	RawLabel    string
	SourcePath  string
	SeriesIndex int
	// Name, when set, is used verbatim instead of the humanized label.
	Name string
}

// Item is a member of a group as shown to the user.
type Item struct {
	Name           string
	SeriesIndex    int // stable index into the series store
	DefaultVisible bool
	Color          colorful.Color
}

// Group is a semantic sensor group with its thresholds.
type Group struct {
	Key     string
	Display string
	Items   []Item
	Warn    float64
	Hot     float64
}

// groupRank fixes the order of well-known groups; everything else ranks last.
var groupRank = map[string]int{
	"cpu":  0,
	"gpu":  1,
	"ssd":  2,
	"ram":  3,
	"wifi": 4,
	"eth":  5,
}

func rank(key string) int {
	if r, ok := groupRank[key]; ok {
		return r
	}
	return len(groupRank)
}

// TempMembers turns a catalog's temperature sensors into builder members,
// mapping the i-th sensor to seriesIndex(i).
func TempMembers(c *Catalog, seriesIndex func(int) int) []Member {
	temps := c.Temps()
	out := make([]Member, len(temps))
	for i, ts := range temps {
		out[i] = Member{
			RawName:     ts.RawName,
			RawLabel:    ts.RawLabel,
			SourcePath:  ts.SourcePath,
			SeriesIndex: seriesIndex(i),
		}
	}
	return out
}

// BuildGroups classifies members and returns the ordered groups. Items are
// named, colored and given default visibility in insertion order, then
// sorted within each group; groups are ordered by rank, ties kept in
// insertion order.
func BuildGroups(members []Member) []Group {
	var (
		groups []*Group
		byKey  = map[string]*Group{}
		// raw labels parallel to each group's items, for representative lookup
		rawLabels = map[string][]string{}
	)

	for _, m := range members {
		class := Classify(m.RawName)
		g, ok := byKey[class.Key]
		if !ok {
			g = &Group{
				Key:     class.Key,
				Display: class.Display,
				Warn:    class.Warn,
				Hot:     class.Hot,
			}
			byKey[class.Key] = g
			groups = append(groups, g)
		}
		name := m.Name
		if name == "" {
			name = humanizeLabel(class.Key, m.RawLabel, len(g.Items), m.SourcePath)
		}
		g.Items = append(g.Items, Item{Name: name, SeriesIndex: m.SeriesIndex})
		rawLabels[class.Key] = append(rawLabels[class.Key], m.RawLabel)
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		rep := representative(g.Items, rawLabels[g.Key])
		g.Items[rep].DefaultVisible = true
		for i := range g.Items {
			g.Items[i].Color = Tint(g.Key, i)
		}
		sortItems(g)
		out = append(out, *g)
	}

	slices.SortStableFunc(out, func(a, b Group) int {
		return cmp.Compare(rank(a.Key), rank(b.Key))
	})
	return out
}

// representative picks the single item visible by default: the first
// package or composite reading, else the first item.
func representative(items []Item, rawLabels []string) int {
	for i, it := range items {
		if isAggregate(it.Name) || isAggregate(rawLabels[i]) {
			return i
		}
	}
	return 0
}

func isAggregate(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "package") || strings.Contains(lower, "composite")
}

// humanizeLabel derives an item name from the raw label. pos is the item's
// 0-based position within its group at insertion time.
func humanizeLabel(key, rawLabel string, pos int, path string) string {
	l := strings.TrimSpace(rawLabel)
	lower := strings.ToLower(l)

	switch key {
	case "wifi":
		return "Wi-Fi"
	case "eth":
		for _, drv := range []string{"r8169", "igc", "e1000"} {
			if strings.Contains(lower, drv) {
				return "Ethernet (" + drv + ")"
			}
		}
		return "Ethernet"
	case "ram":
		if strings.HasPrefix(lower, "spd") {
			return "SPD Hub"
		}
		return "Memory"
	case "ssd":
		dev, ok := nvmeDevice(path)
		if !ok {
			dev = "#" + strconv.Itoa(pos+1)
		}
		name := "SSD (NVMe " + dev + ")"
		// drives expose several sensors; keep all but the composite apart
		if l != "" && !strings.HasPrefix(lower, "nvme") && !strings.Contains(lower, "composite") {
			name += " " + l
		}
		return name
	case "gpu":
		switch {
		case strings.Contains(lower, "edge"):
			return "GPU Edge"
		case strings.Contains(lower, "hotspot"):
			return "GPU Hotspot"
		}
		return "GPU"
	case "cpu":
		switch {
		case strings.HasPrefix(lower, "tctl"), strings.HasPrefix(lower, "tdie"):
			return fmt.Sprintf("Package (%s)", l)
		case strings.HasPrefix(lower, "tccd"):
			return "CCD " + strings.TrimSpace(l[len("tccd"):])
		}
		return l
	}
	return l
}

// nvmeDevice finds the first path component naming an NVMe controller or
// namespace, e.g. "nvme0" or "nvme0n1".
func nvmeDevice(path string) (string, bool) {
	for _, comp := range strings.Split(filepath.ToSlash(path), "/") {
		rest, ok := strings.CutPrefix(comp, "nvme")
		if ok && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			return comp, true
		}
	}
	return "", false
}

func sortItems(g *Group) {
	switch g.Key {
	case "cpu":
		slices.SortStableFunc(g.Items, func(a, b Item) int {
			ta, na := cpuSortKey(a.Name)
			tb, nb := cpuSortKey(b.Name)
			return cmp.Or(
				cmp.Compare(ta, tb),
				cmp.Compare(na, nb),
				strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			)
		})
	case "gpu":
		slices.SortStableFunc(g.Items, func(a, b Item) int {
			return cmp.Or(
				cmp.Compare(gpuTier(a.Name), gpuTier(b.Name)),
				strings.Compare(a.Name, b.Name),
			)
		})
	default:
		slices.SortStableFunc(g.Items, func(a, b Item) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
}

// cpuSortKey returns the tier (0 package/composite, 1 numbered core,
// 2 other) and the core number of a CPU item name.
func cpuSortKey(name string) (int, int) {
	lower := strings.ToLower(name)
	num := math.MaxInt
	if i := strings.Index(lower, "core "); i >= 0 {
		if f := strings.Fields(lower[i+len("core "):]); len(f) > 0 {
			if n, err := strconv.Atoi(f[0]); err == nil {
				num = n
			}
		}
	}
	switch {
	case isAggregate(lower):
		return 0, num
	case strings.HasPrefix(lower, "core "), strings.Contains(lower, "cpu core "):
		return 1, num
	}
	return 2, num
}

func gpuTier(name string) int {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "edge"):
		return 0
	case strings.Contains(lower, "hotspot"):
		return 1
	}
	return 2
}
