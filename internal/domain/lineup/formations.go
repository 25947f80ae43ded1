package lineup

import "sort"

// Position places a slot on the pitch grid. Row 1 is the goalkeeper's line;
// Col runs left to right within a row.
type Position struct {
	SlotID int    `json:"slotId"`
	Role   string `json:"role"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

var layouts = map[string][]Position{
	"4-3-3": {
		{1, "GK", 1, 1},
		{2, "RB", 2, 4}, {3, "CB", 2, 3}, {4, "CB", 2, 2}, {5, "LB", 2, 1},
		{6, "CM", 3, 3}, {7, "CM", 3, 2}, {8, "CM", 3, 1},
		{9, "RW", 4, 3}, {10, "ST", 4, 2}, {11, "LW", 4, 1},
	},
	"4-4-2": {
		{1, "GK", 1, 1},
		{2, "RB", 2, 4}, {3, "CB", 2, 3}, {4, "CB", 2, 2}, {5, "LB", 2, 1},
		{6, "RM", 3, 4}, {7, "CM", 3, 3}, {8, "CM", 3, 2}, {9, "LM", 3, 1},
		{10, "ST", 4, 2}, {11, "ST", 4, 1},
	},
	"4-2-3-1": {
		{1, "GK", 1, 1},
		{2, "RB", 2, 4}, {3, "CB", 2, 3}, {4, "CB", 2, 2}, {5, "LB", 2, 1},
		{6, "DM", 3, 2}, {7, "DM", 3, 1},
		{8, "RAM", 4, 3}, {9, "CAM", 4, 2}, {10, "LAM", 4, 1},
		{11, "ST", 5, 1},
	},
	"3-5-2": {
		{1, "GK", 1, 1},
		{2, "CB", 2, 3}, {3, "CB", 2, 2}, {4, "CB", 2, 1},
		{5, "RWB", 3, 5}, {6, "CM", 3, 4}, {7, "CM", 3, 3}, {8, "CM", 3, 2}, {9, "LWB", 3, 1},
		{10, "ST", 4, 2}, {11, "ST", 4, 1},
	},
	"3-4-3": {
		{1, "GK", 1, 1},
		{2, "CB", 2, 3}, {3, "CB", 2, 2}, {4, "CB", 2, 1},
		{5, "RM", 3, 4}, {6, "CM", 3, 3}, {7, "CM", 3, 2}, {8, "LM", 3, 1},
		{9, "RW", 4, 3}, {10, "ST", 4, 2}, {11, "LW", 4, 1},
	},
	"5-3-2": {
		{1, "GK", 1, 1},
		{2, "RWB", 2, 5}, {3, "CB", 2, 4}, {4, "CB", 2, 3}, {5, "CB", 2, 2}, {6, "LWB", 2, 1},
		{7, "CM", 3, 3}, {8, "CM", 3, 2}, {9, "CM", 3, 1},
		{10, "ST", 4, 2}, {11, "ST", 4, 1},
	},
}

// Layout returns the slot positions of a known formation.
func Layout(formation string) ([]Position, bool) {
	l, ok := layouts[formation]
	if !ok {
		return nil, false
	}
	out := make([]Position, len(l))
	copy(out, l)
	return out, true
}

// Formations lists the known formation names in ascending order.
func Formations() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
