package momentum

import "sort"

// Summary lists flagged players in display order.
type Summary struct {
	Hot        []string `json:"hot"`
	Cold       []string `json:"cold"`
	WantSubOut []string `json:"wantSubOut"`
}

// Summarize orders hot players by net momentum desc, cold players by net
// momentum asc and sub-out candidates by requests desc; ties by player id.
func Summarize(statuses map[string]Status) Summary {
	all := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PlayerID < all[j].PlayerID })

	var hot, cold, sub []Status
	for _, s := range all {
		if s.IsHot {
			hot = append(hot, s)
		}
		if s.IsCold {
			cold = append(cold, s)
		}
		if s.WantsSubOut {
			sub = append(sub, s)
		}
	}
	sort.SliceStable(hot, func(i, j int) bool { return hot[i].NetMomentum > hot[j].NetMomentum })
	sort.SliceStable(cold, func(i, j int) bool { return cold[i].NetMomentum < cold[j].NetMomentum })
	sort.SliceStable(sub, func(i, j int) bool { return sub[i].SubRequests > sub[j].SubRequests })

	return Summary{Hot: ids(hot), Cold: ids(cold), WantSubOut: ids(sub)}
}

func ids(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.PlayerID
	}
	return out
}
