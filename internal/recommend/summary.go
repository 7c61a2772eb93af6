package recommend

// Summary aggregates recommendations across groups.
type Summary struct {
	Total            int              `json:"total_recommendations"`
	ByType           map[Type]int     `json:"by_type"`
	ByPriority       map[Priority]int `json:"by_priority"`
	AvgPriorityScore float64          `json:"avg_priority_score"`
}

// Summarize counts every recommendation in groups by type and priority.
func Summarize(groups []Group) Summary {
	s := Summary{
		ByType:     make(map[Type]int),
		ByPriority: make(map[Priority]int),
	}
	total := 0
	for _, g := range groups {
		for _, r := range g.Recommendations {
			s.Total++
			s.ByType[r.Type]++
			s.ByPriority[r.Priority]++
			total += r.Priority.Score()
		}
	}
	if s.Total > 0 {
		s.AvgPriorityScore = float64(total) / float64(s.Total)
	}
	return s
}
