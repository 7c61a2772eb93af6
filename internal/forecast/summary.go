package forecast

// Summary aggregates a risk list for reporting.
type Summary struct {
	Total         int            `json:"total_risks"`
	ByLevel       map[Level]int  `json:"by_level"`
	ByOwner       map[string]int `json:"by_owner"`
	AvgScore      float64        `json:"avg_risk_score"`
	MaxScore      float64        `json:"max_risk_score"`
	MinScore      float64        `json:"min_risk_score"`
	CriticalCount int            `json:"critical_count"`
}

// Summarize counts risks by level and owner and computes score statistics.
func Summarize(risks []Risk) Summary {
	s := Summary{
		ByLevel: make(map[Level]int),
		ByOwner: make(map[string]int),
	}
	if len(risks) == 0 {
		return s
	}

	s.Total = len(risks)
	s.MinScore = risks[0].Score
	sum := 0.0
	for _, r := range risks {
		s.ByLevel[r.Level]++
		s.ByOwner[r.Owner]++
		sum += r.Score
		s.MaxScore = max(s.MaxScore, r.Score)
		s.MinScore = min(s.MinScore, r.Score)
		if r.Level == LevelCritical {
			s.CriticalCount++
		}
	}
	s.AvgScore = sum / float64(len(risks))
	return s
}
