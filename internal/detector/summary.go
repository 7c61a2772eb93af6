package detector

const highScoreCutoff = 0.7

// Summary aggregates a bottleneck list for reporting.
type Summary struct {
	Total             int            `json:"total_bottlenecks"`
	ByType            map[Type]int   `json:"by_type"`
	ByOwner           map[string]int `json:"by_owner"`
	AvgScore          float64        `json:"avg_score"`
	MaxScore          float64        `json:"max_score"`
	MinScore          float64        `json:"min_score"`
	HighPriorityCount int            `json:"high_priority_count"`
}

// Summarize counts bottlenecks by type and owner and computes score
// statistics. HighPriorityCount counts scores above 0.7.
func Summarize(bottlenecks []Bottleneck) Summary {
	s := Summary{
		ByType:  make(map[Type]int),
		ByOwner: make(map[string]int),
	}
	if len(bottlenecks) == 0 {
		return s
	}

	s.Total = len(bottlenecks)
	s.MinScore = bottlenecks[0].Score
	sum := 0.0
	for _, b := range bottlenecks {
		s.ByType[b.Type]++
		s.ByOwner[b.Owner]++
		sum += b.Score
		s.MaxScore = max(s.MaxScore, b.Score)
		s.MinScore = min(s.MinScore, b.Score)
		if b.Score > highScoreCutoff {
			s.HighPriorityCount++
		}
	}
	s.AvgScore = sum / float64(len(bottlenecks))
	return s
}
