package analysis

import "strings"

// Sentiment is the keyword-heuristic verdict on a conversation.
type Sentiment struct {
	Overall       string  `json:"overall"`
	PositiveHits  int     `json:"positive_hits"`
	NegativeHits  int     `json:"negative_hits"`
	Confidence    float64 `json:"confidence"`
	EngagementCue bool    `json:"engagement_cue"`
}

var positiveMarkers = []string{
	"accha", "bahut", "great", "good", "thank", "shukriya", "dhanyavad",
	"love", "enjoy", "fun", "nice", "awesome", "perfect", "wonderful",
}

var negativeMarkers = []string{
	"difficult", "hard", "confus", "mushkil", "frustrat", "sorry",
	"don't understand", "samajh nahi", "problem", "wrong", "bad",
}

var engagementMarkers = []string{
	"?", "tell me", "batao", "aur", "what about", "how do",
}

// AnalyzeSentiment scores a transcript by marker counts. A heuristic, not a
// model: it only has to be stable enough to trend across sessions.
func AnalyzeSentiment(transcript string) Sentiment {
	lower := strings.ToLower(transcript)

	s := Sentiment{Overall: "neutral"}
	for _, m := range positiveMarkers {
		s.PositiveHits += strings.Count(lower, m)
	}
	for _, m := range negativeMarkers {
		s.NegativeHits += strings.Count(lower, m)
	}
	for _, m := range engagementMarkers {
		if strings.Contains(lower, m) {
			s.EngagementCue = true
			break
		}
	}

	total := s.PositiveHits + s.NegativeHits
	switch {
	case total == 0:
		s.Confidence = 0.3
	case s.PositiveHits > s.NegativeHits:
		s.Overall = "positive"
		s.Confidence = float64(s.PositiveHits) / float64(total)
	case s.NegativeHits > s.PositiveHits:
		s.Overall = "negative"
		s.Confidence = float64(s.NegativeHits) / float64(total)
	default:
		s.Confidence = 0.5
	}
	return s
}
