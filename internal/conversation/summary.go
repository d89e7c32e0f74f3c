package conversation

import (
	"fmt"

	"github.com/EgorLis/kingdombot/internal/kingdom"
)

type Field struct {
	Name  string
	Value string
}

// Цвета карточек (как у Discord Color.gold / Color.blue).
const (
	ColorGold = 0xf1c40f
	ColorBlue = 0x3498db
)

// Summary — структурированное сообщение (карточка); хост сам решает как его
// отрисовать: embed, текст или frame. Result есть только у прогноза.
type Summary struct {
	Title       string
	Description string
	Fields      []Field
	Footer      string
	Color       int

	Result *kingdom.Result
}

const (
	FieldEarliest  = "🟢 Earliest (32h cycles)"
	FieldLikely    = "🟡 Most Likely (36h cycles)"
	FieldLatest    = "🔴 Latest (38h cycles)"
	FieldCountdown = "⏱️ Time Until Opening (Most Likely)"
)

func NewSummary(res kingdom.Result) *Summary {
	req := res.Request
	zone := "UTC"
	if req.Location != nil {
		zone = req.Location.String()
	}
	return &Summary{
		Title: fmt.Sprintf("🏰 Kingdom %d Opening Prediction", req.TargetKingdom),
		Description: fmt.Sprintf("Based on Kingdom %d being open for %dh %dm\n(%d kingdoms ahead)",
			req.LatestKingdom, req.Elapsed.Hours, req.Elapsed.Minutes, res.KingdomsAhead),
		Fields: []Field{
			{FieldEarliest, kingdom.FormatInstant(res.Earliest)},
			{FieldLikely, kingdom.FormatInstant(res.Likely)},
			{FieldLatest, kingdom.FormatInstant(res.Latest)},
			{FieldCountdown, kingdom.FormatCountdown(res.Countdown)},
		},
		Footer: fmt.Sprintf("Rise of Kingdoms Calculator • Times in %s", zone),
		Color:  ColorGold,
		Result: &res,
	}
}

// Text — плоский вариант для хостов без rich-сообщений.
func (s *Summary) Text() string {
	out := s.Title + "\n" + s.Description + "\n"
	for _, f := range s.Fields {
		out += f.Name + ": " + f.Value + "\n"
	}
	return out + s.Footer
}
