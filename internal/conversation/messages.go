package conversation

import (
	"fmt"

	"github.com/EgorLis/kingdombot/internal/kingdom"
)

const (
	PromptCountry = "🌍 What country are you from?"
	PromptLatest  = "📢 What is the latest kingdom number that opened?"
	PromptTarget  = "🎯 What kingdom number do you want to see the opening time for?"
	PromptElapsed = "⏰ How long has the latest kingdom been open? (Reply like `19h6m`, `2h`, `45m`, or `1h30m`)"

	MsgTimeout        = "⌛ You took too long to reply."
	MsgInvalidCountry = "❌ Sorry, I don't recognize that country. Please try a common country name like 'USA', 'UK', 'Germany', etc."
	MsgInvalidNumber  = "❌ Please enter a valid kingdom number."
	MsgInvalidFormat  = "❌ Invalid time format. Please use formats like `19h6m`, `2h`, `45m`, or `1h30m`"
)

// MsgInvalidRange — целевое королевство уже открылось.
func MsgInvalidRange(target, latest int) string {
	return fmt.Sprintf("❌ Kingdom %d has already opened! Please choose a kingdom number higher than %d.", target, latest)
}

// MsgTooFarAhead — прогноз дальше, чем умеет считать бот.
func MsgTooFarAhead(target int) string {
	return fmt.Sprintf("❌ Kingdom %d is too far ahead to predict. Please choose a closer kingdom number.", target)
}

// rejection подбирает текст отказа по коду ошибки.
func rejection(err error, target, latest int) string {
	switch kingdom.CodeOf(err) {
	case kingdom.CodeTimeout:
		return MsgTimeout
	case kingdom.CodeInvalidCountry:
		return MsgInvalidCountry
	case kingdom.CodeInvalidNumber:
		return MsgInvalidNumber
	case kingdom.CodeInvalidRange:
		return MsgInvalidRange(target, latest)
	case kingdom.CodeInvalidDurationFormat:
		return MsgInvalidFormat
	case kingdom.CodeTooFarAhead:
		return MsgTooFarAhead(target)
	default:
		return "❌ An error occurred while processing the command."
	}
}
