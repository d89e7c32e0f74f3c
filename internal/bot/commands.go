package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/EgorLis/kingdombot/internal/conversation"
)

const (
	CmdPing    = "ping"
	CmdHelp    = "help"
	CmdKingdom = "kingdom"

	MsgPong = "🏓 Pong! Bot is online and working!"
)

// CommandSpec — описание команды для регистрации на платформе и для !help.
type CommandSpec struct {
	Name        string
	Emoji       string
	Description string
}

// Commands — всё, что умеет бот, в порядке показа.
var Commands = []CommandSpec{
	{CmdPing, "🏓", "Test if the bot is responding"},
	{CmdKingdom, "🏰", "Predict when the next kingdom will open based on current kingdom status"},
	{CmdHelp, "❓", "Show this help message"},
}

// Command — вызов команды (слэш-команда или текст с префиксом).
type Command struct {
	Name      string
	UserID    string
	ChannelID string
}

func (bot *KingdomBot) HandleCommand(ctx context.Context, cmd Command, rp Replier) error {
	name := strings.ToLower(cmd.Name)
	if !isKnown(name) {
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
	bot.metrics.Command(name)
	bot.log.Debug("command", "name", name, "user", cmd.UserID, "channel", cmd.ChannelID)

	switch name {
	case CmdPing:
		bot.deliver(ctx, rp, conversation.Reply{Text: MsgPong}, "")

	case CmdHelp:
		bot.deliver(ctx, rp, conversation.Reply{Summary: HelpCard()}, "")

	case CmdKingdom:
		key := conversation.Key{UserID: cmd.UserID, ChannelID: cmd.ChannelID}
		bot.startConversation(ctx, key, rp)
	}
	return nil
}

// HelpCard — карточка со списком команд.
func HelpCard() *conversation.Summary {
	fields := make([]conversation.Field, 0, len(Commands))
	for _, c := range Commands {
		fields = append(fields, conversation.Field{
			Name:  fmt.Sprintf("%s /%s", c.Emoji, c.Name),
			Value: c.Description,
		})
	}
	return &conversation.Summary{
		Title:       "🤖 Bot Commands",
		Description: "Here are all the available commands:",
		Fields:      fields,
		Footer:      "Kingdom prediction bot is ready to help!",
		Color:       conversation.ColorBlue,
	}
}

// parseCommand узнаёт текстовую команду: префикс + известное имя.
// Всё остальное считается ответом в разговоре.
func (bot *KingdomBot) parseCommand(msg Message) (Command, bool) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, bot.opts.Prefix) {
		return Command{}, false
	}
	// аргументов у команд нет, важно только первое слово
	fields := strings.Fields(strings.TrimPrefix(text, bot.opts.Prefix))
	if len(fields) == 0 {
		return Command{}, false
	}
	name := strings.ToLower(fields[0])
	if !isKnown(name) {
		return Command{}, false
	}
	return Command{
		Name:      name,
		UserID:    msg.UserID,
		ChannelID: msg.ChannelID,
	}, true
}

func isKnown(name string) bool {
	for _, c := range Commands {
		if c.Name == name {
			return true
		}
	}
	return false
}
