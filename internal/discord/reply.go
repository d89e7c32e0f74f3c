package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/EgorLis/kingdombot/internal/bot"
	"github.com/EgorLis/kingdombot/internal/conversation"
)

// api — то, что нужно от *discordgo.Session для отправки.
type api interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// channelReplier отвечает обычным сообщением в канал (текстовые команды).
type channelReplier struct {
	api       api
	channelID string
}

func newChannelReplier(a api, channelID string) *channelReplier {
	return &channelReplier{api: a, channelID: channelID}
}

func (r *channelReplier) Reply(_ context.Context, rep conversation.Reply) error {
	_, err := r.api.ChannelMessageSendComplex(r.channelID, &discordgo.MessageSend{
		Content: rep.Text,
		Embeds:  embeds(rep.Summary),
	})
	return classify(err)
}

// interactionReplier: первый ответ — response на interaction, дальше followup'ы.
type interactionReplier struct {
	api         api
	interaction *discordgo.Interaction

	mu        sync.Mutex
	responded bool
}

func newInteractionReplier(a api, i *discordgo.Interaction) *interactionReplier {
	return &interactionReplier{api: a, interaction: i}
}

func (r *interactionReplier) Reply(_ context.Context, rep conversation.Reply) error {
	var flags discordgo.MessageFlags
	if rep.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.responded {
		err := r.api.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: rep.Text,
				Embeds:  embeds(rep.Summary),
				Flags:   flags,
			},
		})
		if err != nil {
			return classify(err)
		}
		r.responded = true
		return nil
	}

	_, err := r.api.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Content: rep.Text,
		Embeds:  embeds(rep.Summary),
		Flags:   flags,
	})
	return classify(err)
}

// Embed рисует карточку.
func Embed(s *conversation.Summary) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	e := &discordgo.MessageEmbed{
		Title:       s.Title,
		Description: s.Description,
		Color:       s.Color,
		Fields:      fields,
	}
	if s.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: s.Footer}
	}
	return e
}

func embeds(s *conversation.Summary) []*discordgo.MessageEmbed {
	if s == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{Embed(s)}
}

// classify помечает отказ по правам как bot.ErrMissingPermissions.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %w", bot.ErrMissingPermissions, err)
		}
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", bot.ErrMissingPermissions, err)
	}
	return err
}
