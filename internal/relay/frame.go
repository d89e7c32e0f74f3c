package relay

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EgorLis/kingdombot/internal/conversation"
)

// Типы кадров.
const (
	TypeMessage = "message" // relay -> бот: сообщение пользователя
	TypeReply   = "reply"   // бот -> relay: текст
	TypeSummary = "summary" // бот -> relay: карточка
)

var ErrBadFrame = errors.New("bad frame")

// Frame — один бинарный websocket-кадр, на проводе это google.protobuf.Struct.
type Frame struct {
	Type      string
	UserID    string
	ChannelID string
	Text      string
	Ephemeral bool
	Summary   *conversation.Summary
}

func Encode(f Frame) ([]byte, error) {
	m := map[string]any{
		"type":       f.Type,
		"user_id":    f.UserID,
		"channel_id": f.ChannelID,
	}
	if f.Text != "" {
		m["text"] = f.Text
	}
	if f.Ephemeral {
		m["ephemeral"] = true
	}
	if f.Summary != nil {
		m["summary"] = summaryMap(f.Summary)
	}

	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return proto.Marshal(st)
}

func Decode(data []byte) (Frame, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	fs := st.GetFields()

	f := Frame{
		Type:      fs["type"].GetStringValue(),
		UserID:    fs["user_id"].GetStringValue(),
		ChannelID: fs["channel_id"].GetStringValue(),
		Text:      fs["text"].GetStringValue(),
		Ephemeral: fs["ephemeral"].GetBoolValue(),
	}
	switch f.Type {
	case TypeMessage, TypeReply, TypeSummary:
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrBadFrame, f.Type)
	}
	if s := fs["summary"].GetStructValue(); s != nil {
		f.Summary = summaryFrom(s)
	}
	return f, nil
}

// replyFrame — исходящий кадр для ответа в разговоре.
func replyFrame(userID, channelID string, r conversation.Reply) Frame {
	f := Frame{
		Type:      TypeReply,
		UserID:    userID,
		ChannelID: channelID,
		Text:      r.Text,
		Ephemeral: r.Ephemeral,
	}
	if r.Summary != nil {
		f.Type = TypeSummary
		f.Summary = r.Summary
	}
	return f
}

func summaryMap(s *conversation.Summary) map[string]any {
	fields := make([]any, 0, len(s.Fields))
	for _, fl := range s.Fields {
		fields = append(fields, map[string]any{"name": fl.Name, "value": fl.Value})
	}
	m := map[string]any{
		"title":       s.Title,
		"description": s.Description,
		"footer":      s.Footer,
		"color":       s.Color,
		"fields":      fields,
	}
	// машиночитаемая часть прогноза, для клиентов, которые рисуют сами
	if res := s.Result; res != nil {
		zone := "UTC"
		if res.Request.Location != nil {
			zone = res.Request.Location.String()
		}
		m["prediction"] = map[string]any{
			"timezone":          zone,
			"latest_kingdom":    res.Request.LatestKingdom,
			"target_kingdom":    res.Request.TargetKingdom,
			"kingdoms_ahead":    res.KingdomsAhead,
			"earliest":          res.Earliest.Format(time.RFC3339),
			"likely":            res.Likely.Format(time.RFC3339),
			"latest":            res.Latest.Format(time.RFC3339),
			"countdown_seconds": int64(res.Countdown / time.Second),
		}
	}
	return m
}

// summaryFrom восстанавливает карточку без prediction: клиенту хватает текста.
func summaryFrom(st *structpb.Struct) *conversation.Summary {
	fs := st.GetFields()
	s := &conversation.Summary{
		Title:       fs["title"].GetStringValue(),
		Description: fs["description"].GetStringValue(),
		Footer:      fs["footer"].GetStringValue(),
		Color:       int(fs["color"].GetNumberValue()),
	}
	for _, v := range fs["fields"].GetListValue().GetValues() {
		ff := v.GetStructValue().GetFields()
		s.Fields = append(s.Fields, conversation.Field{
			Name:  ff["name"].GetStringValue(),
			Value: ff["value"].GetStringValue(),
		})
	}
	return s
}
