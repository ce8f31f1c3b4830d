package gateway

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Типы кадров.
const (
	TypeMessage = "message"
	TypeAck     = "ack"
	TypeReply   = "reply"
	TypeReact   = "react"
	TypeSend    = "send"
)

type Attachment struct {
	URL         string
	Name        string
	ContentType string
}

// Message: входящее сообщение чата.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorBot   bool
	AuthorOwner bool // автор: владелец сервера
	AuthorRoles []string
	Content     string
	Attachments []Attachment
}

type File struct {
	URL  string
	Name string
}

// Request: исходящий запрос к мосту. ID проставляет клиент.
type Request struct {
	Type      string
	ID        string
	ChannelID string
	MessageID string
	Content   string
	Files     []File
	Emoji     string
}

type Ack struct {
	ID    string
	OK    bool
	Error string
}

func (a Ack) Err() error {
	if a.OK {
		return nil
	}
	if a.Error == "" {
		return fmt.Errorf("request %s rejected", a.ID)
	}
	return fmt.Errorf("request %s: %s", a.ID, a.Error)
}

// frame: разобранный входящий кадр: ровно одно из полей не nil.
type frame struct {
	message *Message
	ack     *Ack
}

func encodeRequest(r Request) ([]byte, error) {
	fields := map[string]any{
		"type":       r.Type,
		"id":         r.ID,
		"channel_id": r.ChannelID,
	}
	if r.MessageID != "" {
		fields["message_id"] = r.MessageID
	}
	if r.Content != "" {
		fields["content"] = r.Content
	}
	if r.Emoji != "" {
		fields["emoji"] = r.Emoji
	}
	if len(r.Files) > 0 {
		files := make([]any, 0, len(r.Files))
		for _, f := range r.Files {
			files = append(files, map[string]any{"url": f.URL, "name": f.Name})
		}
		fields["files"] = files
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodeFrame(data []byte) (frame, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return frame{}, err
	}
	f := s.GetFields()
	switch t := str(f, "type"); t {
	case TypeMessage:
		m := &Message{
			ID:          str(f, "id"),
			ChannelID:   str(f, "channel_id"),
			AuthorID:    str(f, "author_id"),
			AuthorBot:   f["author_bot"].GetBoolValue(),
			AuthorOwner: f["author_owner"].GetBoolValue(),
			Content:     str(f, "content"),
		}
		for _, v := range f["author_roles"].GetListValue().GetValues() {
			m.AuthorRoles = append(m.AuthorRoles, v.GetStringValue())
		}
		for _, v := range f["attachments"].GetListValue().GetValues() {
			af := v.GetStructValue().GetFields()
			m.Attachments = append(m.Attachments, Attachment{
				URL:         str(af, "url"),
				Name:        str(af, "name"),
				ContentType: str(af, "content_type"),
			})
		}
		return frame{message: m}, nil
	case TypeAck:
		return frame{ack: &Ack{
			ID:    str(f, "id"),
			OK:    f["ok"].GetBoolValue(),
			Error: str(f, "error"),
		}}, nil
	default:
		return frame{}, fmt.Errorf("unknown frame type %q", t)
	}
}

func str(f map[string]*structpb.Value, key string) string {
	return f[key].GetStringValue()
}

// EncodeMessage и DecodeRequest: обратная сторона протокола (мост, тесты).
func EncodeMessage(m Message) ([]byte, error) {
	roles := make([]any, 0, len(m.AuthorRoles))
	for _, r := range m.AuthorRoles {
		roles = append(roles, r)
	}
	atts := make([]any, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		atts = append(atts, map[string]any{"url": a.URL, "name": a.Name, "content_type": a.ContentType})
	}
	s, err := structpb.NewStruct(map[string]any{
		"type":         TypeMessage,
		"id":           m.ID,
		"channel_id":   m.ChannelID,
		"author_id":    m.AuthorID,
		"author_bot":   m.AuthorBot,
		"author_owner": m.AuthorOwner,
		"author_roles": roles,
		"content":      m.Content,
		"attachments":  atts,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func EncodeAck(a Ack) ([]byte, error) {
	fields := map[string]any{"type": TypeAck, "id": a.ID, "ok": a.OK}
	if a.Error != "" {
		fields["error"] = a.Error
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func DecodeRequest(data []byte) (Request, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Request{}, err
	}
	f := s.GetFields()
	r := Request{
		Type:      str(f, "type"),
		ID:        str(f, "id"),
		ChannelID: str(f, "channel_id"),
		MessageID: str(f, "message_id"),
		Content:   str(f, "content"),
		Emoji:     str(f, "emoji"),
	}
	for _, v := range f["files"].GetListValue().GetValues() {
		ff := v.GetStructValue().GetFields()
		r.Files = append(r.Files, File{URL: str(ff, "url"), Name: str(ff, "name")})
	}
	return r, nil
}
