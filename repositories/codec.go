package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format. Field numbers are part of the
// on-disk format and must never be reused.
const (
	messageFieldID          protowire.Number = 1
	messageFieldRoom        protowire.Number = 2
	messageFieldAuthor      protowire.Number = 3
	messageFieldText        protowire.Number = 4
	messageFieldImageName   protowire.Number = 5
	messageFieldImageMime   protowire.Number = 6
	messageFieldLang        protowire.Number = 7
	messageFieldClientToken protowire.Number = 8
	messageFieldAt          protowire.Number = 9

	chatFieldID          protowire.Number = 1
	chatFieldName        protowire.Number = 2
	chatFieldParticipant protowire.Number = 3
	chatFieldCreatedAt   protowire.Number = 4
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(t.UnixNano()))
}

func marshalMessage(m DiskMessage) []byte {
	var b []byte
	b = appendString(b, messageFieldID, m.ID.String())
	b = appendString(b, messageFieldRoom, m.Room)
	b = appendString(b, messageFieldAuthor, m.Author)
	b = appendString(b, messageFieldText, m.Text)
	b = appendString(b, messageFieldImageName, m.ImageName)
	b = appendString(b, messageFieldImageMime, m.ImageMime)
	b = appendString(b, messageFieldLang, m.Lang)
	b = appendString(b, messageFieldClientToken, m.ClientToken)
	return appendTime(b, messageFieldAt, m.At)
}

func unmarshalMessage(b []byte) (DiskMessage, error) {
	var m DiskMessage
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) error {
		switch num {
		case messageFieldID:
			id, err := uuid.Parse(s)
			if err != nil {
				return err
			}
			m.ID = id
		case messageFieldRoom:
			m.Room = s
		case messageFieldAuthor:
			m.Author = s
		case messageFieldText:
			m.Text = s
		case messageFieldImageName:
			m.ImageName = s
		case messageFieldImageMime:
			m.ImageMime = s
		case messageFieldLang:
			m.Lang = s
		case messageFieldClientToken:
			m.ClientToken = s
		case messageFieldAt:
			m.At = time.Unix(0, int64(v)).UTC()
		}
		return nil
	})
	return m, err
}

func marshalChat(c DiskChat) []byte {
	var b []byte
	b = appendString(b, chatFieldID, c.ID)
	b = appendString(b, chatFieldName, c.Name)
	for _, p := range c.Participants {
		b = protowire.AppendTag(b, chatFieldParticipant, protowire.BytesType)
		b = protowire.AppendString(b, p)
	}
	return appendTime(b, chatFieldCreatedAt, c.CreatedAt)
}

func unmarshalChat(b []byte) (DiskChat, error) {
	var c DiskChat
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) error {
		switch num {
		case chatFieldID:
			c.ID = s
		case chatFieldName:
			c.Name = s
		case chatFieldParticipant:
			c.Participants = append(c.Participants, s)
		case chatFieldCreatedAt:
			c.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
		return nil
	})
	return c, err
}

// consumeFields walks a wire record and hands every string or varint field to fn.
// Unknown wire types are skipped so older binaries can read newer records.
func consumeFields(b []byte, fn func(num protowire.Number, s string, v uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			if err := fn(num, s, 0); err != nil {
				return err
			}
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			if err := fn(num, "", v); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// DecodeMessage reads a stored message value, for tools inspecting the database.
func DecodeMessage(b []byte) (DiskMessage, error) {
	return unmarshalMessage(b)
}

// DecodeChat reads a stored chat value, for tools inspecting the database.
func DecodeChat(b []byte) (DiskChat, error) {
	return unmarshalChat(b)
}
