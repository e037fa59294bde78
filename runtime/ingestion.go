package runtime

import (
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"chat-live/moderation"
	"chat-live/repositories"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var allowedImageTypes = []string{"image/png", "image/jpg", "image/jpeg"}

type inboundMessage struct {
	Text        string        `validate:"required_without=Image"`
	Image       *inboundImage `validate:"omitempty"`
	ClientToken string        `validate:"omitempty,max=128,printascii"`
}

type inboundImage struct {
	Name     string `validate:"required,max=255"`
	MimeType string `validate:"required"`
}

// IngestionPipeline turns a raw client message into a canonical, persisted record.
// It never broadcasts: the caller only hands the returned record to the router.
type IngestionPipeline struct {
	log              *slog.Logger
	repository       repositories.IMessageRepository
	moderator        *moderation.Moderator
	validate         *validator.Validate
	ingestionTimeout time.Duration
	maxContentLength int
}

// NewIngestionPipeline builds the pipeline. moderator may be nil to persist texts unchanged.
func NewIngestionPipeline(log *slog.Logger, repository repositories.IMessageRepository,
	moderator *moderation.Moderator, ingestionTimeout time.Duration, maxContentLength int) *IngestionPipeline {
	return &IngestionPipeline{
		log:              log,
		repository:       repository,
		moderator:        moderator,
		validate:         validator.New(),
		ingestionTimeout: ingestionTimeout,
		maxContentLength: maxContentLength,
	}
}

// Ingest validates, moderates and persists the message, then returns the stored record.
// The persistence call is the only blocking step; it is bounded by the ingestion timeout
// and a timeout is reported as errors.ErrPersistenceTimeout.
func (p *IngestionPipeline) Ingest(ctx context.Context, cmd chat.PostMessageCommand) (domain.Message, error) {
	if err := p.check(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}

	text := cmd.Text
	if p.moderator != nil && text != "" {
		censored, words := p.moderator.Censor(text)
		if len(words) > 0 {
			p.log.Info("Message censored", "room_id", cmd.Room, "author", cmd.UserID, "words", len(words))
		}
		text = censored
	}

	request := repositories.AppendRequest{
		Room:        cmd.Room,
		Author:      cmd.UserID,
		Body:        domain.Body{Text: text, Image: cmd.Image},
		Lang:        detectLanguage(text),
		ClientToken: cmd.ClientToken,
	}

	stored, err := p.persist(ctx, request)
	if err != nil {
		p.log.Error("Message not persisted", "room_id", cmd.Room, "author", cmd.UserID, "error", err)
		return domain.Message{}, err
	}
	return ToMessage(stored), nil
}

func (p *IngestionPipeline) persist(ctx context.Context, request repositories.AppendRequest) (repositories.DiskMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.ingestionTimeout)
	defer cancel()

	type result struct {
		message repositories.DiskMessage
		err     error
	}
	// Buffered so a late answer after timeout does not leak the goroutine
	resChan := make(chan result, 1)
	go func() {
		message, err := p.repository.AppendMessage(ctx, request)
		resChan <- result{message: message, err: err}
	}()

	select {
	case res := <-resChan:
		if res.err != nil {
			return repositories.DiskMessage{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailure, res.err)
		}
		return res.message, nil
	case <-ctx.Done():
		if stdErrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return repositories.DiskMessage{}, errors.ErrPersistenceTimeout
		}
		return repositories.DiskMessage{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailure, ctx.Err())
	}
}

func (p *IngestionPipeline) check(cmd chat.PostMessageCommand) error {
	in := inboundMessage{Text: cmd.Text, ClientToken: cmd.ClientToken}
	if cmd.Image != nil {
		in.Image = &inboundImage{Name: cmd.Image.Name, MimeType: cmd.Image.MimeType}
	}
	if err := p.validate.Struct(in); err != nil {
		return err
	}
	if p.maxContentLength > 0 {
		if err := p.validate.Var(cmd.Text, fmt.Sprintf("max=%d", p.maxContentLength)); err != nil {
			return fmt.Errorf("text longer than %d characters", p.maxContentLength)
		}
	}
	if cmd.Image != nil && !mimetype.EqualsAny(cmd.Image.MimeType, allowedImageTypes...) {
		return fmt.Errorf("image type %q is not allowed", cmd.Image.MimeType)
	}
	return nil
}

// detectLanguage returns the ISO 639-1 code of the text, empty when unsure.
func detectLanguage(text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

func ToMessage(m repositories.DiskMessage) domain.Message {
	message := domain.Message{
		ID:          m.ID,
		RoomID:      domain.RoomID(m.Room),
		AuthorID:    m.Author,
		Body:        domain.Body{Text: m.Text},
		Lang:        m.Lang,
		ClientToken: m.ClientToken,
		CreatedAt:   m.At,
	}
	if m.ImageName != "" {
		message.Body.Image = &domain.Image{Name: m.ImageName, MimeType: m.ImageMime}
	}
	return message
}

func ToMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return ToMessage(item)
	})
}
