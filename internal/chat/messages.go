package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessageService — создание, правка и мягкое удаление сообщений.
// Вызывается и REST-обработчиками, и realtime-каналом; сохранённая строка
// и форма broadcast-пейлоада одинаковы для обоих транспортов.
type MessageService struct {
	messages MessageStore
	access   *Resolver
}

func NewMessageService(messages MessageStore, access *Resolver) *MessageService {
	return &MessageService{messages: messages, access: access}
}

// SendInput — параметры отправки сообщения.
type SendInput struct {
	RoomID   int64
	SenderID int64
	Content  string
	Type     model.MessageType
	FileURL  string
	FileName string
	FileSize int64
	FileType string
	ReplyTo  *int64
}

// List возвращает страницу неудалённых сообщений в хронологическом порядке.
// Внутри страница выбирается newest-first (семантика limit/offset) и
// разворачивается перед отдачей.
func (s *MessageService) List(ctx context.Context, roomID, userID int64, limit, offset int) ([]model.Message, error) {
	if _, err := s.access.Resolve(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	page, err := s.messages.ListByRoom(ctx, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// Send проверяет вход, членство и право записи, затем сохраняет сообщение
// (вставка и touch комнаты — одна транзакция хранилища) и возвращает его
// обогащённым полями отправителя и превью цитаты.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	content := strings.TrimSpace(in.Content)
	if in.RoomID <= 0 || content == "" {
		return nil, ErrValidation
	}

	acc, err := s.access.Resolve(ctx, in.RoomID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if !acc.CanWrite() {
		return nil, ErrNotAuthorized
	}

	if in.ReplyTo != nil {
		target, err := s.messages.GetByID(ctx, *in.ReplyTo)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrValidation
		}
		if err != nil {
			return nil, err
		}
		// Цитировать можно только сообщение той же комнаты.
		if target.RoomID != in.RoomID {
			return nil, ErrValidation
		}
	}

	msgType := in.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	m := &model.Message{
		RoomID:    in.RoomID,
		SenderID:  in.SenderID,
		Type:      msgType,
		Content:   content,
		FileURL:   in.FileURL,
		FileName:  in.FileName,
		FileSize:  in.FileSize,
		FileType:  in.FileType,
		ReplyToID: in.ReplyTo,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	saved, err := s.messages.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Edit меняет текст сообщения. Разрешено отправителю либо admin/owner комнаты.
// Удалённое сообщение неизменяемо.
func (s *MessageService) Edit(ctx context.Context, messageID, userID int64, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrValidation
	}

	m, err := s.messages.GetByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, ErrMessageNotFound
	}

	if err := s.authorizeMutation(ctx, m, userID); err != nil {
		return nil, err
	}

	if err := s.messages.UpdateContent(ctx, messageID, content, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.messages.GetByID(ctx, messageID)
}

// Delete помечает сообщение удалённым, сохраняя содержимое.
// Повторное удаление — no-op с успешным исходом.
func (s *MessageService) Delete(ctx context.Context, messageID, userID int64) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}

	if err := s.authorizeMutation(ctx, m, userID); err != nil {
		return err
	}
	if m.IsDeleted {
		return nil
	}

	if err := s.messages.SoftDelete(ctx, messageID, time.Now().UTC()); err != nil {
		return err
	}
	logger.Infof("message %d deleted by user %d", messageID, userID)
	return nil
}

// authorizeMutation — общее правило edit/delete: участник комнаты, являющийся
// отправителем либо модератором (admin/owner).
func (s *MessageService) authorizeMutation(ctx context.Context, m *model.Message, userID int64) error {
	acc, err := s.access.Resolve(ctx, m.RoomID, userID)
	if err != nil {
		return err
	}
	if m.SenderID != userID && !acc.CanModerate() {
		return ErrNotAuthorized
	}
	return nil
}
