// Package forum 主题讨论室：讨论室列表、消息日志、发帖与实时广播
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mindcare/internal/apiserver/realtime"
	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/keylock"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/pkg/logging"
)

// MaxContentLength 单条消息最大字符数
const MaxContentLength = 2000

// Service 讨论室业务
type Service struct {
	rooms       storage.RoomStore
	accounts    storage.ParticipantReader
	broadcaster realtime.Broadcaster
	locks       *keylock.Locker
	logger      *logging.Logger

	now      func() time.Time
	onPosted func()
}

// NewService 创建讨论室服务
func NewService(rooms storage.RoomStore, accounts storage.ParticipantReader, broadcaster realtime.Broadcaster, locks *keylock.Locker, logger *logging.Logger) *Service {
	return &Service{
		rooms:       rooms,
		accounts:    accounts,
		broadcaster: broadcaster,
		locks:       locks,
		logger:      logger.Component("forum"),
		now:         time.Now,
	}
}

// OnPosted 注册发帖成功回调（指标）
func (s *Service) OnPosted(fn func()) {
	s.onPosted = fn
}

// ListRooms 全部讨论室
func (s *Service) ListRooms(ctx context.Context) ([]*model.Room, error) {
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetMessages 按 seq 升序返回讨论室消息，after > 0 时只返回其后的消息
func (s *Service) GetMessages(ctx context.Context, roomID string, after int64) ([]*model.Message, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	msgs, err := s.rooms.ListMessages(ctx, roomID, after)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if err := s.expandAuthors(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// PostMessage 持久化消息并向 room:<id> 广播 newMessage
//
// 同一讨论室的持久化与广播在同一把锁内完成，订阅者收到的顺序与 seq 一致。
func (s *Service) PostMessage(ctx context.Context, roomID, authorID, content string) (*model.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.requireAuthor(ctx, authorID); err != nil {
		return nil, err
	}

	channel := realtime.RoomChannel(roomID)
	unlock := s.locks.Lock(channel)
	defer unlock()

	msg := &model.Message{
		ID:        model.NewID(model.PrefixMessage),
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	if err := s.rooms.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Room not found")
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := s.expandAuthors(ctx, []*model.Message{msg}); err != nil {
		return nil, err
	}

	if err := s.broadcaster.Broadcast(ctx, channel, realtime.EventNewMessage, msg); err != nil {
		// 消息已落库，广播失败只影响实时推送
		s.logger.WithContext(ctx).WithError(err).Warn("broadcast newMessage failed", "room_id", roomID)
	}
	if s.onPosted != nil {
		s.onPosted()
	}
	return msg, nil
}

func (s *Service) requireRoom(ctx context.Context, roomID string) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return apperr.NotFound("Room not found")
	}
	return nil
}

// requireAuthor 作者账号必须存在，已删除账号不能再发言
func (s *Service) requireAuthor(ctx context.Context, authorID string) error {
	found, err := s.accounts.GetParticipants(ctx, []string{authorID})
	if err != nil {
		return fmt.Errorf("get author: %w", err)
	}
	if _, ok := found[authorID]; !ok {
		return apperr.Unauthenticated("User not found")
	}
	return nil
}

// expandAuthors 展开作者（不含邮箱）
func (s *Service) expandAuthors(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.AuthorID
	}
	lookup, err := storage.LookupParticipants(ctx, s.accounts, ids)
	if err != nil {
		return fmt.Errorf("get authors: %w", err)
	}
	for _, m := range msgs {
		m.Author = lookup(m.AuthorID).Public()
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Validation("Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return apperr.Validation("Message must be at most %d characters", MaxContentLength)
	}
	return nil
}
