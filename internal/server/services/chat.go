package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/logging"
)

const maxChatMessage = 4000

type Chatter interface {
	Chat(ctx context.Context, message string) (string, error)
}

type ChatService struct {
	chatter Chatter
	log     logging.Logger
}

func NewChatService(c Chatter, l logging.Logger) *ChatService {
	return &ChatService{chatter: c, log: l.With("module", "chat")}
}

func (s *ChatService) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", common.ErrValidation)
	}
	if len(message) > maxChatMessage {
		return "", fmt.Errorf("%w: message is longer than %d bytes", common.ErrValidation, maxChatMessage)
	}

	reply, err := s.chatter.Chat(ctx, message)
	if err != nil {
		s.log.Warn(ctx, "chat completion failed", "error", err)
		return "", fmt.Errorf("%w: assistant is not available", common.ErrUnavailable)
	}
	return reply, nil
}
