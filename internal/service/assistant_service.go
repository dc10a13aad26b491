package service

import (
	"context"
	"errors"
)

// AskAssistant は課題とコードをAIアシスタントへ送り、回答を呼び出し元へ返します
// 呼び出し中はロックを保持しません
func (s *ClassroomService) AskAssistant(ctx context.Context, connID string, req SolutionRequest) error {
	if s.opts.Assistant == nil {
		return ErrAssistantOff
	}
	answer, err := s.opts.Assistant.Solve(ctx, req.Content, req.Code)
	if err != nil {
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			err = &UpstreamError{Service: "assistant", Err: err}
		}
		s.alert(connID, "The assistant could not answer. Try again later.", AlertError)
		return err
	}
	s.emit.EmitTo(connID, EventSolutionAI, ContentPayload{Content: answer})
	s.log.WithField("sid", connID).Debug("assistant answer sent")
	return nil
}
