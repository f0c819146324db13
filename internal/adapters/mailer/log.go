package mailer

import (
	"context"

	pkglog "github.com/Jxel117/GastanGO-sub000/pkg/log"
)

// LogSender records that a message would have been sent. The code itself is
// never logged.
type LogSender struct {
	logger pkglog.Logger
}

func NewLogSender(logger pkglog.Logger) *LogSender { return &LogSender{logger: logger} }

func (s *LogSender) SendVerificationEmail(_ context.Context, email, _ string) error {
	s.logger.Info().Str("to", email).Str("template", TemplateVerification).Msg("mail delivery disabled")
	return nil
}

func (s *LogSender) SendWelcomeEmail(_ context.Context, email, _ string) error {
	s.logger.Info().Str("to", email).Str("template", TemplateWelcome).Msg("mail delivery disabled")
	return nil
}
