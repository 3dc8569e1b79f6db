package catalog

import (
	"go.uber.org/zap"
)

func NewModule(remote Remote, sessions SessionReader, logger *zap.Logger) (*Controller, Service) {
	svc := NewService(remote, logger)
	uc := NewUseCase(svc, sessions)
	return NewController(uc, logger), svc
}
