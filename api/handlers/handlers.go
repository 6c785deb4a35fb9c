package handlers

import (
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

type Handlers struct {
	Parse *ParseHandler
}

func NewHandlers(service DocumentParser, log logger.Logger) *Handlers {
	return &Handlers{
		Parse: NewParseHandler(service, log),
	}
}
