package handler

import (
	"log/slog"
	"polls/store"
	"time"
)

type Handler struct {
	Store      store.Store
	Log        *slog.Logger
	IndexLimit int
	// Now is the clock used to decide which questions are published.
	Now        func() time.Time
}

func New(s store.Store, log *slog.Logger, indexLimit int) *Handler {
	return &Handler{
		Store:      s,
		Log:        log,
		IndexLimit: indexLimit,
		Now:        time.Now,
	}
}
