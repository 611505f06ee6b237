package tui

import (
	"promosweep/internal/model"
	"promosweep/internal/sweep"
)

// Async message types for Bubble Tea commands.

type scanProgressMsg sweep.AggregateProgress

type scanCompleteMsg struct {
	result *sweep.AggregateResult
	err    error
}

// senderDoneMsg carries the outcome of processing one selected sender.
type senderDoneMsg struct {
	outcome model.Outcome
}

type noticeMsg string
