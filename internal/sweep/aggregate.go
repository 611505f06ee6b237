package sweep

import (
	"context"
	"fmt"

	"promosweep/internal/logger"
	"promosweep/internal/model"
	"promosweep/internal/util"
)

type AggregateOptions struct {
	LabelIDs []string
	PageSize int64
	// AbortOnFetchError stops the scan on the first failed metadata fetch
	// instead of skipping that message.
	AbortOnFetchError bool
	Progress          func(AggregateProgress)
	Log               logger.Logger
}

type AggregateProgress struct {
	Pages   int
	Scanned int
	Skipped int
}

type AggregateResult struct {
	Senders *Senders
	Scanned int // messages whose From header was counted
	NoFrom  int // messages without a usable From header
	Skipped int // messages whose metadata could not be fetched
}

// Aggregate pages through every message carrying opts.LabelIDs, reads each
// From header and counts messages per sender address. Calls are sequential.
func Aggregate(ctx context.Context, p Provider, opts AggregateOptions) (*AggregateResult, error) {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	res := &AggregateResult{Senders: NewSenders()}
	pages := 0
	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := p.ListByLabel(ctx, opts.LabelIDs, pageToken, opts.PageSize)
		if err != nil {
			return res, fmt.Errorf("list messages: %w", err)
		}
		pages++
		log.Debug(fmt.Sprintf("Page %d: %d messages", pages, len(page.IDs)))

		for _, id := range page.IDs {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			msg, err := p.GetMessage(ctx, id, model.FormatMetadata)
			if err != nil {
				if opts.AbortOnFetchError {
					return res, fmt.Errorf("fetch message %s: %w", id, err)
				}
				res.Skipped++
				log.Warn(fmt.Sprintf("Skipping message %s: %v", id, err))
				continue
			}
			from := msg.Header("From")
			if from == "" {
				res.NoFrom++
				continue
			}
			email, name := util.ParseFrom(from)
			if email == "" {
				res.NoFrom++
				log.Debug(fmt.Sprintf("Message %s: no address in From %q", id, from))
				continue
			}
			res.Senders.Add(email, name)
			res.Scanned++
		}

		if opts.Progress != nil {
			opts.Progress(AggregateProgress{Pages: pages, Scanned: res.Scanned, Skipped: res.Skipped})
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	log.Info(fmt.Sprintf("Found %d senders in %d messages (%d without a sender, %d skipped)",
		res.Senders.Len(), res.Scanned, res.NoFrom, res.Skipped))
	return res, nil
}
