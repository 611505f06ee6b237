package sweep

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"promosweep/internal/gmail"
	"promosweep/internal/logger"
	"promosweep/internal/model"
)

// FilterCreationError means the provider refused to create the trash filter
// (duplicate rule, invalid address, quota, ...).
type FilterCreationError struct {
	Email string
	Err   error
}

func (e *FilterCreationError) Error() string {
	return fmt.Sprintf("create filter for %s: %v", e.Email, e.Err)
}

func (e *FilterCreationError) Unwrap() error { return e.Err }

type ExecutorOptions struct {
	// Category is appended to the from: query when collecting mail to delete.
	Category string
	// RemoveLabelIDs are stripped from deleted mail; TRASH is always added.
	RemoveLabelIDs []string
	PageSize       int64
	// BatchSize caps the IDs sent per batch modify request.
	BatchSize          int
	UnsubscribeTimeout time.Duration
	// HTTPClient is used for HTTP unsubscribe links. When nil a client with
	// UnsubscribeTimeout is created.
	HTTPClient *http.Client
	UserAgent  string
}

// DefaultExecutorOptions target the Promotions category.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		Category:           "category:promotions",
		RemoveLabelIDs:     []string{gmail.LabelInbox, gmail.LabelPromotions},
		PageSize:           500,
		BatchSize:          1000,
		UnsubscribeTimeout: 10 * time.Second,
		UserAgent:          "promosweep/1.0",
	}
}

// Executor runs the three bulk actions for a single sender address.
type Executor struct {
	p    Provider
	opts ExecutorOptions
	http *http.Client
	log  logger.Logger
	now  func() time.Time
}

func NewExecutor(p Provider, opts ExecutorOptions, log logger.Logger) *Executor {
	if log == nil {
		log = logger.Discard()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.UnsubscribeTimeout}
	}
	return &Executor{p: p, opts: opts, http: hc, log: log, now: time.Now}
}

// CreateFilter adds a rule sending future mail from email to the trash.
// There is no rollback.
func (e *Executor) CreateFilter(ctx context.Context, email string) error {
	rule := model.FilterRule{From: email, AddLabelIDs: []string{gmail.LabelTrash}}
	if err := e.p.CreateFilter(ctx, rule); err != nil {
		return &FilterCreationError{Email: email, Err: err}
	}
	e.log.Info(fmt.Sprintf("Created trash filter for %s", email))
	return nil
}

// Unsubscribe tries the List-Unsubscribe header of the newest message from
// email. It never returns an error: every failure is logged and reported as
// false.
func (e *Executor) Unsubscribe(ctx context.Context, email string) bool {
	page, err := e.p.ListByQuery(ctx, gmail.FromQuery(email), "", 1)
	if err != nil {
		e.log.Warn(fmt.Sprintf("Unsubscribe %s: looking up latest message failed: %v", email, err))
		return false
	}
	if len(page.IDs) == 0 {
		e.log.Info(fmt.Sprintf("Unsubscribe %s: no messages found", email))
		return false
	}

	id := page.IDs[0]
	msg, err := e.p.GetMessage(ctx, id, model.FormatFull)
	if err != nil {
		e.log.Warn(fmt.Sprintf("Unsubscribe %s: found message %s but fetching its headers failed: %v", email, id, err))
		return false
	}
	header := msg.Header("List-Unsubscribe")
	if header == "" {
		e.log.Info(fmt.Sprintf("Unsubscribe %s: message %s has no List-Unsubscribe header", email, id))
		return false
	}

	target, ok := ParseListUnsubscribe(header)
	if !ok {
		e.log.Info(fmt.Sprintf("Unsubscribe %s: no usable mailto or http target in %q", email, header))
		return false
	}
	if target.Mailto != "" {
		return e.unsubscribeByMail(ctx, email, target)
	}
	return e.unsubscribeByHTTP(ctx, email, target.URL)
}

func (e *Executor) unsubscribeByMail(ctx context.Context, email string, target UnsubscribeTarget) bool {
	raw, err := composeUnsubscribeMail(target.Mailto, target.Subject, e.now())
	if err != nil {
		e.log.Warn(fmt.Sprintf("Unsubscribe %s: %v", email, err))
		return false
	}
	if err := e.p.SendMessage(ctx, raw); err != nil {
		e.log.Warn(fmt.Sprintf("Unsubscribe %s: sending mail to %s failed: %v", email, target.Mailto, err))
		return false
	}
	e.log.Info(fmt.Sprintf("Unsubscribe %s: sent %q to %s", email, target.Subject, target.Mailto))
	return true
}

// unsubscribeByHTTP counts any response, even non-2xx, as success.
func (e *Executor) unsubscribeByHTTP(ctx context.Context, email, link string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		e.log.Warn(fmt.Sprintf("Unsubscribe %s: bad link %q: %v", email, link, err))
		return false
	}
	if e.opts.UserAgent != "" {
		req.Header.Set("User-Agent", e.opts.UserAgent)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		e.log.Warn(fmt.Sprintf("Unsubscribe %s: GET %s failed: %v", email, link, err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	e.log.Info(fmt.Sprintf("Unsubscribe %s: GET %s -> %d", email, link, resp.StatusCode))
	return true
}

// DeleteMessages collects every message from email in the configured category
// and moves them to the trash with batch modify requests of at most
// BatchSize IDs. It returns how many messages were moved.
func (e *Executor) DeleteMessages(ctx context.Context, email string) (int, error) {
	ids, err := e.collect(ctx, gmail.FromQuery(email, e.opts.Category))
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		e.log.Info(fmt.Sprintf("No messages to delete from %s", email))
		return 0, nil
	}

	deleted := 0
	for start := 0; start < len(ids); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(ids))
		req := model.BatchModifyRequest{
			IDs:            ids[start:end],
			AddLabelIDs:    []string{gmail.LabelTrash},
			RemoveLabelIDs: e.opts.RemoveLabelIDs,
		}
		if err := e.p.BatchModify(ctx, req); err != nil {
			return deleted, fmt.Errorf("trash messages from %s: %w", email, err)
		}
		deleted += end - start
	}
	e.log.Info(fmt.Sprintf("Moved %d messages from %s to trash", deleted, email))
	return deleted, nil
}

func (e *Executor) collect(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		page, err := e.p.ListByQuery(ctx, query, pageToken, e.opts.PageSize)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		ids = append(ids, page.IDs...)
		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}
