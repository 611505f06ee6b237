package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"promosweep/internal/model"
)

const user = "me"

// Well-known Gmail system label IDs.
const (
	LabelInbox      = "INBOX"
	LabelTrash      = "TRASH"
	LabelPromotions = "CATEGORY_PROMOTIONS"
)

// APIError wraps any failed Gmail API call with the operation that failed and,
// when the API returned one, the HTTP status code.
type APIError struct {
	Op   string
	Code int
	Err  error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gmail %s: %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("gmail %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func apiError(op string, err error) error {
	e := &APIError{Op: op, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		e.Code = gerr.Code
	}
	return e
}

// Client exposes the handful of Gmail verbs promosweep needs.
type Client struct {
	svc *gmailv1.Service
}

// NewClient builds a Gmail client on top of an already-authorized HTTP client.
// Extra options (e.g. option.WithEndpoint) are passed through.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Profile returns the authenticated account's email address.
func (c *Client) Profile(ctx context.Context) (string, error) {
	p, err := c.svc.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return "", apiError("get profile", err)
	}
	return p.EmailAddress, nil
}

// ListByLabel returns one page of message IDs carrying all of labelIDs.
func (c *Client) ListByLabel(ctx context.Context, labelIDs []string, pageToken string, pageSize int64) (*model.MessagePage, error) {
	call := c.svc.Users.Messages.List(user).LabelIds(labelIDs...)
	return c.list(ctx, call, "list messages by label", pageToken, pageSize)
}

// ListByQuery returns one page of message IDs matching a Gmail search query.
func (c *Client) ListByQuery(ctx context.Context, query string, pageToken string, pageSize int64) (*model.MessagePage, error) {
	call := c.svc.Users.Messages.List(user).Q(query)
	return c.list(ctx, call, "list messages by query", pageToken, pageSize)
}

func (c *Client) list(ctx context.Context, call *gmailv1.UsersMessagesListCall, op, pageToken string, pageSize int64) (*model.MessagePage, error) {
	if pageSize > 0 {
		call = call.MaxResults(pageSize)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, apiError(op, err)
	}
	page := &model.MessagePage{
		IDs:           make([]string, 0, len(resp.Messages)),
		NextPageToken: resp.NextPageToken,
	}
	for _, m := range resp.Messages {
		page.IDs = append(page.IDs, m.Id)
	}
	return page, nil
}

// GetMessage fetches one message. In metadata format only the From header is
// requested; full format returns every header.
func (c *Client) GetMessage(ctx context.Context, id string, format model.MessageFormat) (*model.Message, error) {
	call := c.svc.Users.Messages.Get(user, id).Format(string(format))
	if format == model.FormatMetadata {
		call = call.MetadataHeaders("From")
	}
	msg, err := call.Context(ctx).Do()
	if err != nil {
		return nil, apiError("get message "+id, err)
	}
	out := &model.Message{ID: msg.Id, ThreadID: msg.ThreadId}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			out.Headers = append(out.Headers, model.Header{Name: h.Name, Value: h.Value})
		}
	}
	return out, nil
}

// CreateFilter installs a server-side filter for future mail.
func (c *Client) CreateFilter(ctx context.Context, rule model.FilterRule) error {
	f := &gmailv1.Filter{
		Criteria: &gmailv1.FilterCriteria{From: rule.From},
		Action:   &gmailv1.FilterAction{AddLabelIds: rule.AddLabelIDs},
	}
	if _, err := c.svc.Users.Settings.Filters.Create(user, f).Context(ctx).Do(); err != nil {
		return apiError("create filter from:"+rule.From, err)
	}
	return nil
}

// BatchModify applies label changes to up to 1000 messages in one request.
func (c *Client) BatchModify(ctx context.Context, req model.BatchModifyRequest) error {
	body := &gmailv1.BatchModifyMessagesRequest{
		Ids:            req.IDs,
		AddLabelIds:    req.AddLabelIDs,
		RemoveLabelIds: req.RemoveLabelIDs,
	}
	if err := c.svc.Users.Messages.BatchModify(user, body).Context(ctx).Do(); err != nil {
		return apiError(fmt.Sprintf("batch modify %d messages", len(req.IDs)), err)
	}
	return nil
}

// SendMessage sends a raw RFC 5322 message from the authenticated account.
func (c *Client) SendMessage(ctx context.Context, raw []byte) error {
	msg := &gmailv1.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := c.svc.Users.Messages.Send(user, msg).Context(ctx).Do(); err != nil {
		return apiError("send message", err)
	}
	return nil
}

// FromQuery builds the search used to find a sender's mail. Addresses with
// spaces or quotes are quoted so they stay a single term.
func FromQuery(address string, extra ...string) string {
	term := address
	if strings.ContainsAny(address, " \t\"") {
		term = `"` + strings.ReplaceAll(address, `"`, ``) + `"`
	}
	return strings.Join(append([]string{"from:" + term}, extra...), " ")
}
