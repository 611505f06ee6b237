package sweep

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"promosweep/internal/model"
)

var errProvider = errors.New("provider unavailable")

// fakeProvider is an in-memory mailbox. Listing pages through ids using the
// page index as the continuation token.
type fakeProvider struct {
	// labelIDs returned by ListByLabel, in order.
	labelIDs []string
	// queryIDs maps a search query to its matching IDs (newest first).
	queryIDs map[string][]string
	messages map[string]*model.Message

	getErr    map[string]error
	listErr   error
	filterErr error
	sendErr   error
	modifyErr error

	labelCalls int
	filters    []model.FilterRule
	batches    []model.BatchModifyRequest
	sent       [][]byte
	queries    []string
	getFormats map[string][]model.MessageFormat
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		queryIDs:   map[string][]string{},
		messages:   map[string]*model.Message{},
		getErr:     map[string]error{},
		getFormats: map[string][]model.MessageFormat{},
	}
}

// addMessage registers a message with a From header ("" for none).
func (f *fakeProvider) addMessage(id, from string, extra ...model.Header) {
	m := &model.Message{ID: id}
	if from != "" {
		m.Headers = append(m.Headers, model.Header{Name: "From", Value: from})
	}
	m.Headers = append(m.Headers, extra...)
	f.messages[id] = m
	f.labelIDs = append(f.labelIDs, id)
}

func page(ids []string, token string, size int64) (*model.MessagePage, error) {
	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, err
		}
		start = n
	}
	if size <= 0 {
		size = 100
	}
	end := start + int(size)
	if end > len(ids) {
		end = len(ids)
	}
	p := &model.MessagePage{IDs: append([]string(nil), ids[start:end]...)}
	if end < len(ids) {
		p.NextPageToken = strconv.Itoa(end)
	}
	return p, nil
}

func (f *fakeProvider) ListByLabel(ctx context.Context, labelIDs []string, pageToken string, pageSize int64) (*model.MessagePage, error) {
	f.labelCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return page(f.labelIDs, pageToken, pageSize)
}

func (f *fakeProvider) ListByQuery(ctx context.Context, query string, pageToken string, pageSize int64) (*model.MessagePage, error) {
	f.queries = append(f.queries, query)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return page(f.queryIDs[query], pageToken, pageSize)
}

func (f *fakeProvider) GetMessage(ctx context.Context, id string, format model.MessageFormat) (*model.Message, error) {
	f.getFormats[id] = append(f.getFormats[id], format)
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	m, ok := f.messages[id]
	if !ok {
		return nil, errors.New("not found: " + id)
	}
	return m, nil
}

func (f *fakeProvider) CreateFilter(ctx context.Context, rule model.FilterRule) error {
	if f.filterErr != nil {
		return f.filterErr
	}
	f.filters = append(f.filters, rule)
	return nil
}

func (f *fakeProvider) BatchModify(ctx context.Context, req model.BatchModifyRequest) error {
	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.batches = append(f.batches, req)
	return nil
}

func (f *fakeProvider) SendMessage(ctx context.Context, raw []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, raw)
	return nil
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + strconv.Itoa(i)
	}
	return out
}

func queryFor(email string) string {
	return strings.Join([]string{"from:" + email, "category:promotions"}, " ")
}
