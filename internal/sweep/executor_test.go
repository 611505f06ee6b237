package sweep

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promosweep/internal/gmail"
	"promosweep/internal/model"
)

func newTestExecutor(f *fakeProvider, mutate ...func(*ExecutorOptions)) *Executor {
	opts := DefaultExecutorOptions()
	opts.UnsubscribeTimeout = 2 * time.Second
	for _, m := range mutate {
		m(&opts)
	}
	return NewExecutor(f, opts, nil)
}

// withLatest registers msg as the newest message from email.
func withLatest(f *fakeProvider, email string, headers ...model.Header) {
	id := "latest-" + email
	f.messages[id] = &model.Message{ID: id, Headers: append([]model.Header{{Name: "From", Value: email}}, headers...)}
	f.queryIDs["from:"+email] = []string{id, "older-" + email}
}

func TestCreateFilter(t *testing.T) {
	f := newFakeProvider()
	require.NoError(t, newTestExecutor(f).CreateFilter(context.Background(), "deals@shop.com"))
	require.Len(t, f.filters, 1)
	assert.Equal(t, model.FilterRule{From: "deals@shop.com", AddLabelIDs: []string{gmail.LabelTrash}}, f.filters[0])
}

func TestCreateFilter_Rejected(t *testing.T) {
	f := newFakeProvider()
	f.filterErr = &gmail.APIError{Op: "create filter", Code: 400, Err: errProvider}

	err := newTestExecutor(f).CreateFilter(context.Background(), "deals@shop.com")
	var fe *FilterCreationError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "deals@shop.com", fe.Email)
	var apiErr *gmail.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestUnsubscribe_NoMessages(t *testing.T) {
	f := newFakeProvider()
	assert.False(t, newTestExecutor(f).Unsubscribe(context.Background(), "ghost@x.com"))
	assert.Empty(t, f.sent)
}

func TestUnsubscribe_NoHeader(t *testing.T) {
	f := newFakeProvider()
	withLatest(f, "a@x.com")
	assert.False(t, newTestExecutor(f).Unsubscribe(context.Background(), "a@x.com"))
	assert.Equal(t, []model.MessageFormat{model.FormatFull}, f.getFormats["latest-a@x.com"])
}

func TestUnsubscribe_LookupErrorIsFalse(t *testing.T) {
	f := newFakeProvider()
	f.listErr = errProvider
	assert.False(t, newTestExecutor(f).Unsubscribe(context.Background(), "a@x.com"))
}

func TestUnsubscribe_HeaderFetchErrorIsFalse(t *testing.T) {
	f := newFakeProvider()
	withLatest(f, "a@x.com")
	f.getErr["latest-a@x.com"] = errProvider
	assert.False(t, newTestExecutor(f).Unsubscribe(context.Background(), "a@x.com"))
}

func TestUnsubscribe_MailtoBeatsHTTP(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	f := newFakeProvider()
	withLatest(f, "news@y.com", model.Header{
		Name:  "List-Unsubscribe",
		Value: "<mailto:x@y.com?subject=bye>, <" + srv.URL + "/unsub>",
	})

	ok := newTestExecutor(f).Unsubscribe(context.Background(), "news@y.com")
	require.True(t, ok)
	assert.Zero(t, atomic.LoadInt32(&hits))
	require.Len(t, f.sent, 1)

	mr, err := mail.CreateReader(bytes.NewReader(f.sent[0]))
	require.NoError(t, err)
	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "x@y.com", to[0].Address)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "bye", subject)
}

func TestUnsubscribe_MailtoDefaultSubject(t *testing.T) {
	f := newFakeProvider()
	withLatest(f, "a@x.com", model.Header{Name: "list-unsubscribe", Value: "<mailto:leave@x.com>"})

	require.True(t, newTestExecutor(f).Unsubscribe(context.Background(), "a@x.com"))
	mr, err := mail.CreateReader(bytes.NewReader(f.sent[0]))
	require.NoError(t, err)
	subject, _ := mr.Header.Subject()
	assert.Equal(t, "unsubscribe", subject)
}

func TestUnsubscribe_SendFailureIsFalse(t *testing.T) {
	f := newFakeProvider()
	f.sendErr = errProvider
	withLatest(f, "a@x.com", model.Header{Name: "List-Unsubscribe", Value: "<mailto:leave@x.com>"})
	assert.False(t, newTestExecutor(f).Unsubscribe(context.Background(), "a@x.com"))
}

func TestUnsubscribe_HTTPAnyStatusIsTrue(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFakeProvider()
	withLatest(f, "a@x.com", model.Header{Name: "List-Unsubscribe", Value: "<" + srv.URL + "/u?id=1>"})

	assert.True(t, newTestExecutor(f).Unsubscribe(context.Background(), "a@x.com"))
	assert.Equal(t, "promosweep/1.0", ua)
	assert.Empty(t, f.sent)
}

func TestUnsubscribe_HTTPTimeoutIsFalse(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := newFakeProvider()
	withLatest(f, "a@x.com", model.Header{Name: "List-Unsubscribe", Value: "<" + srv.URL + ">"})
	e := newTestExecutor(f, func(o *ExecutorOptions) { o.UnsubscribeTimeout = 50 * time.Millisecond })

	assert.False(t, e.Unsubscribe(context.Background(), "a@x.com"))
}

func TestUnsubscribe_HTTPConnectionFailureIsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := newFakeProvider()
	withLatest(f, "a@x.com", model.Header{Name: "List-Unsubscribe", Value: "<" + url + ">"})
	assert.False(t, newTestExecutor(f).Unsubscribe(context.Background(), "a@x.com"))
}

func TestDeleteMessages_NoneFoundMakesNoBatchCall(t *testing.T) {
	f := newFakeProvider()
	n, err := newTestExecutor(f).DeleteMessages(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.batches)
	assert.Equal(t, []string{queryFor("a@x.com")}, f.queries)
}

func TestDeleteMessages_SingleBatchAcrossPages(t *testing.T) {
	f := newFakeProvider()
	all := ids("m", 7)
	f.queryIDs[queryFor("a@x.com")] = all

	e := newTestExecutor(f, func(o *ExecutorOptions) { o.PageSize = 3 })
	n, err := e.DeleteMessages(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Len(t, f.queries, 3, "7 ids at 3 per page")

	require.Len(t, f.batches, 1)
	assert.Equal(t, all, f.batches[0].IDs)
	assert.Equal(t, []string{gmail.LabelTrash}, f.batches[0].AddLabelIDs)
	assert.Equal(t, []string{gmail.LabelInbox, gmail.LabelPromotions}, f.batches[0].RemoveLabelIDs)
}

func TestDeleteMessages_ExactlyBatchLimit(t *testing.T) {
	f := newFakeProvider()
	f.queryIDs[queryFor("a@x.com")] = ids("m", 1000)

	n, err := newTestExecutor(f).DeleteMessages(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	assert.Len(t, f.batches, 1)
}

func TestDeleteMessages_ChunksAboveBatchLimit(t *testing.T) {
	f := newFakeProvider()
	all := ids("m", 5)
	f.queryIDs[queryFor("a@x.com")] = all

	e := newTestExecutor(f, func(o *ExecutorOptions) { o.BatchSize = 2 })
	n, err := e.DeleteMessages(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, f.batches, 3)
	assert.Equal(t, all[0:2], f.batches[0].IDs)
	assert.Equal(t, all[2:4], f.batches[1].IDs)
	assert.Equal(t, all[4:5], f.batches[2].IDs)
}

func TestDeleteMessages_ModifyError(t *testing.T) {
	f := newFakeProvider()
	f.queryIDs[queryFor("a@x.com")] = ids("m", 2)
	f.modifyErr = errProvider

	n, err := newTestExecutor(f).DeleteMessages(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, errProvider)
	assert.Zero(t, n)
}
