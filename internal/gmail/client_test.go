package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"promosweep/internal/model"
)

type recorded struct {
	method string
	path   string
	query  map[string][]string
	body   []byte
}

// fakeGmail serves canned JSON per "METHOD path" and records every request.
func fakeGmail(t *testing.T, routes map[string]string) (*Client, *[]recorded) {
	t.Helper()
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs = append(reqs, recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), body: body})
		resp, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, resp)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c, &reqs
}

func TestListByLabel_PassesLabelAndToken(t *testing.T) {
	c, reqs := fakeGmail(t, map[string]string{
		"GET /gmail/v1/users/me/messages": `{"messages":[{"id":"m1"},{"id":"m2"}],"nextPageToken":"tok2"}`,
	})

	page, err := c.ListByLabel(context.Background(), []string{LabelPromotions}, "tok1", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, page.IDs)
	assert.Equal(t, "tok2", page.NextPageToken)

	require.Len(t, *reqs, 1)
	q := (*reqs)[0].query
	assert.Equal(t, []string{LabelPromotions}, q["labelIds"])
	assert.Equal(t, []string{"tok1"}, q["pageToken"])
	assert.Equal(t, []string{"100"}, q["maxResults"])
}

func TestListByQuery_EmptyResult(t *testing.T) {
	c, reqs := fakeGmail(t, map[string]string{
		"GET /gmail/v1/users/me/messages": `{"resultSizeEstimate":0}`,
	})

	page, err := c.ListByQuery(context.Background(), "from:a@b.com category:promotions", "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.IDs)
	assert.Empty(t, page.NextPageToken)
	assert.Equal(t, []string{"from:a@b.com category:promotions"}, (*reqs)[0].query["q"])
	assert.NotContains(t, (*reqs)[0].query, "maxResults")
}

func TestGetMessage_MetadataHeaders(t *testing.T) {
	c, reqs := fakeGmail(t, map[string]string{
		"GET /gmail/v1/users/me/messages/m1": `{"id":"m1","threadId":"t1","payload":{"headers":[{"name":"From","value":"Shop <shop@x.com>"}]}}`,
	})

	msg, err := c.GetMessage(context.Background(), "m1", model.FormatMetadata)
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "Shop <shop@x.com>", msg.Header("from"))

	q := (*reqs)[0].query
	assert.Equal(t, []string{"metadata"}, q["format"])
	assert.Equal(t, []string{"From"}, q["metadataHeaders"])
}

func TestGetMessage_NotFoundIsAPIError(t *testing.T) {
	c, _ := fakeGmail(t, nil)

	_, err := c.GetMessage(context.Background(), "missing", model.FormatFull)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
	assert.Contains(t, apiErr.Op, "missing")
}

func TestCreateFilter_Body(t *testing.T) {
	c, reqs := fakeGmail(t, map[string]string{
		"POST /gmail/v1/users/me/settings/filters": `{"id":"f1"}`,
	})

	err := c.CreateFilter(context.Background(), model.FilterRule{From: "shop@x.com", AddLabelIDs: []string{LabelTrash}})
	require.NoError(t, err)

	var body struct {
		Criteria struct{ From string }
		Action   struct{ AddLabelIds []string }
	}
	require.NoError(t, json.Unmarshal((*reqs)[0].body, &body))
	assert.Equal(t, "shop@x.com", body.Criteria.From)
	assert.Equal(t, []string{LabelTrash}, body.Action.AddLabelIds)
}

func TestBatchModify_Body(t *testing.T) {
	c, reqs := fakeGmail(t, map[string]string{
		"POST /gmail/v1/users/me/messages/batchModify": ``,
	})

	err := c.BatchModify(context.Background(), model.BatchModifyRequest{
		IDs:            []string{"a", "b"},
		AddLabelIDs:    []string{LabelTrash},
		RemoveLabelIDs: []string{LabelInbox, LabelPromotions},
	})
	require.NoError(t, err)

	var body struct {
		Ids            []string
		AddLabelIds    []string
		RemoveLabelIds []string
	}
	require.NoError(t, json.Unmarshal((*reqs)[0].body, &body))
	assert.Equal(t, []string{"a", "b"}, body.Ids)
	assert.Equal(t, []string{LabelTrash}, body.AddLabelIds)
	assert.Equal(t, []string{LabelInbox, LabelPromotions}, body.RemoveLabelIds)
}

func TestSendMessage_EncodesRaw(t *testing.T) {
	c, reqs := fakeGmail(t, map[string]string{
		"POST /gmail/v1/users/me/messages/send": `{"id":"sent1"}`,
	})

	raw := []byte("To: x@y.com\r\nSubject: bye\r\n\r\n")
	require.NoError(t, c.SendMessage(context.Background(), raw))

	var body struct{ Raw string }
	require.NoError(t, json.Unmarshal((*reqs)[0].body, &body))
	decoded, err := base64.URLEncoding.DecodeString(body.Raw)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestFromQuery(t *testing.T) {
	assert.Equal(t, "from:a@b.com category:promotions", FromQuery("a@b.com", "category:promotions"))
	assert.Equal(t, "from:a@b.com", FromQuery("a@b.com"))
	assert.Equal(t, `from:"Weird Name@b.com"`, FromQuery("Weird Name@b.com"))
	assert.Equal(t, `from:"ab@c.com"`, FromQuery(`a"b@c.com`))
}
