package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promosweep/internal/config"
	"promosweep/internal/model"
	"promosweep/internal/sweep"
)

func TestLabelQuery(t *testing.T) {
	tests := map[string]string{
		"CATEGORY_PROMOTIONS": "category:promotions",
		"CATEGORY_SOCIAL":     "category:social",
		"INBOX":               "label:inbox",
		"Label_42":            "label:label_42",
	}
	for label, want := range tests {
		assert.Equal(t, want, labelQuery(label), label)
	}
}

func TestExecutorOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Label:              "CATEGORY_PROMOTIONS",
		PageSize:           200,
		BatchSize:          250,
		UnsubscribeTimeout: 3 * time.Second,
	}
	opts := executorOptions(cfg)
	assert.Equal(t, "category:promotions", opts.Category)
	assert.Equal(t, []string{"INBOX", "CATEGORY_PROMOTIONS"}, opts.RemoveLabelIDs)
	assert.Equal(t, int64(200), opts.PageSize)
	assert.Equal(t, 250, opts.BatchSize)
	assert.Equal(t, 3*time.Second, opts.UnsubscribeTimeout)
	assert.NotEmpty(t, opts.UserAgent)

	cfg.Label = "INBOX"
	assert.Equal(t, []string{"INBOX"}, executorOptions(cfg).RemoveLabelIDs)
}

func TestScanOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{Label: "CATEGORY_PROMOTIONS", PageSize: 100, AbortOnFetchError: true}
	opts := scanOptions(cfg, nil)
	assert.Equal(t, []string{"CATEGORY_PROMOTIONS"}, opts.LabelIDs)
	assert.Equal(t, int64(100), opts.PageSize)
	assert.True(t, opts.AbortOnFetchError)
}

func TestParseAction(t *testing.T) {
	a, err := parseAction("unsubscribe")
	require.NoError(t, err)
	assert.Equal(t, model.ActionUnsubscribe, a)

	a, err = parseAction("filter")
	require.NoError(t, err)
	assert.Equal(t, model.ActionFilter, a)

	_, err = parseAction("delete")
	assert.ErrorContains(t, err, `unknown action "delete"`)
}

func TestPrintSenders(t *testing.T) {
	s := sweep.NewSenders()
	s.Add("deals@shop.com", "Shop")
	s.Add("news@daily.com", "")
	s.Add("deals@shop.com", "")

	var buf bytes.Buffer
	printSenders(&buf, s, []string{"deals@shop.com", "news@daily.com"})
	assert.Equal(t, "Shop <deals@shop.com> (2)\nnews@daily.com (1)\n", buf.String())
}

func TestPrintSummary(t *testing.T) {
	outcomes := []model.Outcome{
		{Email: "a@x.com", Action: model.ActionUnsubscribe, Status: model.StatusProcessed, Unsubscribed: true, Deleted: 4},
		{Email: "b@x.com", Action: model.ActionUnsubscribe, Status: model.StatusProcessed, Deleted: 2},
		{Email: "c@x.com", Action: model.ActionUnsubscribe, Status: model.StatusFailed, Err: "trash messages from c@x.com: boom"},
	}
	var buf bytes.Buffer
	failed := printSummary(&buf, outcomes, 3)

	assert.Equal(t, 1, failed)
	out := buf.String()
	assert.Contains(t, out, "a@x.com: 4 deleted\n")
	assert.Contains(t, out, "b@x.com: 2 deleted, unsubscribe not possible")
	assert.Contains(t, out, "c@x.com: trash messages from c@x.com: boom")
	assert.Contains(t, out, "Processed 3 of 3 senders: 1 failed, 1 unsubscribed, 6 messages moved to trash.")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No history yet.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []model.Outcome{
		{Email: "a@x.com", Action: model.ActionFilter, Status: model.StatusFailed, Err: "quota"},
		{Email: "b@x.com", Action: model.ActionUnsubscribe, Status: model.StatusProcessed, Unsubscribed: true, Deleted: 9},
	})
	out := buf.String()
	assert.Contains(t, out, "SENDER")
	assert.Contains(t, out, "a@x.com  quota")
	assert.Contains(t, out, "b@x.com  (unsubscribed)")
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROMOSWEEP_CONFIG_DIR", dir)
	t.Setenv("PROMOSWEEP_MAX_SENDERS", "7")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"config", "init"})
	require.NoError(t, rootCmd.Execute())
	path := filepath.Join(dir, "config.yaml")
	assert.Contains(t, buf.String(), "Config written to "+path)
	_, err := os.Stat(path)
	require.NoError(t, err)

	buf.Reset()
	rootCmd.SetArgs([]string{"config", "init"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Config already exists")

	buf.Reset()
	rootCmd.SetArgs([]string{"config", "show"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "max_senders: 7")
	assert.Contains(t, buf.String(), "label: CATEGORY_PROMOTIONS")
}

func TestBatchRejectsUnknownAction(t *testing.T) {
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		batchAction = ""
	})
	rootCmd.SetArgs([]string{"batch", "--action", "archive"})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "unknown action")
}
