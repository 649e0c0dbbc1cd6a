package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmatovnaa/bankchat/pkg/bankapi/bankapitest"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "bankchat dev\n", out)
}

func TestAnalyticsCommand(t *testing.T) {
	srv := bankapitest.NewServer()
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "backend:\n  base_url: " + srv.URL + "\nlog:\n  level: off\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	out, err := execute(t, "analytics", "--config", path, "--env-file", "")
	require.NoError(t, err)
	loc := i18n.MustLoad("en")
	assert.Contains(t, out, loc.AnalyticsTitle)
	assert.Contains(t, out, loc.AverageRating)
	assert.Equal(t, 1, srv.Calls("/api/analytics"))
}

func TestAnalyticsRejectsBadCron(t *testing.T) {
	_, err := execute(t, "analytics", "--watch", "every tuesday", "--env-file", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestWatchAnalyticsStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	require.NoError(t, watchAnalytics(ctx, "* * * * *", func() { calls++ }))
	assert.Zero(t, calls)
}
