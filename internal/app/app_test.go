package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolwatch/internal/config"
	"kolwatch/internal/monitor"
	"kolwatch/internal/sink"
	"kolwatch/internal/storage"
	logx "kolwatch/pkg/logx"
)

func TestExitCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitOK, ExitCode(context.Canceled))
	assert.Equal(t, ExitConfig, ExitCode(fmt.Errorf("%w: bad", ErrConfig)))
	assert.Equal(t, ExitResolution, ExitCode(fmt.Errorf("%w: nope", ErrResolution)))
	assert.Equal(t, ExitFatal, ExitCode(errors.New("boom")))
}

// fakeAPI serves users/by and recent search. Search returns post p1 from
// account 1 once the probe has been answered.
type fakeAPI struct {
	searches atomic.Int32
	resolve  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("x-rate-limit-limit", "450")
	w.Header().Set("x-rate-limit-remaining", "449")
	w.Header().Set("x-rate-limit-reset", fmt.Sprint(time.Now().Add(15*time.Minute).Unix()))
	switch r.URL.Path {
	case "/2/users/by":
		_, _ = w.Write([]byte(f.resolve))
	case "/2/tweets/search/recent":
		if r.URL.Query().Get("query") == "from:twitter" {
			_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
			return
		}
		f.searches.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"id":"p1","author_id":"1","text":"hi","created_at":"2024-05-01T10:00:00Z"}],"meta":{"result_count":1}}`))
	default:
		http.NotFound(w, r)
	}
}

const resolvedAlice = `{"data":[{"id":"1","username":"alice"}],"errors":[{"value":"ghost","detail":"Could not find user"}]}`

func writeConfig(t *testing.T, apiURL string, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
twitter:
  handles: ["@Alice", "ghost"]
  base_url: %q
monitor:
  check_interval: 1m
sink:
  driver: log
storage:
  driver: file
  path: %q
%s`, apiURL, filepath.Join(dir, "kolwatch.db"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dir
}

func setSecrets(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "tok")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHANNEL_ID", "")
}

func TestNewRejectsPlaceholderHandles(t *testing.T) {
	setSecrets(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"twitter":{"handles":["handle1"]},"sink":{"driver":"log"}}`), 0o600))

	_, err := New(Options{ConfigPath: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestNewMissingConfigFile(t *testing.T) {
	setSecrets(t)
	_, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestVerifyReportsAccounts(t *testing.T) {
	setSecrets(t)
	api := &fakeAPI{resolve: resolvedAlice}
	srv := httptest.NewServer(api)
	defer srv.Close()
	path, _ := writeConfig(t, srv.URL, "")

	var out bytes.Buffer
	a, err := New(Options{ConfigPath: path, Out: &out})
	require.NoError(t, err)
	defer a.Close()

	rep, err := a.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Probe.OK)
	assert.Equal(t, 449, rep.Probe.Quota.Remaining)
	assert.Equal(t, map[string]string{"alice": "1"}, rep.Accounts)
	assert.Equal(t, []string{"ghost"}, rep.Missing)
	assert.False(t, rep.TestMessageSent, "log sink gets no test message")
	assert.Contains(t, out.String(), "@alice: 1")
	assert.Contains(t, out.String(), "449")
}

func TestVerifyFailsWhenNothingResolves(t *testing.T) {
	setSecrets(t)
	api := &fakeAPI{resolve: `{"errors":[{"value":"alice","detail":"suspended"}]}`}
	srv := httptest.NewServer(api)
	defer srv.Close()
	path, _ := writeConfig(t, srv.URL, "")

	a, err := New(Options{ConfigPath: path, Out: &bytes.Buffer{}})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitResolution, ExitCode(err))
}

func TestRunDeliversAndJournals(t *testing.T) {
	setSecrets(t)
	api := &fakeAPI{resolve: resolvedAlice}
	srv := httptest.NewServer(api)
	defer srv.Close()
	path, _ := writeConfig(t, srv.URL, "")

	a, err := New(Options{ConfigPath: path, Out: &bytes.Buffer{}})
	require.NoError(t, err)
	store := a.store
	require.NotNil(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		recs, err := store.RecentDeliveries(context.Background(), 10)
		return err == nil && len(recs) == 1
	}, 5*time.Second, 20*time.Millisecond)

	recs, err := store.RecentDeliveries(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "p1", recs[0].PostID)
	assert.Equal(t, "alice", recs[0].Handle)
	assert.Equal(t, monitor.Permalink("", "p1"), recs[0].Permalink)
	assert.Equal(t, sink.DriverLog, recs[0].Sink)
	assert.True(t, recs[0].OK())
	assert.EqualValues(t, 1, api.searches.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, ExitOK, ExitCode(err))
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunWaitsForInFlightDelivery(t *testing.T) {
	setSecrets(t)
	api := &fakeAPI{resolve: resolvedAlice}
	srv := httptest.NewServer(api)
	defer srv.Close()

	dir := t.TempDir()
	started := filepath.Join(dir, "started")
	finished := filepath.Join(dir, "finished")
	journalPath := filepath.Join(dir, "kolwatch.db")
	body, err := json.Marshal(map[string]any{
		"twitter": map[string]any{"handles": []string{"alice"}, "base_url": srv.URL},
		"monitor": map[string]any{"check_interval": "1m", "delivery_timeout": "10s"},
		"sink": map[string]any{
			"driver": "audio",
			"audio": map[string]any{
				"player": "sh",
				"args":   []string{"-c", fmt.Sprintf("touch '%s'; sleep 1; touch '%s'", started, finished), "sh"},
			},
		},
		"storage": map[string]any{"driver": "file", "path": journalPath},
	})
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	a, err := New(Options{ConfigPath: path, Out: &bytes.Buffer{}})
	require.NoError(t, err)
	// far below the delivery time; Run must still wait for the post
	a.shutdownTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(started)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = os.Stat(finished)
	require.NoError(t, err, "delivery in flight at cancel must finish before Run returns")

	st, err := storage.Open(storage.Config{Driver: "file", Path: journalPath}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	recs, err := st.RecentDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p1", recs[0].PostID)
	assert.Equal(t, sink.DriverAudio, recs[0].Sink)
	assert.True(t, recs[0].OK())
}

func TestRunSkipVerifyStillResolves(t *testing.T) {
	setSecrets(t)
	api := &fakeAPI{resolve: `{"data":[]}`}
	srv := httptest.NewServer(api)
	defer srv.Close()
	path, _ := writeConfig(t, srv.URL, "")

	a, err := New(Options{ConfigPath: path, SkipVerify: true, Out: &bytes.Buffer{}})
	require.NoError(t, err)

	err = a.Run(context.Background())
	assert.ErrorIs(t, err, ErrResolution)
	assert.Zero(t, api.searches.Load())
}

func TestSettingsMapping(t *testing.T) {
	t.Parallel()
	cfg, err := config.Decode("c.yaml", []byte(`
twitter:
  handles: [alice]
monitor:
  check_interval: 2m
  forward_errors: false
sink:
  driver: telegram
  telegram:
    channel: "-100123"
    thread_id: 7
`))
	require.NoError(t, err)
	d, err := cfg.ParseDurations()
	require.NoError(t, err)

	mc := monitorConfig(cfg, d, true)
	assert.Equal(t, 2*time.Minute, mc.CheckInterval)
	assert.Equal(t, 2*time.Minute, mc.Lookback)
	assert.Equal(t, 15, mc.QuotaLimit)
	assert.True(t, mc.DebugFirstCheck)
	assert.True(t, mc.AnnounceStart)
	assert.False(t, mc.ForwardErrors)

	sc, err := sinkConfig(cfg, config.Secrets{})
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), sc.TelegramChat.ChatID)
	assert.Equal(t, 7, sc.TelegramChat.ThreadID)
	assert.True(t, needsTelegram(cfg))

	tc := twitterConfig(cfg, config.Secrets{BearerToken: "tok"}, d)
	assert.Equal(t, "tok", tc.BearerToken)
	assert.Equal(t, 15*time.Second, tc.Timeout)

	assert.True(t, logTarget(cfg, config.Secrets{}).IsZero())
}

func TestHealthy(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := &App{
		dur: config.Durations{CheckInterval: 3 * time.Minute, QuotaWindow: 15 * time.Minute, RequestTimeout: 15 * time.Second},
		now: func() time.Time { return now },
	}
	a.beat(now.Add(-10 * time.Minute))
	assert.True(t, a.healthy())
	a.beat(now.Add(-time.Hour))
	assert.False(t, a.healthy())
}
