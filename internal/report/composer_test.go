package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/freezewatch/internal/logstore"
	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/sink"
	"github.com/roach88/freezewatch/internal/watch"
)

// stubClassifier classifies by explicit key sets.
type stubClassifier struct {
	app map[watch.Key]bool
	sys map[watch.Key]bool
}

func (c stubClassifier) IsTracked(d, e string) bool {
	return c.IsApplicationEvent(d, e) || c.IsSystemEvent(d, e)
}

func (c stubClassifier) IsApplicationEvent(d, e string) bool {
	return c.app[watch.Key{Domain: d, EventID: e}]
}

func (c stubClassifier) IsSystemEvent(d, e string) bool {
	return c.sys[watch.Key{Domain: d, EventID: e}]
}

func testClassifier() stubClassifier {
	return stubClassifier{
		app: map[watch.Key]bool{
			{Domain: "ACE", EventID: "UI_BLOCK_6S"}:         true,
			{Domain: "ACE", EventID: "UI_BLOCK_3S"}:         true,
			{Domain: "AAFWK", EventID: "LIFECYCLE_TIMEOUT"}: true,
		},
		sys: map[watch.Key]bool{
			{Domain: "KERNEL_WAKEUP", EventID: "SCREEN_ON"}: true,
		},
	}
}

// recordingSink captures submitted records.
type recordingSink struct {
	mu      sync.Mutex
	records []sink.Record
	err     error
}

func (s *recordingSink) Submit(_ context.Context, rec sink.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func setupComposer(t *testing.T) (*Composer, *logstore.Store, *recordingSink) {
	t.Helper()
	logs, err := logstore.Open(filepath.Join(t.TempDir(), "faultlog"))
	require.NoError(t, err)
	rs := &recordingSink{}
	return New(testClassifier(), logs, rs, WithLocation(time.UTC)), logs, rs
}

func appGroup(resultID uint64) rules.Group {
	return rules.Group{
		ResultID: resultID,
		Edges: []rules.Edge{
			{
				FromDomain: "ACE", FromEventID: "UI_BLOCK_6S",
				ToDomain: "ACE", ToEventID: "UI_BLOCK_6S",
				Scope: rules.ScopeApp,
			},
			{
				FromDomain: "ACE", FromEventID: "UI_BLOCK_6S",
				ToDomain: "ACE", ToEventID: "UI_BLOCK_3S",
				Window: -6000, Scope: rules.ScopeApp, SamePackage: true,
			},
		},
	}
}

func uiBlockPoints(t *testing.T) (watch.Point, []watch.Point) {
	t.Helper()
	evidence := filepath.Join(t.TempDir(), "ui_block_3s.log")
	require.NoError(t, os.WriteFile(evidence,
		[]byte("main thread stack:\n  #00 pc 0001 libace.so\n  #01 pc 0002 libace.so"), 0o644))

	principal := watch.New(watch.Fields{
		Seq:         2,
		Domain:      "ACE",
		EventID:     "UI_BLOCK_6S",
		Timestamp:   1700000006000,
		Pid:         10,
		Uid:         20010,
		PackageName: "com.example",
		ProcessName: "com.example",
		Foreground:  watch.ForegroundYes,
		Message:     "UI blocked 6s",
		LogPath:     watch.NoLog,
	})
	companion := watch.New(watch.Fields{
		Seq:         1,
		Domain:      "ACE",
		EventID:     "UI_BLOCK_3S",
		Timestamp:   1700000003000,
		Pid:         10,
		Uid:         20010,
		PackageName: "com.example",
		ProcessName: "com.example",
		Message:     "UI blocked 3s",
		LogPath:     evidence,
	})
	return principal, []watch.Point{principal, companion}
}

func TestCompose_Golden(t *testing.T) {
	c, _, rs := setupComposer(t)
	principal, matched := uiBlockPoints(t)

	path, err := c.Compose(context.Background(), principal, matched, appGroup(0))
	require.NoError(t, err)

	assert.Equal(t, "appfreeze-com.example-20010-20231114221326", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "ui_block_6s", data)

	require.Len(t, rs.records, 1)
	rec := rs.records[0]
	assert.Equal(t, sink.KindAppFreeze, rec.Kind)
	assert.Equal(t, path, rec.ReportPath)
	assert.Equal(t, "com.example", rec.ProcessName)
	assert.Equal(t, int64(10), rec.Pid)
	assert.Equal(t, int64(20010), rec.Uid)
	assert.Equal(t, "UI_BLOCK_6S", rec.Reason)
	assert.Equal(t, "UI_BLOCK_6S in com.example (pid 10): 2/2 events [UI_BLOCK_3S UI_BLOCK_6S]", rec.Summary)
	assert.NotEmpty(t, rec.ID)
}

func TestCompose_IdempotentSecondCall(t *testing.T) {
	c, _, rs := setupComposer(t)
	principal, matched := uiBlockPoints(t)
	ctx := context.Background()

	first, err := c.Compose(ctx, principal, matched, appGroup(0))
	require.NoError(t, err)
	before, err := os.ReadFile(first)
	require.NoError(t, err)
	info1, err := os.Stat(first)
	require.NoError(t, err)

	second, err := c.Compose(ctx, principal, matched, appGroup(0))
	require.NoError(t, err)
	after, err := os.ReadFile(second)
	require.NoError(t, err)
	info2, err := os.Stat(second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, after)
	assert.Equal(t, info1.ModTime(), info2.ModTime())
	assert.Len(t, rs.records, 1, "second call must not resubmit")
}

func TestCompose_IdenticalInputsAreByteIdentical(t *testing.T) {
	principal, matched := uiBlockPoints(t)

	c1, _, _ := setupComposer(t)
	c2, _, _ := setupComposer(t)
	p1, err := c1.Compose(context.Background(), principal, matched, appGroup(0))
	require.NoError(t, err)
	p2, err := c2.Compose(context.Background(), principal, matched, appGroup(0))
	require.NoError(t, err)

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestCompose_ScopeFilter(t *testing.T) {
	c, _, _ := setupComposer(t)
	principal, matched := uiBlockPoints(t)
	screenOn := watch.New(watch.Fields{Domain: "KERNEL_WAKEUP", EventID: "SCREEN_ON", Timestamp: 1})

	path, err := c.Compose(context.Background(), principal, append(matched, screenOn), appGroup(0))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "SCREEN_ON")
}

func TestCompose_NothingInScope(t *testing.T) {
	c, logs, rs := setupComposer(t)
	principal, matched := uiBlockPoints(t)

	sysGroup := rules.Group{ResultID: 1, Edges: []rules.Edge{{Scope: "sys"}}}
	_, err := c.Compose(context.Background(), principal, matched, sysGroup)

	assert.ErrorIs(t, err, ErrNothingToCompose)
	assert.Empty(t, rs.records)
	files, err := logs.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCompose_SinkErrorIsNotFatal(t *testing.T) {
	c, _, rs := setupComposer(t)
	rs.err = errors.New("faultlogger unavailable")
	principal, matched := uiBlockPoints(t)

	path, err := c.Compose(context.Background(), principal, matched, appGroup(0))

	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestCompose_UnreadableEvidenceWritesHeaderOnly(t *testing.T) {
	tests := []struct {
		name    string
		logPath func(t *testing.T) string
	}{
		{
			name:    "missing file",
			logPath: func(t *testing.T) string { return filepath.Join(t.TempDir(), "gone.log") },
		},
		{
			name:    "directory",
			logPath: func(t *testing.T) string { return t.TempDir() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, rs := setupComposer(t)
			principal, matched := uiBlockPoints(t)
			fields := matched[1].Fields()
			fields.LogPath = tt.logPath(t)
			matched[1] = watch.New(fields)

			path, err := c.Compose(context.Background(), principal, matched, appGroup(0))
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "STRINGID:UI_BLOCK_3S\nTIMESTAMP:1700000003000\n")
			assert.Contains(t, string(data), "MSG:UI blocked 3s\n")
			require.Len(t, rs.records, 1)
		})
	}
}

// blindLogStore never reports an existing file, as when two tasks race
// past Lookup.
type blindLogStore struct {
	*logstore.Store
}

func (blindLogStore) Lookup(string) (string, bool) { return "", false }

func TestCompose_ConcurrentCommitSubmitsOnce(t *testing.T) {
	logs, err := logstore.Open(filepath.Join(t.TempDir(), "faultlog"))
	require.NoError(t, err)
	rs := &recordingSink{}
	c := New(testClassifier(), blindLogStore{logs}, rs, WithLocation(time.UTC))
	principal, matched := uiBlockPoints(t)

	first, err := c.Compose(context.Background(), principal, matched, appGroup(0))
	require.NoError(t, err)
	second, err := c.Compose(context.Background(), principal, matched, appGroup(0))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, rs.records, 1)
}

func TestCompose_EndToEndLifecycleTimeout(t *testing.T) {
	c, _, rs := setupComposer(t)
	principal := watch.New(watch.Fields{
		Domain:      "AAFWK",
		EventID:     "LIFECYCLE_TIMEOUT",
		Timestamp:   1000,
		Pid:         10,
		Uid:         20020,
		PackageName: "com.example",
		LogPath:     watch.NoLog,
	})
	group := rules.Group{Edges: []rules.Edge{{
		FromDomain: "AAFWK", FromEventID: "LIFECYCLE_TIMEOUT",
		ToDomain: "AAFWK", ToEventID: "LIFECYCLE_TIMEOUT",
		Scope: rules.ScopeApp,
	}}}

	path, err := c.Compose(context.Background(), principal, []watch.Point{principal}, group)
	require.NoError(t, err)

	assert.Equal(t, "appfreeze-com.example-20020-19700101000001", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "STRINGID:LIFECYCLE_TIMEOUT\n")
	require.Len(t, rs.records, 1)
}

func TestName(t *testing.T) {
	c := New(testClassifier(), nil, nil, WithLocation(time.UTC))

	tests := []struct {
		name   string
		fields watch.Fields
		app    bool
		want   string
	}{
		{
			name:   "process name preferred",
			fields: watch.Fields{EventID: "X", ProcessName: "proc", PackageName: "pkg", Uid: 1, Timestamp: 1000},
			app:    true,
			want:   "appfreeze-proc-1-19700101000001",
		},
		{
			name:   "package fallback",
			fields: watch.Fields{EventID: "X", PackageName: "pkg", Uid: 1, Timestamp: 1000},
			app:    false,
			want:   "sysfreeze-pkg-1-19700101000001",
		},
		{
			name:   "event id fallback",
			fields: watch.Fields{EventID: "SCREEN_ON", Timestamp: 1000},
			want:   "sysfreeze-SCREEN_ON-0-19700101000001",
		},
		{
			name:   "unsafe characters",
			fields: watch.Fields{EventID: "X", ProcessName: "../com.app:svc", Timestamp: 1000},
			app:    true,
			want:   "appfreeze-_com.app_svc-0-19700101000001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Name(watch.New(tt.fields), tt.app))
		})
	}
}
