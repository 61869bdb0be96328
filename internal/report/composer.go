package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/freezewatch/internal/logstore"
	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/sink"
	"github.com/roach88/freezewatch/internal/watch"
)

// ErrNothingToCompose is returned when no matched point survives the scope
// filter.
var ErrNothingToCompose = errors.New("no matched point in scope")

// Separator opens every block of a composed report.
const Separator = "*******************************************"

const timeLayout = "20060102150405"

// LogStore is the bounded store composed reports are written to.
// *logstore.Store implements it.
type LogStore interface {
	Lookup(name string) (string, bool)
	Create(name string) (*logstore.Pending, error)
}

// Option configures a Composer.
type Option func(*Composer)

// WithLocation sets the time zone used in report names. Defaults to
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Composer) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// Composer builds and submits freeze reports. It holds no per-call state
// and is safe for concurrent use.
type Composer struct {
	classifier rules.Classifier
	logs       LogStore
	sink       sink.Sink
	loc        *time.Location
}

// New creates a Composer.
func New(classifier rules.Classifier, logs LogStore, s sink.Sink, opts ...Option) *Composer {
	c := &Composer{
		classifier: classifier,
		logs:       logs,
		sink:       s,
		loc:        time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose writes the report for principal and the points matched by group,
// submits a fault record, and returns the report path.
//
// If the report already exists its path is returned unchanged. Sink
// failures are logged and do not fail the call.
func (c *Composer) Compose(ctx context.Context, principal watch.Point, matched []watch.Point, group rules.Group) (string, error) {
	application := group.IsApplication()
	points := c.inScope(matched, application)
	if len(points) == 0 {
		return "", ErrNothingToCompose
	}

	name := c.Name(principal, application)
	if path, ok := c.logs.Lookup(name); ok {
		slog.Debug("report already composed", "name", name, "path", path)
		return path, nil
	}

	pending, err := c.logs.Create(name)
	if err != nil {
		return "", fmt.Errorf("compose %s: %w", name, err)
	}
	if err := writeReport(pending, principal, points); err != nil {
		if abortErr := pending.Abort(); abortErr != nil {
			slog.Warn("failed to discard partial report", "name", name, "error", abortErr)
		}
		return "", fmt.Errorf("compose %s: %w", name, err)
	}
	path, err := pending.Commit()
	if errors.Is(err, logstore.ErrExists) {
		slog.Debug("report composed concurrently", "name", name, "path", path)
		return path, nil
	}
	if err != nil {
		return "", fmt.Errorf("compose %s: %w", name, err)
	}

	rec := c.record(principal, points, group, application, path)
	if err := c.sink.Submit(ctx, rec); err != nil {
		slog.Warn("fault submission failed", "report", path, "id", rec.ID, "error", err)
	}

	slog.Info("freeze report composed",
		"report", path,
		"kind", rec.Kind,
		"principal", principal.Key().String(),
		"result_id", group.ResultID,
		"points", len(points))
	return path, nil
}

// Name returns the deterministic report file name for principal.
func (c *Composer) Name(principal watch.Point, application bool) string {
	tag := "sysfreeze"
	if application {
		tag = "appfreeze"
	}
	ts := time.UnixMilli(principal.Timestamp()).In(c.loc).Format(timeLayout)
	return fmt.Sprintf("%s-%s-%d-%s", tag, sanitize(displayName(principal)), principal.Uid(), ts)
}

// inScope keeps the points classified in the group's scope, deduplicated
// and ordered.
func (c *Composer) inScope(points []watch.Point, application bool) []watch.Point {
	kept := make([]watch.Point, 0, len(points))
	for _, p := range points {
		var ok bool
		if application {
			ok = c.classifier.IsApplicationEvent(p.Domain(), p.EventID())
		} else {
			ok = c.classifier.IsSystemEvent(p.Domain(), p.EventID())
		}
		if ok {
			kept = append(kept, p)
		}
	}
	return watch.Dedupe(kept)
}

func (c *Composer) record(principal watch.Point, points []watch.Point, group rules.Group, application bool, path string) sink.Record {
	kind := sink.KindSystemFreeze
	if application {
		kind = sink.KindAppFreeze
	}
	return sink.Record{
		ID:          sink.NewID(),
		Time:        principal.Timestamp(),
		Kind:        kind,
		ReportPath:  path,
		ProcessName: displayName(principal),
		Pid:         principal.Pid(),
		Uid:         principal.Uid(),
		Reason:      principal.EventID(),
		Summary:     summary(principal, points, group),
		ResultID:    group.ResultID,
	}
}

func summary(principal watch.Point, points []watch.Point, group rules.Group) string {
	ids := make([]string, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.EventID())
	}
	return fmt.Sprintf("%s in %s (pid %d): %d/%d events [%s]",
		principal.EventID(), displayName(principal), principal.Pid(),
		len(points), group.Expected(), strings.Join(ids, " "))
}

func displayName(p watch.Point) string {
	switch {
	case p.ProcessName() != "":
		return p.ProcessName()
	case p.PackageName() != "":
		return p.PackageName()
	default:
		return p.EventID()
	}
}

// sanitize makes name safe as a single path element.
func sanitize(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			return '_'
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "unknown"
	}
	return name
}

func writeReport(w io.Writer, principal watch.Point, points []watch.Point) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, principal)
	for _, p := range points {
		if err := writeSection(bw, p); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeHeader(w *bufio.Writer, p watch.Point) {
	fmt.Fprintln(w, Separator)
	fmt.Fprintf(w, "DOMAIN:%s\n", p.Domain())
	fmt.Fprintf(w, "STRINGID:%s\n", p.EventID())
	fmt.Fprintf(w, "TIMESTAMP:%d\n", p.Timestamp())
	fmt.Fprintf(w, "PID:%d\n", p.Pid())
	fmt.Fprintf(w, "UID:%d\n", p.Uid())
	fmt.Fprintf(w, "PACKAGE_NAME:%s\n", p.PackageName())
	fmt.Fprintf(w, "PROCESS_NAME:%s\n", p.ProcessName())
	fmt.Fprintf(w, "FOREGROUND:%s\n", p.Foreground())
	fmt.Fprintf(w, "MSG:%s\n", strings.TrimRight(p.Message(), "\n"))
}

// writeSection copies the point's evidence file, or writes its header when
// the evidence is not a readable regular file. Only write errors are
// returned.
func writeSection(w *bufio.Writer, p watch.Point) error {
	data, err := readEvidence(p)
	if err != nil {
		slog.Debug("evidence unreadable, writing header only", "path", p.LogPath(), "error", err)
		writeHeader(w, p)
		return nil
	}
	if data == nil {
		writeHeader(w, p)
		return nil
	}

	fmt.Fprintln(w, Separator)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("merge %s: %w", p.LogPath(), err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		return w.WriteByte('\n')
	}
	return nil
}

// readEvidence returns the contents of the point's evidence file, or nil
// when the point carries none.
func readEvidence(p watch.Point) ([]byte, error) {
	if !p.HasEvidence() {
		return nil, nil
	}
	info, err := os.Stat(p.LogPath())
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", p.LogPath())
	}
	data, err := os.ReadFile(p.LogPath())
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}
