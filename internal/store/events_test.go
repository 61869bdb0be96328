package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)

	first := appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 1000)
	second := appendTestEvent(t, s, "ACE", "UI_BLOCK_6S", 4000)

	assert.Greater(t, first, int64(0))
	assert.Greater(t, second, first)
}

func TestAppend_ExplicitSeqIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := Record{Seq: 77, Domain: "AAFWK", EventID: "LIFECYCLE_TIMEOUT", Timestamp: 1000, Pid: 10}

	seq1, err := s.Append(ctx, rec)
	require.NoError(t, err)
	rec.Pid = 99
	seq2, err := s.Append(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, int64(77), seq1)
	assert.Equal(t, int64(77), seq2)

	got, err := s.Get(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Pid, "second append must not overwrite")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAppend_ExplicitSeqConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq := appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 1000)

	_, err := s.Append(ctx, Record{Seq: seq, Domain: "AAFWK", EventID: "LIFECYCLE_TIMEOUT", Timestamp: 1000})
	require.ErrorIs(t, err, ErrSeqConflict)

	_, err = s.Append(ctx, Record{Seq: seq, Domain: "ACE", EventID: "UI_BLOCK_3S", Timestamp: 2000})
	require.ErrorIs(t, err, ErrSeqConflict)

	got, err := s.Get(ctx, seq)
	require.NoError(t, err)
	assert.Equal(t, "UI_BLOCK_3S", got.EventID)
	assert.Equal(t, int64(1000), got.Timestamp)
}

func TestAppend_RequiresKey(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Append(context.Background(), Record{Domain: "ACE"})
	assert.Error(t, err)
}

func TestQuery_InclusiveWindowOrderedByTimestamp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 999)
	late := appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 2000)
	early := appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 1000)
	appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 2001)
	appendTestEvent(t, s, "ACE", "UI_BLOCK_6S", 1500)
	appendTestEvent(t, s, "OTHER", "UI_BLOCK_3S", 1500)

	got, err := s.Query(ctx, "ACE", []string{"UI_BLOCK_3S"}, 1000, 2000)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, early, got[0].Seq)
	assert.Equal(t, late, got[1].Seq)
}

func TestQuery_MultipleEventIDs(t *testing.T) {
	s := createTestStore(t)

	appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 1000)
	appendTestEvent(t, s, "ACE", "UI_BLOCK_6S", 1000)
	appendTestEvent(t, s, "ACE", "UI_BLOCK_RECOVERED", 1000)

	got, err := s.Query(context.Background(), "ACE", []string{"UI_BLOCK_3S", "UI_BLOCK_6S"}, 0, 5000)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestQuery_EmptyResults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	got, err := s.Query(ctx, "ACE", []string{"UI_BLOCK_3S"}, 0, 100)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = s.Query(ctx, "ACE", nil, 0, 100)
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = s.Query(ctx, "ACE", []string{"UI_BLOCK_3S"}, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuery_ReturnsAllFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := Record{
		Domain:      "AAFWK",
		EventID:     "APP_INPUT_BLOCK",
		Timestamp:   1234,
		Pid:         10,
		Tid:         11,
		Uid:         20010,
		PackageName: "com.example",
		ProcessName: "com.example:ui",
		Message:     `blocked\nfor 5s`,
		Info:        "logPath:/data/log/eventlog/a.log,tid:11",
		HitraceTime: "20260101",
		SysrqTime:   "20260102",
	}
	seq, err := s.Append(ctx, want)
	require.NoError(t, err)
	want.Seq = seq

	got, err := s.Query(ctx, "AAFWK", []string{"APP_INPUT_BLOCK"}, 1234, 1234)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestMarkConsumed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq := appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 1000)

	require.NoError(t, s.MarkConsumed(ctx, seq, 1))
	require.NoError(t, s.MarkConsumed(ctx, seq, 0))
	require.NoError(t, s.MarkConsumed(ctx, seq, 1))

	got, err := s.Get(ctx, seq)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, got.ConsumedBy)
	assert.True(t, got.IsConsumedBy(1))
	assert.False(t, got.IsConsumedBy(2))
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), 123)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPrune(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 1000)
	appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 2000)
	keep := appendTestEvent(t, s, "ACE", "UI_BLOCK_3S", 3000)

	n, err := s.Prune(ctx, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.Get(ctx, keep)
	assert.NoError(t, err)
}
