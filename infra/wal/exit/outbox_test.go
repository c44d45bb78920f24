package exit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestOutbox(t *testing.T, dir string) *Outbox {
	t.Helper()
	o, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestOutboxAppendAndGet(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())

	seq, err := o.Append(KindTrade, []byte(`{"type":"trade"}`))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)

	rec, err := o.Get(seq)
	require.NoError(t, err)
	require.Equal(t, StateNew, rec.State)
	require.Equal(t, KindTrade, rec.Kind)
	require.Equal(t, []byte(`{"type":"trade"}`), rec.Payload)
}

func TestOutboxLifecycle(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())

	seq, err := o.Append(KindAccepted, []byte("a"))
	require.NoError(t, err)

	require.NoError(t, o.MarkSent(seq))
	rec, err := o.Get(seq)
	require.NoError(t, err)
	require.Equal(t, StateSent, rec.State)
	require.Equal(t, uint32(1), rec.Retries)

	require.NoError(t, o.MarkSent(seq)) // retry bumps the counter
	rec, err = o.Get(seq)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rec.Retries)

	require.NoError(t, o.MarkAcked(seq))
	rec, err = o.Get(seq)
	require.NoError(t, err)
	require.Equal(t, StateAcked, rec.State)
}

func TestOutboxScanPendingSkipsAcked(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())

	s1, _ := o.Append(KindTrade, []byte("1"))
	s2, _ := o.Append(KindTrade, []byte("2"))
	s3, _ := o.Append(KindBookUpdate, []byte("3"))

	require.NoError(t, o.MarkSent(s2))
	require.NoError(t, o.MarkAcked(s2))

	var got []uint64
	require.NoError(t, o.ScanPending(func(rec *Record) error {
		got = append(got, rec.Seq)
		return nil
	}))
	require.Equal(t, []uint64{s1, s3}, got)
}

func TestOutboxTruncateAcked(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())

	s1, _ := o.Append(KindTrade, []byte("1"))
	s2, _ := o.Append(KindTrade, []byte("2"))

	require.NoError(t, o.MarkSent(s1))
	require.NoError(t, o.MarkAcked(s1))
	require.NoError(t, o.TruncateAcked())

	_, err := o.Get(s1)
	require.Error(t, err, "acked record must be gone after truncation")

	rec, err := o.Get(s2)
	require.NoError(t, err)
	require.Equal(t, StateNew, rec.State)
}

func TestOutboxResumesSequence(t *testing.T) {
	dir := t.TempDir()

	o, err := Open(dir)
	require.NoError(t, err)
	_, err = o.Append(KindTrade, []byte("1"))
	require.NoError(t, err)
	s2, err := o.Append(KindTrade, []byte("2"))
	require.NoError(t, err)
	require.NoError(t, o.Close())

	o2, err := Open(dir)
	require.NoError(t, err)
	defer o2.Close()

	s3, err := o2.Append(KindTrade, []byte("3"))
	require.NoError(t, err)
	require.Equal(t, s2+1, s3)
}
