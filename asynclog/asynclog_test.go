package asynclog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l := New(t.TempDir(), "deletes")
	require.NoError(t, l.Open(0600))
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendReplay(t *testing.T) {
	l := openTestLog(t)

	require.NoError(t, l.Append("delete", []byte("k1"), 0))
	require.NoError(t, l.Append("delete", []byte("k2"), 30))

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var keys []string
	err = l.Replay(func(r *Record) error {
		assert.Equal(t, "delete", r.Op)
		assert.NotZero(t, r.Time)
		keys = append(keys, string(r.Key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, keys)
}

func TestReplayEmpty(t *testing.T) {
	l := openTestLog(t)
	err := l.Replay(func(*Record) error {
		t.Fatal("callback on empty spool")
		return nil
	})
	require.NoError(t, err)

	n, err := l.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChecksum(t *testing.T) {
	r := &Record{Op: "delete", Key: []byte("k"), Exptime: 1, Time: 2}
	sum := r.checksum()

	r.Key = []byte("other")
	assert.NotEqual(t, sum, r.checksum())
}
