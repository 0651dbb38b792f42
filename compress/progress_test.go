package compress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressGuard(t *testing.T) {
	var calls [][2]int
	p := newProgress(func(current, total int) { calls = append(calls, [2]int{current, total}) }, 100)

	cb := p.callback()
	cb(10, 0)
	cb(5, 0)   // backwards, dropped
	cb(150, 0) // clamped
	p.finish()
	cb(20, 0) // after finish, dropped

	require.Equal(t, [][2]int{{10, 100}, {100, 100}, {100, 100}}, calls)
}

func TestProgressNil(t *testing.T) {
	p := newProgress(nil, 10)
	require.Nil(t, p.callback())
	p.report(5)
	p.finish()

	var nilp *progress
	nilp.report(1)
	nilp.finish()
}

func TestCompressProgress(t *testing.T) {
	src := textBytes(100000)

	for _, method := range allMethods {
		t.Run(method.String(), func(t *testing.T) {
			last := -1
			calls := 0
			cb := func(current, total int) {
				require.Equal(t, len(src), total)
				require.GreaterOrEqual(t, current, last, "progress went backwards")
				require.LessOrEqual(t, current, total)
				last = current
				calls++
			}

			dst := make([]byte, MaxCompressedSize(len(src)))
			_, err := Compress(src, dst, cb, method, 2, nil, nil)
			require.NoError(t, err)
			require.Equal(t, len(src), last, "completion is always reported")
			require.Positive(t, calls)
		})
	}
}
