package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoroTaskYieldsThenFinishes(t *testing.T) {
	var order []string

	h, f, err := newCoroTaskHandle[int](nil, func(ctx *CoroContext[int], _ ...any) int {
		order = append(order, "before-yield")
		ctx.Yield()
		order = append(order, "after-yield")
		ctx.Set(5)
		return 0
	}, nil)
	require.NoError(t, err)

	require.Equal(t, KindCoro, h.kind)

	more := h.coro.resume()
	require.True(t, more, "coroutine should report more work after yielding")
	require.Equal(t, []string{"before-yield"}, order)

	more = h.coro.resume()
	require.False(t, more, "coroutine should be finished after its second resume")
	require.Equal(t, []string{"before-yield", "after-yield"}, order)

	v, err, ready := Future[int]{f: f}.TryGet()
	require.True(t, ready)
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestCoroTaskNonZeroStatusBecomesUserError(t *testing.T) {
	h, f, err := newCoroTaskHandle[int](nil, func(ctx *CoroContext[int], _ ...any) int {
		return 7
	}, nil)
	require.NoError(t, err)

	more := h.coro.resume()
	require.False(t, more)

	_, err, ready := Future[int]{f: f}.TryGet()
	require.True(t, ready)
	require.Error(t, err)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	require.Equal(t, UserError, de.Kind)
	require.Equal(t, 7, de.Code)
}

func TestCoroTaskExplicitSetWinsOverNonZeroStatus(t *testing.T) {
	h, f, err := newCoroTaskHandle[int](nil, func(ctx *CoroContext[int], _ ...any) int {
		ctx.Set(11)
		return 3
	}, nil)
	require.NoError(t, err)

	h.coro.resume()

	v, err, ready := Future[int]{f: f}.TryGet()
	require.True(t, ready)
	require.NoError(t, err)
	require.Equal(t, 11, v)
}

func TestIoTaskRunsToCompletion(t *testing.T) {
	h, f, err := newIoTaskHandle[string](nil, func(p IoPromise[string], args ...any) int {
		p.Set(args[0].(string))
		return 0
	}, []any{"done"})
	require.NoError(t, err)

	require.Equal(t, KindIo, h.kind)
	h.io.run()

	v, err, ready := Future[string]{f: f}.TryGet()
	require.True(t, ready)
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestTaskIDsAreUniqueAndMonotonic(t *testing.T) {
	h1, _, _ := newIoTaskHandle[int](nil, func(p IoPromise[int], _ ...any) int { p.Set(0); return 0 }, nil)
	h2, _, _ := newIoTaskHandle[int](nil, func(p IoPromise[int], _ ...any) int { p.Set(0); return 0 }, nil)
	require.NotEqual(t, h1.id, h2.id)
	require.Less(t, uint64(h1.id), uint64(h2.id))
}
