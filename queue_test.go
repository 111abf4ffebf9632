package dispatch

import "testing"

func newTestIoHandle(t *testing.T, label int) (*taskHandle, Future[int]) {
	t.Helper()
	h, f, err := newIoTaskHandle[int](nil, func(p IoPromise[int], _ ...any) int {
		p.Set(label)
		return 0
	}, nil)
	if err != nil {
		t.Fatalf("newIoTaskHandle: %v", err)
	}
	return h, Future[int]{f: f}
}

func TestQueueDequeueOrderHighBeforeNormal(t *testing.T) {
	q := newQueue(1)

	n1, _ := newTestIoHandle(t, 1)
	n2, _ := newTestIoHandle(t, 2)
	h1, _ := newTestIoHandle(t, 3)

	q.enqueue(n1, false)
	q.enqueue(n2, false)
	q.enqueue(h1, true)

	first, ok := q.dequeue()
	if !ok || first != h1 {
		t.Fatalf("expected high-priority task first")
	}
	second, ok := q.dequeue()
	if !ok || second != n1 {
		t.Fatalf("expected normal FIFO order (n1) second")
	}
	third, ok := q.dequeue()
	if !ok || third != n2 {
		t.Fatalf("expected normal FIFO order (n2) third")
	}
	if _, ok := q.dequeue(); ok {
		t.Fatalf("expected queue to be empty")
	}
}

func TestQueueSizeAndEmpty(t *testing.T) {
	q := newQueue(1)
	if !q.empty() || q.size() != 0 {
		t.Fatalf("new queue should be empty")
	}
	h, _ := newTestIoHandle(t, 1)
	q.enqueue(h, false)
	if q.empty() || q.size() != 1 {
		t.Fatalf("expected size 1 after one enqueue")
	}
}

func TestQueueCloseAbandonsResidentTasks(t *testing.T) {
	q := newQueue(1)
	h, fut := newTestIoHandle(t, 1)
	q.enqueue(h, false)

	q.close()

	_, err, ready := fut.TryGet()
	if !ready {
		t.Fatalf("expected abandoned task's future to be resolved")
	}
	if err != ErrTerminated {
		t.Fatalf("got error %v, want ErrTerminated", err)
	}

	h2, _ := newTestIoHandle(t, 2)
	if q.enqueue(h2, false) {
		t.Fatalf("enqueue after close should be rejected")
	}
}
