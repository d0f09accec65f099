package compute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerFrom(t *testing.T) {
	assert.Equal(t, DefaultWorker, WorkerFrom(context.Background()))
	assert.Equal(t, "scan-DataSet", WorkerFrom(WithWorker(context.Background(), "scan-DataSet")))
	assert.Equal(t, DefaultWorker, WorkerFrom(WithWorker(context.Background(), "")))
}

func TestPool_OneConnectionPerWorker(t *testing.T) {
	svc := NewStatic()
	p := NewPool(svc, time.Minute, nil)
	defer p.Close()

	a1, err := p.Conn(WithWorker(context.Background(), "a"))
	require.NoError(t, err)
	a2, err := p.Conn(WithWorker(context.Background(), "a"))
	require.NoError(t, err)
	b, err := p.Conn(WithWorker(context.Background(), "b"))
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, svc.Dials())
	assert.Equal(t, 2, p.Workers())
}

func TestPool_ReleaseClosesConnection(t *testing.T) {
	svc := NewStatic("igraph")
	p := NewPool(svc, time.Minute, nil)
	ctx := WithWorker(context.Background(), "a")

	c, err := p.Conn(ctx)
	require.NoError(t, err)
	p.Release("a")

	assert.ErrorIs(t, c.LoadLibrary(ctx, "igraph", "x"), ErrClosed)

	c2, err := p.Conn(ctx)
	require.NoError(t, err)
	assert.NotSame(t, c, c2)
	assert.Equal(t, 2, svc.Dials())
}

func TestPool_IdleConnectionsExpire(t *testing.T) {
	svc := NewStatic()
	p := NewPool(svc, 20*time.Millisecond, nil)
	ctx := context.Background()

	_, err := p.Conn(ctx)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = p.Conn(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Dials(), "expired connection is redialed")
}

func TestPool_DialError(t *testing.T) {
	p := NewPool(Unavailable{Label: "Rserve"}, time.Minute, nil)
	_, err := p.Conn(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, "Rserve", p.ServiceName())
	assert.Equal(t, 0, p.Workers())
}

// blockingService holds the dial of worker "slow" until release is closed.
type blockingService struct {
	*Static
	dialing chan struct{}
	release chan struct{}
}

func (s *blockingService) Dial(ctx context.Context) (Conn, error) {
	if WorkerFrom(ctx) == "slow" {
		close(s.dialing)
		<-s.release
	}
	return s.Static.Dial(ctx)
}

func TestPool_SlowDialDoesNotBlockOtherWorkers(t *testing.T) {
	svc := &blockingService{Static: NewStatic(), dialing: make(chan struct{}), release: make(chan struct{})}
	p := NewPool(svc, time.Minute, nil)
	defer p.Close()

	fast := WithWorker(context.Background(), "fast")
	_, err := p.Conn(fast)
	require.NoError(t, err)

	slow := make(chan error, 1)
	go func() {
		_, err := p.Conn(WithWorker(context.Background(), "slow"))
		slow <- err
	}()
	<-svc.dialing

	cached := make(chan error, 1)
	go func() {
		_, err := p.Conn(fast)
		cached <- err
	}()
	select {
	case err := <-cached:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cached connection lookup waited for another worker's dial")
	}

	close(svc.release)
	require.NoError(t, <-slow)
	assert.Equal(t, 2, p.Workers())
	assert.Equal(t, 2, svc.Dials())
}
