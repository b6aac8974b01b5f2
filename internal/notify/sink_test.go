package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu        sync.Mutex
	posted    []Notification
	dismissed []string
}

func (r *recordingPublisher) NotificationPosted(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posted = append(r.posted, n)
}

func (r *recordingPublisher) NotificationDismissed(tenantID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissed = append(r.dismissed, id)
}

func (r *recordingPublisher) dismissedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dismissed...)
}

func TestSink_LatestReplacesCurrent(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewSink(Config{TTL: time.Minute}, pub, zaptest.NewLogger(t))
	defer sink.Close()

	first := sink.Notify("tenant-1", KindError, "Falha ao conectar")
	second := sink.Notify("tenant-1", KindSuccess, "Dispositivo conectado")

	active := sink.Active("tenant-1")
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, []string{first.ID}, pub.dismissedIDs())
	assert.Len(t, pub.posted, 2)
}

func TestSink_QueueIsPerTenant(t *testing.T) {
	sink := NewSink(Config{QueueSize: 2, TTL: time.Minute}, nil, zaptest.NewLogger(t))
	defer sink.Close()

	sink.Notify("tenant-1", KindSuccess, "a")
	sink.Notify("tenant-1", KindSuccess, "b")
	sink.Notify("tenant-1", KindSuccess, "c")
	sink.Notify("tenant-2", KindUpgrade, "upgrade")

	active := sink.Active("tenant-1")
	require.Len(t, active, 2)
	assert.Equal(t, "b", active[0].Message)
	assert.Equal(t, "c", active[1].Message)
	assert.Len(t, sink.Active("tenant-2"), 1)
}

func TestSink_Dismiss(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewSink(Config{TTL: time.Minute}, pub, zaptest.NewLogger(t))
	defer sink.Close()

	n := sink.Notify("tenant-1", KindError, "boom")

	assert.False(t, sink.Dismiss("tenant-2", n.ID), "other tenants cannot dismiss")
	assert.True(t, sink.Dismiss("tenant-1", n.ID))
	assert.False(t, sink.Dismiss("tenant-1", n.ID))
	assert.Empty(t, sink.Active("tenant-1"))
	assert.Equal(t, []string{n.ID}, pub.dismissedIDs())
}

func TestSink_AutoDismiss(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewSink(Config{TTL: 20 * time.Millisecond}, pub, zaptest.NewLogger(t))
	defer sink.Close()

	n := sink.Notify("tenant-1", KindSuccess, "ok")
	assert.Equal(t, n.CreatedAt.Add(20*time.Millisecond), n.ExpiresAt)

	assert.Eventually(t, func() bool {
		return len(sink.Active("tenant-1")) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{n.ID}, pub.dismissedIDs())
}

func TestSink_Defaults(t *testing.T) {
	sink := NewSink(Config{}, nil, zaptest.NewLogger(t))
	defer sink.Close()

	assert.Equal(t, DefaultQueueSize, sink.cfg.QueueSize)
	assert.Equal(t, DefaultTTL, sink.cfg.TTL)
}
