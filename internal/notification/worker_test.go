package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alarm-tracker-backend/config"
	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/model"
	"alarm-tracker-backend/internal/mq"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func activeMessage() Message {
	a := alarm.New("ALM-001", "Pump <3> pressure", t0).Toggled(t0.Add(time.Minute))
	return MessageFor(a, nil)
}

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type fakeSubs struct {
	mu      sync.Mutex
	subs    []model.PushSubscription
	deleted []string
	err     error
}

func (f *fakeSubs) SubscriptionsForAlarm(_ context.Context, _ string) ([]model.PushSubscription, error) {
	return f.subs, f.err
}

func (f *fakeSubs) DeleteSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

type recordingChannel struct {
	name string
	err  error
	got  chan Message
}

func newRecordingChannel(name string, err error) *recordingChannel {
	return &recordingChannel{name: name, err: err, got: make(chan Message, 8)}
}

func (r *recordingChannel) Name() string { return r.name }

func (r *recordingChannel) Send(_ context.Context, msg Message) error {
	r.got <- msg
	return r.err
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, 4, zap.NewNop())

	msg := activeMessage()
	assert.True(t, wp.Dispatch(msg))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, msg, job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchDropsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, 1, zap.NewNop())

	assert.True(t, wp.Dispatch(activeMessage()))

	done := make(chan bool)
	go func() { done <- wp.Dispatch(activeMessage()) }()
	select {
	case queued := <-done:
		assert.False(t, queued)
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a full queue")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	failing := newRecordingChannel("broken", errors.New("boom"))
	ok := newRecordingChannel("ok", nil)
	wp := NewWorkerPool(2, 4, zap.NewNop(), failing, ok)
	assert.Equal(t, []string{"broken", "ok"}, wp.Channels())

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	msg := activeMessage()
	wp.Dispatch(msg)

	for _, ch := range []*recordingChannel{failing, ok} {
		select {
		case got := <-ch.got:
			assert.Equal(t, msg.AlarmID, got.AlarmID)
		case <-time.After(time.Second):
			t.Fatalf("channel %s never received the message", ch.name)
		}
	}

	cancel()
	wp.Wait()
}

func TestWorkerPool_Deliver(t *testing.T) {
	failing := newRecordingChannel("broken", errors.New("boom"))
	ok := newRecordingChannel("ok", nil)
	wp := NewWorkerPool(1, 1, nil, failing, ok)

	err := wp.Deliver(context.Background(), activeMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Len(t, ok.got, 1)

	assert.NoError(t, NewWorkerPool(1, 1, nil, ok).Deliver(context.Background(), activeMessage()))
}

func TestMessage_SubjectAndBody(t *testing.T) {
	msg := activeMessage()
	assert.Equal(t, "Alarm ALM-001 ACTIVATED", msg.Subject())
	assert.Equal(t, "activated", msg.EventType())

	html, err := msg.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<h2>Alarm ALM-001 activated</h2>")
	assert.Contains(t, html, "Pump &lt;3&gt; pressure")
	assert.Contains(t, html, "2025-03-01T12:01:00Z")
	assert.Contains(t, html, "<strong>New Status:</strong> ACTIVE")

	off := MessageFor(alarm.New("ALM-002", "", t0), nil)
	assert.Equal(t, "Alarm ALM-002 DEACTIVATED", off.Subject())
	html, err = off.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>Description:</strong> Alarm")
	assert.Contains(t, html, "INACTIVE")
}

func TestPushChannel_Send(t *testing.T) {
	subs := &fakeSubs{subs: []model.PushSubscription{
		{Endpoint: "https://example.com/push", P256DH: "test_p256dh", Auth: "test_auth"},
		{Endpoint: "https://example.com/expired", P256DH: "k", Auth: "a"},
	}}
	ch := NewPushChannel(subs, &webpush.Options{}, zap.NewNop())

	var mu sync.Mutex
	var sent []string
	ch.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			var p pushPayload
			require.NoError(t, json.Unmarshal(payload, &p))
			assert.Equal(t, "Alarm ALM-001 ACTIVATED", p.Title)
			assert.Equal(t, "ACTIVE", p.Status)

			mu.Lock()
			sent = append(sent, sub.Endpoint)
			mu.Unlock()
			if sub.Endpoint == "https://example.com/expired" {
				return response(http.StatusGone), nil
			}
			return response(http.StatusCreated), nil
		},
	}

	require.NoError(t, ch.Send(context.Background(), activeMessage()))
	assert.Equal(t, []string{"https://example.com/push", "https://example.com/expired"}, sent)
	assert.Equal(t, []string{"https://example.com/expired"}, subs.deleted)
}

func TestPushChannel_Errors(t *testing.T) {
	t.Run("lookup failure", func(t *testing.T) {
		ch := NewPushChannel(&fakeSubs{err: errors.New("db down")}, nil, zap.NewNop())
		assert.Error(t, ch.Send(context.Background(), activeMessage()))
	})

	t.Run("no subscribers", func(t *testing.T) {
		ch := NewPushChannel(&fakeSubs{}, nil, zap.NewNop())
		ch.sender = &mockSender{SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
			t.Fatal("unexpected send")
			return nil, nil
		}}
		assert.NoError(t, ch.Send(context.Background(), activeMessage()))
	})

	t.Run("push service rejects", func(t *testing.T) {
		subs := &fakeSubs{subs: []model.PushSubscription{{Endpoint: "https://example.com/bad"}}}
		ch := NewPushChannel(subs, nil, zap.NewNop())
		ch.sender = &mockSender{SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
			return response(http.StatusInternalServerError), nil
		}}
		assert.Error(t, ch.Send(context.Background(), activeMessage()))
		assert.Empty(t, subs.deleted)
	})
}

func TestEmailChannel_Send(t *testing.T) {
	var got emailRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer server.Close()

	ch, err := NewEmailChannel(config.EmailConfig{
		APIURL:     server.URL,
		APIKey:     "re_test",
		From:       "Alarm <alerts@example.com>",
		Recipients: []string{"ops@example.com"},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "email", ch.Name())

	require.NoError(t, ch.Send(context.Background(), activeMessage()))
	assert.Equal(t, "Bearer re_test", auth)
	assert.Equal(t, "Alarm <alerts@example.com>", got.From)
	assert.Equal(t, []string{"ops@example.com"}, got.To)
	assert.Equal(t, "Alarm ALM-001 ACTIVATED", got.Subject)
	assert.Contains(t, got.HTML, "Pump &lt;3&gt; pressure")

	// Recipients on the message override the configured list.
	msg := activeMessage()
	msg.Recipients = []string{"oncall@example.com"}
	require.NoError(t, ch.Send(context.Background(), msg))
	assert.Equal(t, []string{"oncall@example.com"}, got.To)
}

func TestEmailChannel_Errors(t *testing.T) {
	_, err := NewEmailChannel(config.EmailConfig{}, zap.NewNop())
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer server.Close()

	ch, err := NewEmailChannel(config.EmailConfig{APIURL: server.URL, APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, ch.Send(context.Background(), activeMessage()), ErrNoRecipients)

	msg := activeMessage()
	msg.Recipients = []string{"a@example.com"}
	err = ch.Send(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

type fakePublisher struct {
	key string
	msg any
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, msg any) error {
	f.key = routingKey
	f.msg = msg
	return nil
}

func TestQueueChannel_Send(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewQueueChannel(pub)
	assert.Equal(t, "queue", ch.Name())

	msg := activeMessage()
	require.NoError(t, ch.Send(context.Background(), msg))
	assert.Equal(t, mq.RoutingStatusChange, pub.key)
	assert.Equal(t, msg, pub.msg)
}
