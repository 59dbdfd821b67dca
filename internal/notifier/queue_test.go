package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func TestQueueNotifier_PublishesJSON(t *testing.T) {
	pub := new(MockPublisher)
	n := NewQueueNotifier(pub)

	var published []byte
	pub.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(nil).Once()

	err := n.Send(context.Background(), "admin@bookstore.com", "New Order Alert", "Product ID 2 was ordered. Stock reduced.")
	require.NoError(t, err)
	pub.AssertExpectations(t)

	var msg Message
	require.NoError(t, json.Unmarshal(published, &msg))
	assert.Equal(t, Message{To: "admin@bookstore.com", Subject: "New Order Alert", Body: "Product ID 2 was ordered. Stock reduced."}, msg)
}

func TestQueueNotifier_PublishFailure(t *testing.T) {
	pub := new(MockPublisher)
	n := NewQueueNotifier(pub)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("channel closed")).Once()

	err := n.Send(context.Background(), "a@b.c", "s", "b")
	assert.ErrorIs(t, err, ErrNotify)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestRelay(t *testing.T) {
	next := new(MockNotifier)
	handle := Relay(next, time.Second)

	next.On("Send", mock.Anything, "admin@bookstore.com", "New Order Alert", "hello").Return(nil).Once()
	body, _ := json.Marshal(Message{To: "admin@bookstore.com", Subject: "New Order Alert", Body: "hello"})
	assert.NoError(t, handle(body))

	next.On("Send", mock.Anything, "x@y.z", "s", "b").Return(ErrNotConfigured).Once()
	body, _ = json.Marshal(Message{To: "x@y.z", Subject: "s", Body: "b"})
	assert.ErrorIs(t, handle(body), ErrNotConfigured)

	assert.ErrorIs(t, handle([]byte("{not json")), ErrNotify)
	next.AssertExpectations(t)
}
