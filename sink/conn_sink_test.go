package sink

import (
	"context"
	"sync"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestConnSink_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnSink(2)

	req.NoError(s.Consume(ctx, event.NewMessage{Message: domain.Message{Content: "one"}}))
	req.NoError(s.Consume(ctx, event.NewMessage{Message: domain.Message{Content: "two"}}))

	// Then the third push is dropped instead of blocking the fan-out loop
	err := s.Consume(ctx, event.NewMessage{Message: domain.Message{Content: "three"}})
	req.ErrorIs(err, errors.ErrDeliveryDropped)

	// And the buffered events are intact
	first := (<-s.Events).(event.NewMessage)
	second := (<-s.Events).(event.NewMessage)
	req.Equal("one", first.Message.Content)
	req.Equal("two", second.Message.Content)
}

func TestConnSink_CloseEndsTheDrain(t *testing.T) {
	req := require.New(t)
	s := NewConnSink(1)
	s.Close()

	_, open := <-s.Events
	req.False(open)

	// Closing twice is harmless
	s.Close()
}

func TestConnSink_ConsumeAfterCloseIsDropped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnSink(4)
	s.Close()

	// The fan-out may still hold the sink after the transport tore down;
	// a late push reports a drop instead of panicking.
	err := s.Consume(ctx, event.NewMessage{Message: domain.Message{Content: "late"}})
	req.ErrorIs(err, errors.ErrDeliveryDropped)
}

func TestConnSink_CloseRacesConsume(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		s := NewConnSink(1)
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 10; n++ {
					_ = s.Consume(ctx, event.NewMessage{Message: domain.Message{Content: "x"}})
				}
			}()
		}
		s.Close()
		wg.Wait()
	}
}
