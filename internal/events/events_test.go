package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

func TestPublishDropsOnFullChannel(t *testing.T) {
	ch := make(chan Event, 1)
	var sink Sink = ch
	Publish(sink, Deployed(1))
	Publish(sink, Stopped(2, "full")) // should drop silently, not block

	ev := <-ch
	assert.Equal(t, KindDeployed, ev.Kind)
	select {
	case <-ch:
		t.Fatal("expected channel to be drained after one event")
	default:
	}
}

func TestTickCompletedCarriesMetrics(t *testing.T) {
	ev := TickCompleted(100, model.SimMetrics{FundingPnL: 5})
	assert.Equal(t, KindTickCompleted, ev.Kind)
	assert.NotNil(t, ev.Metrics)
	assert.Equal(t, 5.0, ev.Metrics.FundingPnL)
}

func TestPublishNilSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { Publish(nil, Deployed(1)) })
}
