package feed_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betstream/internal/domain"
	"github.com/alejandrodnm/betstream/internal/feed"
)

func definition(marketID string, status domain.MarketStatus, runnerIDs ...int64) *domain.MarketDefinition {
	def := &domain.MarketDefinition{
		MarketID:   marketID,
		EventID:    "987",
		Venue:      "Ascot",
		MarketType: "WIN",
		Status:     status,
		MarketTime: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
	}
	for _, id := range runnerIDs {
		def.Runners = append(def.Runners, domain.RunnerDefinition{
			RunnerID: id,
			Name:     "Runner",
			Status:   domain.RunnerActive,
		})
	}
	return def
}

func defChange(publishMs int64, def *domain.MarketDefinition) domain.MarketChange {
	return domain.MarketChange{
		PublishTime: pt(publishMs),
		Changes: []domain.MarketChangeFragment{
			{MarketID: def.MarketID, Definition: def},
		},
	}
}

func ltpChange(publishMs int64, marketID string, runnerID int64, ltp float64) domain.MarketChange {
	return domain.MarketChange{
		PublishTime: pt(publishMs),
		Changes: []domain.MarketChangeFragment{
			{
				MarketID: marketID,
				RunnerChanges: []domain.RunnerChange{
					{RunnerID: runnerID, LastTradedPrice: ptr(ltp)},
				},
			},
		},
	}
}

func TestAggregator_OutOfOrderDeltaDiscarded(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(defChange(50, definition("1.1", domain.MarketOpen, 1, 2)))
	agg.OnMarketChange(ltpChange(100, "1.1", 1, 2.5))
	// Llega después pero su publish time es anterior: no pisa el 2.5.
	agg.OnMarketChange(ltpChange(90, "1.1", 1, 2.6))

	snap, err := agg.Snapshot("1.1")
	require.NoError(t, err)
	require.Len(t, snap.Runners, 2)
	require.NotNil(t, snap.Runners[0].LastTradedPrice)
	assert.InDelta(t, 2.5, *snap.Runners[0].LastTradedPrice, 0.0001)
	assert.Equal(t, pt(100), snap.Runners[0].AsOf)
	// El runner 2 nunca recibió deltas.
	assert.Nil(t, snap.Runners[1].LastTradedPrice)
	assert.True(t, snap.Runners[1].AsOf.IsZero())
}

func TestAggregator_SnapshotWithoutDefinition(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(ltpChange(100, "1.1", 1, 2.5))

	_, err := agg.Snapshot("1.1")
	assert.ErrorIs(t, err, feed.ErrMissingDefinition)

	_, ok := agg.RunnerView("1.1", 1)
	assert.False(t, ok)
}

func TestAggregator_DefinitionReplacesWholesale(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(defChange(50, definition("1.1", domain.MarketOpen, 1, 2, 3)))
	agg.OnMarketChange(ltpChange(60, "1.1", 2, 4.0))
	agg.OnMarketChange(ltpChange(60, "1.1", 3, 8.0))

	// La nueva definición ya no menciona al runner 3: su estado se expulsa.
	agg.OnMarketChange(defChange(70, definition("1.1", domain.MarketOpen, 1, 2)))

	snap, err := agg.Snapshot("1.1")
	require.NoError(t, err)
	require.Len(t, snap.Runners, 2)

	_, ok := agg.RunnerView("1.1", 3)
	assert.False(t, ok)
	_, ok = agg.Store().Lookup("1.1", 3)
	assert.False(t, ok, "evicted runner must not keep state in the store")

	view, ok := agg.RunnerView("1.1", 2)
	require.True(t, ok)
	require.NotNil(t, view.LastTradedPrice)
	assert.InDelta(t, 4.0, *view.LastTradedPrice, 0.0001)
}

func TestAggregator_StaleDefinitionDiscarded(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(defChange(100, definition("1.1", domain.MarketSuspended, 1)))
	agg.OnMarketChange(defChange(90, definition("1.1", domain.MarketOpen, 1)))

	snap, err := agg.Snapshot("1.1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketSuspended, snap.Status)
}

func TestAggregator_SubImageCarriesDefinitionAndDeltas(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(domain.MarketChange{
		PublishTime: pt(100),
		ChangeType:  domain.ChangeSubImage,
		Changes: []domain.MarketChangeFragment{
			{
				MarketID:   "1.1",
				Definition: definition("1.1", domain.MarketOpen, 1),
				RunnerChanges: []domain.RunnerChange{
					{RunnerID: 1, LastTradedPrice: ptr(3.5), BestLay: []domain.PriceLevel{{Level: 0, Price: 3.55, Size: 40}}},
				},
			},
		},
	})

	view, ok := agg.RunnerView("1.1", 1)
	require.True(t, ok)
	require.NotNil(t, view.LastTradedPrice)
	assert.InDelta(t, 3.5, *view.LastTradedPrice, 0.0001)
	require.NotNil(t, view.BestLayPrice)
	assert.InDelta(t, 3.55, *view.BestLayPrice, 0.0001)
	require.NotNil(t, view.BestLaySize)
	assert.InDelta(t, 40, *view.BestLaySize, 0.0001)
}

func TestAggregator_HeartbeatIsNoop(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(defChange(50, definition("1.1", domain.MarketOpen, 1)))
	before, err := agg.Snapshot("1.1")
	require.NoError(t, err)

	agg.OnMarketChange(domain.MarketChange{PublishTime: pt(200), ChangeType: domain.ChangeHeartbeat})

	after, err := agg.Snapshot("1.1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLiveAggregator_EvictsClosedMarkets(t *testing.T) {
	agg := feed.NewLiveAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(defChange(50, definition("1.1", domain.MarketOpen, 1)))
	agg.OnMarketChange(ltpChange(60, "1.1", 1, 2.0))
	agg.OnMarketChange(defChange(70, definition("1.1", domain.MarketClosed, 1)))

	_, err := agg.Snapshot("1.1")
	assert.ErrorIs(t, err, feed.ErrMissingDefinition)
	_, ok := agg.Store().Lookup("1.1", 1)
	assert.False(t, ok)
	assert.Empty(t, agg.MarketIDs())
}

func TestAggregator_ClosedMarketsSurviveWithoutEviction(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(defChange(50, definition("1.1", domain.MarketOpen, 1)))
	agg.OnMarketChange(defChange(70, definition("1.1", domain.MarketClosed, 1)))

	snap, err := agg.Snapshot("1.1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketClosed, snap.Status)
}

func TestAggregator_SnapshotAllSortedByMarketID(t *testing.T) {
	agg := feed.NewAggregator(feed.NewLatestValueStore())

	agg.OnMarketChange(defChange(50, definition("1.9", domain.MarketOpen, 1)))
	agg.OnMarketChange(defChange(50, definition("1.2", domain.MarketOpen, 1)))
	agg.OnMarketChange(defChange(50, definition("1.10", domain.MarketOpen, 1)))

	snaps := agg.SnapshotAll()
	require.Len(t, snaps, 3)
	assert.Equal(t, "1.10", snaps[0].MarketID)
	assert.Equal(t, "1.2", snaps[1].MarketID)
	assert.Equal(t, "1.9", snaps[2].MarketID)
}
