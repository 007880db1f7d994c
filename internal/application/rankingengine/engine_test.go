package rankingengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

func testEngine() *Engine { return New(config.DefaultRankingConfig()) }

func TestScenario5_ConflictLockForcesWatch(t *testing.T) {
	e := testEngine()
	entity := ranking.Entity{Address: "0xabc", ChainID: "eth"}
	in := ranking.Inputs{
		MarketCapScore: 90, VolumeScore: 90, MomentumScore: 90,
		EngineConfidence: 90, ActorSignalScore: 40, Risk: 10,
		ConflictLock: true,
	}
	res := e.Rank(entity, in, ranking.Ranking{}, time.Now())
	assert.Equal(t, ranking.BucketWatch, res.Ranking.Bucket)
}

func TestBucketStrictness_BuyRequiresAllThreeGates(t *testing.T) {
	e := testEngine()
	entity := ranking.Entity{Address: "0xabc", ChainID: "eth"}

	// High composite but risk above BuyRiskMax must never yield BUY.
	in := ranking.Inputs{
		MarketCapScore: 100, VolumeScore: 100, MomentumScore: 100,
		EngineConfidence: 100, ActorSignalScore: 50, Risk: 70,
	}
	res := e.Rank(entity, in, ranking.Ranking{}, time.Now())
	assert.NotEqual(t, ranking.BucketBuy, res.Ranking.Bucket)
}

func TestSellToBuyGuard_EngineContributionAloneCannotLiftToBuy(t *testing.T) {
	e := testEngine()
	entity := ranking.Entity{Address: "0xabc", ChainID: "eth"}

	// Composite clears BuyScoreMin only because the (capped) engine
	// contribution is maxed out; removing it falls below WatchThreshold, so
	// the guard must downgrade BUY to WATCH.
	in := ranking.Inputs{
		MarketCapScore: 50, VolumeScore: 50, MomentumScore: 50,
		EngineConfidence: 100, ActorSignalScore: 0, Risk: 20,
	}
	res := e.Rank(entity, in, ranking.Ranking{}, time.Now())
	assert.NotEqual(t, ranking.BucketBuy, res.Ranking.Bucket)
}

func TestBuyBucket_AllGatesPass(t *testing.T) {
	e := testEngine()
	entity := ranking.Entity{Address: "0xabc", ChainID: "eth"}
	in := ranking.Inputs{
		MarketCapScore: 80, VolumeScore: 80, MomentumScore: 80,
		EngineConfidence: 90, ActorSignalScore: 30, Risk: 20,
	}
	res := e.Rank(entity, in, ranking.Ranking{}, time.Now())
	assert.Equal(t, ranking.BucketBuy, res.Ranking.Bucket)
}

func TestSellBucket_LowScoreOrHighRisk(t *testing.T) {
	e := testEngine()
	entity := ranking.Entity{Address: "0xabc", ChainID: "eth"}
	in := ranking.Inputs{
		MarketCapScore: 5, VolumeScore: 5, MomentumScore: 5,
		EngineConfidence: 20, ActorSignalScore: -40, Risk: 80,
	}
	res := e.Rank(entity, in, ranking.Ranking{}, time.Now())
	assert.Equal(t, ranking.BucketSell, res.Ranking.Bucket)
}

func TestTransitionRecordedOnBucketChange(t *testing.T) {
	e := testEngine()
	entity := ranking.Entity{Address: "0xabc", ChainID: "eth"}
	prev := ranking.Ranking{Bucket: ranking.BucketWatch, Composite: 30}
	in := ranking.Inputs{
		MarketCapScore: 80, VolumeScore: 80, MomentumScore: 80,
		EngineConfidence: 90, ActorSignalScore: 30, Risk: 20,
	}
	res := e.Rank(entity, in, prev, time.Now())
	require.NotNil(t, res.Transition)
	assert.Equal(t, ranking.BucketWatch, res.Transition.From)
	assert.Equal(t, ranking.BucketBuy, res.Transition.To)
}

func TestEngineContributionCap(t *testing.T) {
	e := testEngine()
	entity := ranking.Entity{Address: "0xabc", ChainID: "eth"}
	in := ranking.Inputs{EngineConfidence: 100, Risk: 0}
	res := e.Rank(entity, in, ranking.Ranking{}, time.Now())
	// neutral 0.30*50=15, cap 15 => max contribution 30.
	assert.LessOrEqual(t, res.Ranking.EngineContrib, 30.0)
}
