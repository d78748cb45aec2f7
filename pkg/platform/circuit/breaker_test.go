package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now     time.Time
	breaker *Breaker
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.breaker = New("rpc:1",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *BreakerSuite) trip() {
	for range 3 {
		s.breaker.RecordFailure()
	}
}

func (s *BreakerSuite) TestOpensAfterConsecutiveFailures() {
	s.False(s.breaker.RecordFailure().Opened)
	s.False(s.breaker.RecordFailure().Opened)
	s.True(s.breaker.RecordFailure().Opened)
	s.Equal(StateOpen, s.breaker.State())
	s.False(s.breaker.Allow())
}

func (s *BreakerSuite) TestSuccessResetsFailureCount() {
	s.breaker.RecordFailure()
	s.breaker.RecordFailure()
	s.breaker.RecordSuccess()
	s.False(s.breaker.RecordFailure().Opened)
	s.True(s.breaker.Allow())
}

func (s *BreakerSuite) TestHalfOpenAfterCooldown() {
	s.trip()
	s.now = s.now.Add(9 * time.Second)
	s.False(s.breaker.Allow())

	s.now = s.now.Add(time.Second)
	s.Equal(StateHalfOpen, s.breaker.State())
	s.True(s.breaker.Allow())
}

func (s *BreakerSuite) TestProbeSuccessesClose() {
	s.trip()
	s.now = s.now.Add(10 * time.Second)

	s.False(s.breaker.RecordSuccess().Closed)
	s.True(s.breaker.RecordSuccess().Closed)
	s.Equal(StateClosed, s.breaker.State())
}

func (s *BreakerSuite) TestProbeFailureReopens() {
	s.trip()
	s.now = s.now.Add(10 * time.Second)

	s.True(s.breaker.RecordFailure().Opened)
	s.False(s.breaker.Allow())
}

func (s *BreakerSuite) TestIdentity() {
	s.Equal("rpc:1", s.breaker.Name())
	s.Equal("closed", s.breaker.State().String())
	s.trip()
	s.Equal("open", s.breaker.State().String())
}
