package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type collectingSink struct {
	events []Event
}

func (s *collectingSink) Publish(event Event) {
	s.events = append(s.events, event)
}

type FanoutTestSuite struct {
	suite.Suite
}

func TestFanoutTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(FanoutTestSuite))
}

func (s *FanoutTestSuite) TestPublishReachesAllSinks() {
	// arrange
	first := &collectingSink{}
	second := &collectingSink{}
	fanout := NewFanout(first, second)
	event := UploadCancelled{SessionId: uuid.New()}

	// act
	fanout.Publish(event)

	// assert
	s.Require().Len(first.events, 1)
	s.Require().Len(second.events, 1)
	s.Equal(event, first.events[0])
	s.Equal("upload_cancelled", first.events[0].Name())
}

func (s *FanoutTestSuite) TestEmptyFanout() {
	// act
	NewFanout().Publish(UploadsShed{Count: 1})
}
