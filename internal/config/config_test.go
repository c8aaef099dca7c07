package config

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	C = Config{}
}

func (s *ConfigTestSuite) TestDefaults() {
	// act
	setDefaultsOrPanic()

	// assert
	s.Equal("localhost", C.Server.Host)
	s.Equal(8080, C.Server.Port)

	s.Equal(int64(500*1024*1024), C.Limits.MaxFileSize)
	s.Equal(10, C.Limits.MaxConcurrentUploads)
	s.Equal(int64(2*1024*1024*1024), C.Limits.MaxTotalMemory)
	s.Equal(int64(100*1024*1024), C.Limits.StreamingThreshold)
	s.Equal(70.0, C.Limits.WarningPct)
	s.Equal(85.0, C.Limits.CriticalPct)
	s.Equal(95.0, C.Limits.EmergencyPct)
	s.Equal(5, C.Limits.RemediationCooldownSecs)
	s.Equal(600, C.Limits.EmergencyResetSecs)

	s.Equal(30, C.Transfer.ChunkTimeoutSecs)
	s.Equal(3, C.Transfer.MaxRetries)
	s.Equal(1000, C.Transfer.RetryBaseDelayMilli)

	s.Equal(3600, C.Janitor.SweepIntervalSecs)
	s.Equal(24*3600, C.Janitor.StaleAfterSecs)
	s.Equal(5, C.Janitor.CancelGraceSecs)

	s.Equal(30, C.Telemetry.SampleIntervalSecs)

	s.Equal(KvModeInMemory, C.Kv.Mode)
	s.Equal(BlobStorageModeInMemory, C.Blob.Mode)
}

func (s *ConfigTestSuite) TestConfiguredValuesSurvive() {
	// arrange
	C.Limits.MaxConcurrentUploads = 42

	// act
	setDefaultsOrPanic()

	// assert
	s.Equal(42, C.Limits.MaxConcurrentUploads)
}

func (s *ConfigTestSuite) TestUnorderedThresholdsPanic() {
	// arrange
	C.Limits.WarningPct = 90
	C.Limits.CriticalPct = 85
	C.Limits.EmergencyPct = 95

	// act & assert
	s.Panics(func() {
		setDefaultsOrPanic()
	})
}

func (s *ConfigTestSuite) TestUnsupportedKvModePanics() {
	// arrange
	C.Kv.Mode = "etcd"

	// act & assert
	s.Panics(func() {
		setDefaultsOrPanic()
	})
}
