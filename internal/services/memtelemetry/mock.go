package memtelemetry

type SampleSetterFn func(Sample)

type mockService struct {
	sample Sample
}

func (m *mockService) Sample() Sample {
	return m.sample
}

func NewMockService(sample Sample) (Service, SampleSetterFn) {
	service := mockService{
		sample: sample,
	}
	return &service, func(s Sample) {
		service.sample = s
	}
}
