package host

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	blocks          prometheus.Counter
	samples         prometheus.Counter
	paramChanges    *prometheus.CounterVec
	prepareFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flanger_blocks_processed_total",
			Help: "Total number of audio blocks processed",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flanger_samples_processed_total",
			Help: "Total number of sample frames processed",
		}),
		paramChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flanger_parameter_changes_total",
			Help: "Total number of accepted parameter changes",
		}, []string{"parameter"}),
		prepareFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flanger_prepare_failures_total",
			Help: "Total number of failed prepare calls",
		}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.blocks, err = register(reg, m.blocks)
	if err != nil {
		return nil, err
	}
	m.samples, err = register(reg, m.samples)
	if err != nil {
		return nil, err
	}
	m.paramChanges, err = register(reg, m.paramChanges)
	if err != nil {
		return nil, err
	}
	m.prepareFailures, err = register(reg, m.prepareFailures)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered so several processors can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	var zero C
	return zero, err
}
