// Package profile assembles the composite profile view: characteristics,
// the latest weight and height, and the BMI derived from them.
package profile

import (
	"context"
	"log"
	"sync"
	"time"

	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/observability"
)

// Gateway is the subset of the health gateway the aggregator drives.
type Gateway interface {
	ReadProfile(ctx context.Context) domain.Profile
	ReadMostRecentSample(ctx context.Context, rt domain.RecordType) (domain.Optional[domain.Sample], error)
	SaveDerivedSample(ctx context.Context, rt domain.RecordType, quantity domain.Quantity, ts time.Time) error
}

// Display receives view updates. Methods are called from the aggregator's
// serial queue and must not call back into the aggregator.
type Display interface {
	ShowProfile(domain.Profile)
	ShowWeight(domain.Optional[domain.Sample])
	ShowHeight(domain.Optional[domain.Sample])
	ShowBMI(domain.Optional[float64])
}

type noopDisplay struct{}

func (noopDisplay) ShowProfile(domain.Profile)                {}
func (noopDisplay) ShowWeight(domain.Optional[domain.Sample]) {}
func (noopDisplay) ShowHeight(domain.Optional[domain.Sample]) {}
func (noopDisplay) ShowBMI(domain.Optional[float64])          {}

// Snapshot is a copy of everything the aggregator currently shows.
type Snapshot struct {
	Profile   domain.Profile
	Weight    domain.Optional[domain.Sample]
	Height    domain.Optional[domain.Sample]
	BMI       domain.Optional[float64]
	State     ConvergenceState
	WeightErr error
	HeightErr error
}

// Option configures optional behaviour for the Aggregator.
type Option func(*Aggregator)

// WithDisplay registers a listener for view updates.
func WithDisplay(d Display) Option {
	return func(a *Aggregator) {
		if d != nil {
			a.display = d
		}
	}
}

// WithLogger overrides the logger used to report failed fetches.
func WithLogger(logger *log.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithClock overrides the time source used to stamp saved BMI samples.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// Aggregator owns one profile screen session. Fetches run concurrently and
// their results are applied on a single serial queue, so view state needs no
// locking. An Aggregator must not be used after Close.
type Aggregator struct {
	gateway  Gateway
	display  Display
	logger   *log.Logger
	now      func() time.Time
	queue    *serialQueue
	inflight sync.WaitGroup

	// Owned by queue.
	join      Convergence
	profile   domain.Profile
	weight    domain.Optional[domain.Sample]
	height    domain.Optional[domain.Sample]
	bmi       domain.Optional[float64]
	weightErr error
	heightErr error
}

// New constructs an Aggregator over gateway.
func New(gateway Gateway, opts ...Option) *Aggregator {
	a := &Aggregator{
		gateway: gateway,
		display: noopDisplay{},
		logger:  log.New(log.Writer(), "[profile] ", log.LstdFlags),
		now:     time.Now,
		queue:   newSerialQueue(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Refresh reads the profile, the latest weight and the latest height
// concurrently. Each result is applied as soon as it arrives, followed by a
// BMI recompute attempt. The returned channel is closed once all three
// results have been applied. A refresh cannot be cancelled once issued.
func (a *Aggregator) Refresh(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	var pending sync.WaitGroup
	pending.Add(3)
	a.inflight.Add(3)

	go func() {
		defer a.inflight.Done()
		profile := a.gateway.ReadProfile(ctx)
		a.queue.post(func() {
			defer pending.Done()
			a.profile = profile
			a.display.ShowProfile(profile)
		})
	}()
	go a.fetchSample(ctx, DependencyWeight, domain.RecordBodyMass, &pending)
	go a.fetchSample(ctx, DependencyHeight, domain.RecordHeight, &pending)

	go func() {
		pending.Wait()
		close(done)
	}()
	return done
}

func (a *Aggregator) fetchSample(ctx context.Context, dep Dependency, rt domain.RecordType, pending *sync.WaitGroup) {
	defer a.inflight.Done()
	sample, err := a.gateway.ReadMostRecentSample(ctx, rt)
	a.queue.post(func() {
		defer pending.Done()
		if err != nil {
			// Mark stays unset; BMI waits for a later refresh.
			a.logger.Printf("error reading %s from health store: %v", dep, err)
			a.setFetchErr(dep, err)
			return
		}
		a.setFetchErr(dep, nil)
		switch dep {
		case DependencyWeight:
			a.weight = sample
			a.display.ShowWeight(sample)
		case DependencyHeight:
			a.height = sample
			a.display.ShowHeight(sample)
		}
		a.join.Mark(dep)
		a.recomputeBMI()
	})
}

func (a *Aggregator) setFetchErr(dep Dependency, err error) {
	switch dep {
	case DependencyWeight:
		a.weightErr = err
	case DependencyHeight:
		a.heightErr = err
	}
}

// recomputeBMI must run on the queue. It does nothing until both fetches
// have completed and is pure in the stored samples.
func (a *Aggregator) recomputeBMI() {
	if !a.join.Ready() {
		return
	}
	bmi := domain.None[float64]()
	weight, hasWeight := a.weight.Get()
	height, hasHeight := a.height.Get()
	if hasWeight && hasHeight {
		value, err := domain.BMIFromSamples(weight, height)
		if err != nil {
			a.logger.Printf("error converting samples for BMI: %v", err)
		} else {
			bmi = value
		}
	}
	a.bmi = bmi
	a.display.ShowBMI(bmi)
}

// Recompute runs the BMI recompute on the queue and returns the published value.
func (a *Aggregator) Recompute() domain.Optional[float64] {
	var bmi domain.Optional[float64]
	a.queue.run(func() {
		a.recomputeBMI()
		bmi = a.bmi
	})
	return bmi
}

// SaveCurrentBMI writes the current BMI stamped with the current time.
// Without a BMI it returns domain.ErrNothingToSave and writes nothing.
func (a *Aggregator) SaveCurrentBMI(ctx context.Context) error {
	var bmi domain.Optional[float64]
	a.queue.run(func() { bmi = a.bmi })

	value, ok := bmi.Get()
	if !ok {
		a.logger.Printf("there is no BMI data to save")
		return domain.ErrNothingToSave
	}
	if err := a.gateway.SaveDerivedSample(ctx, domain.RecordBodyMassIndex, domain.NewQuantity(value, domain.UnitCount), a.now()); err != nil {
		return err
	}
	observability.RecordBMISaved(value)
	return nil
}

// Snapshot copies the current view state.
func (a *Aggregator) Snapshot() Snapshot {
	var snap Snapshot
	a.queue.run(func() {
		snap = Snapshot{
			Profile:   a.profile,
			Weight:    a.weight,
			Height:    a.height,
			BMI:       a.bmi,
			State:     a.join.State(),
			WeightErr: a.weightErr,
			HeightErr: a.heightErr,
		}
	})
	return snap
}

// Close waits for outstanding fetches to be applied and stops the queue.
func (a *Aggregator) Close() {
	a.inflight.Wait()
	a.queue.close()
}
