package xagent

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DefaultCommandSource is the source identity stamped on PublishCommand messages.
const DefaultCommandSource = "System"

// BusBuilder constructs Bus instances (Builder pattern).
type BusBuilder struct {
	storeName string
	storeCfg  map[string]any
	storeInst Store

	codecName string
	codecInst Codec

	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock
	source      string
	poolWorkers int
	poolBuffer  int
}

// NewBusBuilder returns a new builder with the JSON codec and synchronous observers.
// A store must be supplied with WithStore or WithStoreInstance.
func NewBusBuilder() *BusBuilder {
	return &BusBuilder{
		codecName: "json",
		source:    DefaultCommandSource,
	}
}

func (bb *BusBuilder) WithStore(name string, cfg map[string]any) *BusBuilder {
	bb.storeName = name
	bb.storeCfg = cfg
	return bb
}

// WithStoreInstance accepts a ready Store instance (e.g., from an adapter constructor).
func (bb *BusBuilder) WithStoreInstance(s Store) *BusBuilder {
	bb.storeInst = s
	return bb
}

func (bb *BusBuilder) WithCodec(name string) *BusBuilder {
	bb.codecName = name
	return bb
}

// WithCodecInstance accepts a ready Codec instance.
func (bb *BusBuilder) WithCodecInstance(c Codec) *BusBuilder {
	bb.codecInst = c
	return bb
}

func (bb *BusBuilder) WithObserver(obs ...Observer) *BusBuilder {
	for _, o := range obs {
		if o != nil {
			bb.observers = append(bb.observers, o)
		}
	}
	return bb
}

// WithObserverPool dispatches observer events asynchronously on a worker pool.
// Without it observers run inline on the publishing goroutine.
func (bb *BusBuilder) WithObserverPool(workers, bufferSize int) *BusBuilder {
	bb.poolWorkers = workers
	bb.poolBuffer = bufferSize
	return bb
}

func (bb *BusBuilder) WithLogger(l *xlog.Logger) *BusBuilder {
	bb.logger = l
	return bb
}

func (bb *BusBuilder) WithClock(c xclock.Clock) *BusBuilder {
	bb.clock = c
	return bb
}

// WithCommandSource sets the source identity used by PublishCommand.
func (bb *BusBuilder) WithCommandSource(source string) *BusBuilder {
	if source != "" {
		bb.source = source
	}
	return bb
}

func (bb *BusBuilder) Build() (*Bus, error) {
	var cd Codec
	var err error
	if bb.codecInst != nil {
		cd = bb.codecInst
	} else {
		cd, err = NewCodec(bb.codecName)
		if err != nil {
			return nil, err
		}
	}

	var st Store
	switch {
	case bb.storeInst != nil:
		st = bb.storeInst
	case bb.storeName != "":
		st, err = NewStore(bb.storeName, bb.storeCfg, cd)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoStoreConfigured
	}

	clk := bb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := bb.logger
	if lg == nil {
		lg = xlog.Default()
	}

	b := &Bus{
		store:   st,
		codec:   cd,
		clock:   clk,
		logger:  lg,
		source:  bb.source,
		metrics: &busMetrics{},
	}
	if bb.poolWorkers > 0 {
		b.observerPool = NewObserverPool(context.Background(), bb.poolWorkers, bb.poolBuffer)
	}

	// Attach logging observer first unless already supplied externally.
	hasLoggingObserver := false
	for _, o := range bb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		b.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range bb.observers {
		b.AddObserver(o)
	}

	return b, nil
}

// New constructs a Bus via Builder and returns a close func for convenience.
func New(init func(b *BusBuilder)) (*Bus, func() error, error) {
	b := NewBusBuilder()
	if init != nil {
		init(b)
	}
	bus, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return bus.Close(context.Background()) }
	return bus, closeFn, nil
}
