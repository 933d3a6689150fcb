package xagent

import (
	"errors"
	"fmt"
	"sync"
)

// StoreFactory constructs mailbox stores from a config blob and the bus codec.
type StoreFactory func(cfg map[string]any, codec Codec) (Store, error)

// CodecFactory constructs codecs via Factory pattern.
type CodecFactory func() Codec

var (
	storeRegistryMu sync.RWMutex
	storeRegistry   = map[string]StoreFactory{}

	codecRegistryMu sync.RWMutex
	codecRegistry   = map[string]CodecFactory{
		"json": func() Codec { return JSONCodec{} },
	}
)

// RegisterStore registers a mailbox store adapter under name.
func RegisterStore(name string, factory StoreFactory) error {
	if name == "" {
		return errors.New("store name must not be empty")
	}
	if factory == nil {
		return errors.New("store factory must not be nil")
	}
	storeRegistryMu.Lock()
	storeRegistry[name] = factory
	storeRegistryMu.Unlock()
	return nil
}

// NewStore constructs a store by name with config.
func NewStore(name string, cfg map[string]any, codec Codec) (Store, error) {
	storeRegistryMu.RLock()
	f, ok := storeRegistry[name]
	storeRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownStore{name: name}
	}
	return f(cfg, codec)
}

// RegisterCodec registers a codec factory by name.
func RegisterCodec(name string, factory CodecFactory) error {
	if name == "" {
		return errors.New("codec name must not be empty")
	}
	if factory == nil {
		return errors.New("codec factory must not be nil")
	}
	codecRegistryMu.Lock()
	codecRegistry[name] = factory
	codecRegistryMu.Unlock()
	return nil
}

// NewCodec constructs a codec by name or returns an error.
func NewCodec(name string) (Codec, error) {
	codecRegistryMu.RLock()
	f, ok := codecRegistry[name]
	codecRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec %q not registered", name)
	}
	return f(), nil
}
