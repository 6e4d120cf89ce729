package canspec

// LoadOption configures how a file-backed registry is built.
type LoadOption func(*loadConfig)

type loadConfig struct {
	callbacks map[string]Callback
	factory   func(d *Descriptor) Callback
	node      string
}

// WithCallback attaches cb to the message with the given name.
func WithCallback(name string, cb Callback) LoadOption {
	return func(c *loadConfig) {
		if c.callbacks == nil {
			c.callbacks = map[string]Callback{}
		}
		c.callbacks[name] = cb
	}
}

// WithDefaultCallback attaches cb to every message that has no named callback.
func WithDefaultCallback(cb Callback) LoadOption {
	return WithCallbackFactory(func(*Descriptor) Callback { return cb })
}

// WithCallbackFactory builds the callback of every message that has no named
// callback. fn may return nil to leave a message without one.
func WithCallbackFactory(fn func(d *Descriptor) Callback) LoadOption {
	return func(c *loadConfig) { c.factory = fn }
}

// WithNodeName selects the local node when importing a DBC database: messages
// it transmits get Chan1 as tx mask, messages it receives get Chan1 as rx flag.
func WithNodeName(node string) LoadOption {
	return func(c *loadConfig) { c.node = node }
}

func newLoadConfig(opts []LoadOption) *loadConfig {
	c := &loadConfig{}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *loadConfig) bind(descs []Descriptor) {
	for i := range descs {
		if cb, ok := c.callbacks[descs[i].Name]; ok {
			descs[i].Callback = cb
		} else if c.factory != nil {
			descs[i].Callback = c.factory(&descs[i])
		}
	}
}
