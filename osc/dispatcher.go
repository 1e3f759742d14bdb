package osc

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Method is an interface for OSC Methods. HandleMessage receives the
// message and the data given at registration and may return replies for
// the sender.
type Method interface {
	HandleMessage(msg *Message, data interface{}) []*Message
}

// MethodFunc implements the Method interface for handlers that neither
// use registration data nor reply.
type MethodFunc func(msg *Message)

// HandleMessage calls itself with the given OSC Message. Implements the Method interface.
func (f MethodFunc) HandleMessage(msg *Message, _ interface{}) []*Message {
	f(msg)
	return nil
}

// ReplyFunc implements the Method interface with a function that receives the
// registration data and returns replies.
type ReplyFunc func(msg *Message, data interface{}) []*Message

// HandleMessage implements the Method interface.
func (f ReplyFunc) HandleMessage(msg *Message, data interface{}) []*Message {
	return f(msg, data)
}

// Binding associates an address pattern with one Method and its data. It
// is created by Dispatcher.Register and is the handle to Unregister it.
type Binding struct {
	pattern  string
	compiled *pattern
	method   Method
	data     interface{}
}

// Pattern returns the address pattern as registered.
func (b *Binding) Pattern() string { return b.pattern }

// Data returns the data given at registration.
func (b *Binding) Data() interface{} { return b.data }

// HandleMessage invokes the bound method with the registration data.
func (b *Binding) HandleMessage(msg *Message) []*Message {
	return b.method.HandleMessage(msg, b.data)
}

// Dispatcher routes messages to the Methods registered for address patterns
// matching their address. Bindings are matched in registration order; an
// exact pattern gets no precedence over a wildcard one. It is safe for
// concurrent use. The zero value is ready to use.
type Dispatcher struct {
	mu       sync.RWMutex
	bindings []*Binding
	// patterns counts bindings per pattern and shares its compiled form.
	patterns map[string]*patternEntry
}

type patternEntry struct {
	compiled *pattern
	count    int
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a Method for the given address pattern. The same pattern
// may be registered any number of times.
func (d *Dispatcher) Register(addr string, method Method, data interface{}) (*Binding, error) {
	if method == nil {
		return nil, errors.New("Register: method is nil")
	}
	if !strings.HasPrefix(addr, "/") {
		return nil, errors.Wrapf(ErrInvalidPattern, "%q does not start with '/'", addr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.patterns[addr]
	if !ok {
		compiled, err := compilePattern(addr)
		if err != nil {
			return nil, err
		}
		if d.patterns == nil {
			d.patterns = make(map[string]*patternEntry)
		}
		entry = &patternEntry{compiled: compiled}
		d.patterns[addr] = entry
	}
	entry.count++

	b := &Binding{pattern: addr, compiled: entry.compiled, method: method, data: data}
	d.bindings = append(d.bindings, b)
	return b, nil
}

// AddMethod adds a new OSC Method for the given OSC Address pattern.
func (d *Dispatcher) AddMethod(addr string, method Method) error {
	_, err := d.Register(addr, method, nil)
	return err
}

// AddMethodFunc allows you to just pass a MethodFunc.
func (d *Dispatcher) AddMethodFunc(addr string, method MethodFunc) error {
	return d.AddMethod(addr, method)
}

// Unregister removes a binding. Removing a binding that is not registered
// is a no-op. A dispatch already in flight may still invoke it once.
func (d *Dispatcher) Unregister(b *Binding) {
	if b == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, bb := range d.bindings {
		if bb != b {
			continue
		}
		// Copy so snapshots returned by Match stay intact
		bindings := make([]*Binding, 0, len(d.bindings)-1)
		bindings = append(bindings, d.bindings[:i]...)
		d.bindings = append(bindings, d.bindings[i+1:]...)

		if entry := d.patterns[b.pattern]; entry != nil {
			if entry.count--; entry.count == 0 {
				delete(d.patterns, b.pattern)
			}
		}
		return
	}
}

// UnregisterPattern removes every binding of the given pattern. It returns
// ErrNotRegistered if the pattern has no bindings.
func (d *Dispatcher) UnregisterPattern(addr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.patterns[addr]; !ok {
		return errors.Wrapf(ErrNotRegistered, "%q", addr)
	}
	delete(d.patterns, addr)

	bindings := make([]*Binding, 0, len(d.bindings))
	for _, b := range d.bindings {
		if b.pattern != addr {
			bindings = append(bindings, b)
		}
	}
	d.bindings = bindings
	return nil
}

// Patterns returns the registered patterns in order of first registration.
func (d *Dispatcher) Patterns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool, len(d.patterns))
	patterns := make([]string, 0, len(d.patterns))
	for _, b := range d.bindings {
		if !seen[b.pattern] {
			seen[b.pattern] = true
			patterns = append(patterns, b.pattern)
		}
	}
	return patterns
}

// Match returns the bindings whose pattern matches addr, in registration order.
func (d *Dispatcher) Match(addr string) []*Binding {
	d.mu.RLock()
	bindings := d.bindings
	d.mu.RUnlock()

	// published elements are never overwritten, so the snapshot is read unlocked
	var matched []*Binding
	for _, b := range bindings {
		if b.compiled.match(addr) {
			matched = append(matched, b)
		}
	}
	return matched
}

// Dispatch invokes the Methods matching every message in packet, walking
// bundle elements in order, and returns the replies they produced. Time
// tags are not interpreted.
func (d *Dispatcher) Dispatch(packet Packet) ([]*Message, error) {
	return d.dispatch(packet, nil, 0)
}

func (d *Dispatcher) dispatch(packet Packet, replies []*Message, depth int) ([]*Message, error) {
	switch p := packet.(type) {
	default:
		return replies, errors.Errorf("dispatch: invalid Packet: %T", packet)

	case *Message:
		if p == nil {
			return replies, errors.New("dispatch: nil message")
		}
		for _, b := range d.Match(p.Address) {
			replies = append(replies, b.HandleMessage(p)...)
		}
		return replies, nil

	case *Bundle:
		if p == nil {
			return replies, errors.New("dispatch: nil bundle")
		}
		if depth >= DefaultMaxDepth {
			return replies, errors.Wrapf(ErrBundleTooDeep, "dispatch depth %d", depth+1)
		}
		var err error
		for _, elem := range p.Elements {
			if replies, err = d.dispatch(elem, replies, depth+1); err != nil {
				return replies, err
			}
		}
		return replies, nil
	}
}
