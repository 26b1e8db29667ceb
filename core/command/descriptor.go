package command

import (
	"fmt"
	"sort"
)

// ActuatorClass groups actuators sharing a confirmation deadline.
type ActuatorClass string

const (
	// ClassSimple is an on/off actuator reporting one attribute.
	ClassSimple ActuatorClass = "simple"
	// ClassCompound is an actuator whose state is reported by two
	// attributes that must agree, such as a bidirectional motor.
	ClassCompound ActuatorClass = "compound"
)

// Descriptor describes how a command method is confirmed.
type Descriptor struct {
	Method string        `json:"method"`
	Class  ActuatorClass `json:"class"`
	// Confirmable commands are polled; the others settle and succeed.
	Confirmable bool `json:"confirmable"`
	// Attribute is the reported key of a simple actuator.
	Attribute string `json:"attribute"`
	// ForwardAttribute and ReverseAttribute are the reported keys of a
	// compound actuator.
	ForwardAttribute string `json:"forward_attribute"`
	ReverseAttribute string `json:"reverse_attribute"`
}

// Validate checks that a confirmable descriptor names its attributes.
func (d Descriptor) Validate() error {
	if d.Method == "" {
		return fmt.Errorf("command descriptor: method is required")
	}
	switch d.Class {
	case ClassSimple, "":
		if d.Confirmable && d.Attribute == "" {
			return fmt.Errorf("command %s: attribute is required", d.Method)
		}
	case ClassCompound:
		if d.Confirmable && (d.ForwardAttribute == "" || d.ReverseAttribute == "") {
			return fmt.Errorf("command %s: forward_attribute and reverse_attribute are required", d.Method)
		}
	default:
		return fmt.Errorf("command %s: unknown class %q", d.Method, d.Class)
	}
	return nil
}

// expectation maps each reported attribute to the value that confirms the
// command.
type expectation map[string]any

func (e expectation) keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// matches reports whether every expected attribute is present and equal.
func (e expectation) matches(attrs map[string]any) bool {
	if len(e) == 0 {
		return false
	}
	for k, want := range e {
		got, ok := attrs[k]
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// expect derives the confirming attribute values of cmd. For a simple
// actuator the expected value defaults to the params.
func (d Descriptor) expect(cmd Command) (expectation, error) {
	if d.Class == ClassCompound {
		dir, err := ParseDirection(cmd.Params)
		if err != nil {
			return nil, err
		}
		if !d.Confirmable {
			return nil, nil
		}
		fw, re := dir.Flags()
		return expectation{d.ForwardAttribute: fw, d.ReverseAttribute: re}, nil
	}
	if !d.Confirmable {
		return nil, nil
	}
	want := cmd.Expected
	if want == nil {
		want = cmd.Params
	}
	return expectation{d.Attribute: want}, nil
}

// Catalog resolves methods to descriptors.
type Catalog struct {
	byMethod map[string]Descriptor
}

// NewCatalog validates the descriptors and indexes them by method.
func NewCatalog(ds ...Descriptor) (*Catalog, error) {
	c := &Catalog{byMethod: make(map[string]Descriptor, len(ds))}
	for _, d := range ds {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if d.Class == "" {
			d.Class = ClassSimple
		}
		if _, dup := c.byMethod[d.Method]; dup {
			return nil, fmt.Errorf("command %s declared twice", d.Method)
		}
		c.byMethod[d.Method] = d
	}
	return c, nil
}

// Lookup returns the descriptor of method. Unknown methods are simple and
// fire-and-forget.
func (c *Catalog) Lookup(method string) Descriptor {
	if c != nil {
		if d, ok := c.byMethod[method]; ok {
			return d
		}
	}
	return Descriptor{Method: method, Class: ClassSimple}
}
