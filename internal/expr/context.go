package expr

// Context is the robot state visible to condition expressions.
type Context struct {
	// Buttons maps station button names to their pressed state. Unknown
	// buttons read as undefined, which is falsy.
	Buttons map[string]bool

	// Enabled mirrors the robot enable signal.
	Enabled bool

	// Tick is the scheduler tick being evaluated.
	Tick uint64

	// Outputs holds the last values written by commands, per subsystem.
	Outputs map[string]map[string]any
}

// NewContext returns an empty, disabled context.
func NewContext() *Context {
	return &Context{
		Buttons: map[string]bool{},
		Outputs: map[string]map[string]any{},
	}
}

func (c *Context) buttons() map[string]any {
	out := make(map[string]any, len(c.Buttons))
	for k, v := range c.Buttons {
		out[k] = v
	}
	return out
}

func (c *Context) outputs() map[string]any {
	out := make(map[string]any, len(c.Outputs))
	for sub, values := range c.Outputs {
		m := make(map[string]any, len(values))
		for k, v := range values {
			m[k] = v
		}
		out[sub] = m
	}
	return out
}
