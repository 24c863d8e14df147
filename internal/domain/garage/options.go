package garage

// Defaults for one-time items that arrive without a name or description.
const (
	DefaultOneTimeName        = "Implementation Fee"
	DefaultOneTimeDescription = "One-time setup and implementation"
)

// Option configures a Mapper.
type Option func(*Mapper)

// WithOneTimeDefaults sets the name and description given to one-time
// items that have none.
func WithOneTimeDefaults(name, description string) Option {
	return func(m *Mapper) {
		if name != "" {
			m.oneTimeName = name
		}
		m.oneTimeDescription = description
	}
}
