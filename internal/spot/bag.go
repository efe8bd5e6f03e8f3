package spot

// Bag keys shared by the validation steps. Per-field presence errors use
// the field name itself as the key.
const (
	KeyDescriptors        = "Descriptors"
	KeyMissingDescriptors = "Missing Descriptors"
	KeyPermission         = "Permission Error"
	KeyInvalid            = "Invalid Error"
	KeyInternal           = "Internal Error"
)

// Bag is a field-keyed collection of validation messages. Each
// validation step returns its own Bag and the orchestrator merges them,
// so the caller sees every problem in a single response. The zero value
// is not usable; call NewBag.
type Bag map[string][]string

// NewBag returns an empty Bag.
func NewBag() Bag {
	return make(Bag)
}

// Add appends a message under the given key.
func (b Bag) Add(key, message string) {
	b[key] = append(b[key], message)
}

// Merge appends every message from other into b and returns b.
func (b Bag) Merge(other Bag) Bag {
	for key, messages := range other {
		b[key] = append(b[key], messages...)
	}
	return b
}

// Empty reports whether the bag holds no messages.
func (b Bag) Empty() bool {
	return len(b) == 0
}
