package model

// ComponentType represents the type of a Lustre storage component
type ComponentType string

const (
	// ComponentTypeOST represents an object storage target
	ComponentTypeOST ComponentType = "OST"
	// ComponentTypeMDT represents a metadata target
	ComponentTypeMDT ComponentType = "MDT"
)

// ComponentState represents the observed status of one storage target
type ComponentState struct {
	// Target is the filesystem name the component belongs to
	Target string
	// Name is the raw component identifier as reported by the tool,
	// e.g. "OST01ac"
	Name string
	// Type is the component type decoded from Name
	Type ComponentType
	// State is the raw status text reported by the tool
	State string
	// Active is true when State equals "active"
	Active bool
	// Index is the decimal index decoded from the hex suffix of Name
	Index int
}

// ComponentCollection groups the component states of one filesystem,
// keyed by decimal index
type ComponentCollection struct {
	MDTs map[int]*ComponentState
	OSTs map[int]*ComponentState
}

// NewComponentCollection creates an empty component collection
func NewComponentCollection() *ComponentCollection {
	return &ComponentCollection{
		MDTs: make(map[int]*ComponentState),
		OSTs: make(map[int]*ComponentState),
	}
}
