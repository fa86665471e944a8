package patch

const (
	OperationReplace = "replace"
	OperationRemove  = "remove"
)

// Operation is a single RFC6902 operation on a snapshot document.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}
