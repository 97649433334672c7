package retrypolicy

import "github.com/loykin/jobsched/internal/execution"

// DefinitionInfo is the sliver of a JobDefinition a retry policy is allowed
// to see: enough to log or branch on, not the full definition contract
// (which would pull retrypolicy into an import cycle with definition).
type DefinitionInfo struct {
	ID   string
	Name string
}

// Bag is the carrier handed to a retry policy for the duration of a single
// Execute call (§4.6). The spec describes it as a heterogeneous lookup by
// string key ("execution", "definition"); in this statically typed
// rewrite it is two explicit fields, with accessor helpers retained only
// for the lookup-style API the spec documents.
type Bag struct {
	execution  *execution.Execution
	definition DefinitionInfo
}

// NewBag builds a Bag for one Execute call.
func NewBag(ex *execution.Execution, def DefinitionInfo) Bag {
	return Bag{execution: ex, definition: def}
}

// Execution returns the JobExecution carried by the bag, or (nil, false)
// when unset.
func (b Bag) Execution() (*execution.Execution, bool) {
	return b.execution, b.execution != nil
}

// Definition returns the DefinitionInfo carried by the bag, or
// (DefinitionInfo{}, false) when unset.
func (b Bag) Definition() (DefinitionInfo, bool) {
	return b.definition, b.definition.ID != ""
}
