package tool

// Authorize succeeds iff the tool's required scopes are a subset of the
// principal's granted scopes. It must run before real execution of any tool
// and before dry-run evaluation, mutating or not: previewing an action
// still requires permission to perform it.
func Authorize(granted []string, desc Descriptor) error {
	grantedSet := make(map[string]bool, len(granted))
	for _, s := range granted {
		grantedSet[s] = true
	}

	var missing []string
	for _, required := range desc.RequiredScopes {
		if !grantedSet[required] {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return &InsufficientScopeError{Tool: desc.Name, Missing: missing}
	}
	return nil
}
