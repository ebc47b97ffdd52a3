package filter

// Partial is a set of field overrides. Nil fields are left as they are.
// A non-nil pointer to "" (or StatusAny) removes that constraint.
type Partial struct {
	Page   *int
	Name   *string
	Status *Status
}

// WithPage returns a Partial overriding only the page.
func WithPage(page int) Partial {
	return Partial{Page: &page}
}

// WithName returns a Partial overriding only the name constraint.
func WithName(name string) Partial {
	return Partial{Name: &name}
}

// WithStatus returns a Partial overriding only the status constraint.
func WithStatus(status Status) Partial {
	return Partial{Status: &status}
}

// Apply merges p into current and returns the normalized result. If the merge
// changes the name or the status, the page is reset to 1 regardless of any
// page override in p.
func Apply(current State, p Partial) State {
	cur := NormalizeState(current)

	next := cur
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Page != nil {
		next.Page = *p.Page
	}
	next = NormalizeState(next)

	if !next.SameConstraints(cur) {
		next.Page = 1
	}
	return next
}

// Clear drops both constraints and returns to page 1.
func Clear(State) State {
	return Default()
}
