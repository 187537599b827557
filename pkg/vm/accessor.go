package vm

// AccessorPair holds the getter and setter of an accessor property. Either
// side may be undefined, a materialized function, or a FunctionTemplate that
// has not been instantiated in any realm yet.
type AccessorPair struct {
	Getter Value
	Setter Value
}

// IsLazy reports whether either side still refers to a template.
func (p *AccessorPair) IsLazy() bool {
	return p.Getter.IsFunctionTemplate() || p.Setter.IsFunctionTemplate()
}
