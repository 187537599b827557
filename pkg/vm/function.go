package vm

import "unsafe"

// JSFunction is implemented by every callable heap object. It answers whether
// the function can be invoked right now and where it came from.
type JSFunction interface {
	IsCompiled() bool
	Realm() *Realm
	// APITemplate returns the template the function was instantiated from,
	// or nil for functions not backed by a host callback.
	APITemplate() *FunctionTemplate
	FunctionName() string
}

// FunctionObject is a script function. Its body is compiled lazily.
type FunctionObject struct {
	Arity    int
	Name     string
	realm    *Realm
	compiled bool
}

// NativeFunctionObject represents a native Go function callable from script.
// Functions instantiated from a FunctionTemplate keep a link back to it.
type NativeFunctionObject struct {
	Arity    int
	Variadic bool
	Name     string
	Fn       func(args []Value) Value

	realm    *Realm
	template *FunctionTemplate
	// prototype property handed to instances created through the template
	instancePrototype Value
}

// NewFunction creates a script function that has not been compiled yet.
func NewFunction(realm *Realm, arity int, name string) Value {
	fnObj := &FunctionObject{
		Arity: arity,
		Name:  name,
		realm: realm,
	}
	return Value{typ: TypeFunction, obj: unsafe.Pointer(fnObj)}
}

func NewNativeFunction(realm *Realm, arity int, variadic bool, name string, fn func(args []Value) Value) Value {
	return Value{typ: TypeNativeFunction, obj: unsafe.Pointer(&NativeFunctionObject{
		Arity:             arity,
		Variadic:          variadic,
		Name:              name,
		Fn:                fn,
		realm:             realm,
		instancePrototype: Undefined,
	})}
}

func (f *FunctionObject) IsCompiled() bool               { return f.compiled }
func (f *FunctionObject) Realm() *Realm                  { return f.realm }
func (f *FunctionObject) APITemplate() *FunctionTemplate { return nil }
func (f *FunctionObject) FunctionName() string           { return f.Name }

// Compile marks the function body as materialized.
func (f *FunctionObject) Compile() {
	f.compiled = true
}

func (f *NativeFunctionObject) IsCompiled() bool               { return true }
func (f *NativeFunctionObject) Realm() *Realm                  { return f.realm }
func (f *NativeFunctionObject) APITemplate() *FunctionTemplate { return f.template }
func (f *NativeFunctionObject) FunctionName() string           { return f.Name }

// InstancePrototype returns the prototype given to objects created from the
// function's template, or undefined for plain natives.
func (f *NativeFunctionObject) InstancePrototype() Value {
	return f.instancePrototype
}
