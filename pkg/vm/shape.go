package vm

import (
	"fmt"
	"sync"
)

// ShapeFamily classifies the kind of object a shape describes.
type ShapeFamily uint8

const (
	FamilyOrdinary    ShapeFamily = iota // plain objects, global objects, API instances
	FamilyGlobalProxy                    // the proxy fronting a realm's global object
	FamilyFunction                       // function objects
	FamilyOtherExotic                    // proxies, primitive wrappers and the rest
)

func (f ShapeFamily) String() string {
	switch f {
	case FamilyOrdinary:
		return "ordinary"
	case FamilyGlobalProxy:
		return "global-proxy"
	case FamilyFunction:
		return "function"
	case FamilyOtherExotic:
		return "other-exotic"
	default:
		return fmt.Sprintf("ShapeFamily(%d)", uint8(f))
	}
}

type Field struct {
	offset     int
	name       string
	isAccessor bool
}

// Shape describes an object layout. The family, constructor and prototype are
// fixed for the lifetime of a shape and shared by every shape in the same
// transition tree; only the field list grows along transitions.
type Shape struct {
	parent      *Shape
	fields      []Field
	transitions map[string]*Shape // keyed by field name, "@" suffix for accessors
	mu          sync.RWMutex      // Protects transitions map
	version     uint32            // Bumped on any layout/flags change

	family      ShapeFamily
	constructor Value // function, template or undefined
	prototype   Value // object or null
}

// NewInitialShape creates the root of a transition tree. A prototype that is
// not an object is stored as null.
func NewInitialShape(family ShapeFamily, constructor Value, prototype Value) *Shape {
	if !prototype.IsObject() {
		prototype = Null
	}
	return &Shape{
		fields:      []Field{},
		transitions: make(map[string]*Shape),
		family:      family,
		constructor: constructor,
		prototype:   prototype,
	}
}

func (s *Shape) Family() ShapeFamily { return s.family }

// Constructor returns the function (or template) that produced objects of
// this shape, or undefined.
func (s *Shape) Constructor() Value { return s.constructor }

// Prototype returns the prototype object, or null.
func (s *Shape) Prototype() Value { return s.prototype }

func (s *Shape) Parent() *Shape { return s.parent }

func (s *Shape) Version() uint32 { return s.version }

func (s *Shape) FieldCount() int { return len(s.fields) }

// PrototypeShape returns the shape of the prototype object, or nil when the
// prototype is null.
func (s *Shape) PrototypeShape() *Shape {
	if !s.prototype.IsObject() {
		return nil
	}
	return s.prototype.AsPlainObject().shape
}

// IsObjectShape reports whether receiver-type constraints can be checked
// against objects of this shape.
func (s *Shape) IsObjectShape() bool {
	return s.family == FamilyOrdinary || s.family == FamilyGlobalProxy
}

func (s *Shape) IsGlobalProxyShape() bool {
	return s.family == FamilyGlobalProxy
}

// ConstructorRealm returns the realm owning the shape's constructor function.
// Shapes without a function constructor have no realm.
func (s *Shape) ConstructorRealm() *Realm {
	switch s.constructor.Type() {
	case TypeFunction, TypeNativeFunction:
		return s.constructor.AsJSFunction().Realm()
	}
	return nil
}

func (s *Shape) lookupField(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}
	return Field{}, false
}

// transition returns the child shape that adds a field named name.
func (s *Shape) transition(name string, accessor bool) *Shape {
	key := name
	if accessor {
		key += "@"
	}
	s.mu.RLock()
	next, ok := s.transitions[key]
	s.mu.RUnlock()
	if ok {
		return next
	}
	fld := Field{offset: len(s.fields), name: name, isAccessor: accessor}
	newFields := make([]Field, len(s.fields)+1)
	copy(newFields, s.fields)
	newFields[len(s.fields)] = fld
	next = &Shape{
		parent:      s,
		fields:      newFields,
		transitions: make(map[string]*Shape),
		version:     s.version + 1,
		family:      s.family,
		constructor: s.constructor,
		prototype:   s.prototype,
	}
	s.mu.Lock()
	if existing, exists := s.transitions[key]; exists {
		next = existing
	} else {
		s.transitions[key] = next
	}
	s.mu.Unlock()
	return next
}

// detached returns a transition-free copy of s with the given prototype and
// fields. Used when an object leaves its transition tree.
func (s *Shape) detached(prototype Value, fields []Field) *Shape {
	if !prototype.IsObject() {
		prototype = Null
	}
	return &Shape{
		parent:      s.parent,
		fields:      fields,
		transitions: make(map[string]*Shape),
		version:     s.version + 1,
		family:      s.family,
		constructor: s.constructor,
		prototype:   prototype,
	}
}
