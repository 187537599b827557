package vm

import "unsafe"

type PlainObject struct {
	shape      *Shape
	properties []Value
	// Accessor storage keyed by property name
	accessors map[string]*AccessorPair
	// Extensible flag - when false, no new properties can be added
	extensible bool
}

// Define the shared default prototype for realm-less plain objects
var DefaultObjectPrototype Value

func init() {
	// The default prototype is an object whose own prototype is Null.
	protoObj := &PlainObject{shape: NewInitialShape(FamilyOrdinary, Undefined, Null), extensible: true}
	DefaultObjectPrototype = Value{typ: TypeObject, obj: unsafe.Pointer(protoObj)}
}

// NewObject creates a realm-less ordinary object. Objects created this way
// have no constructor and therefore no owning realm.
func NewObject(proto Value) Value {
	prototype := DefaultObjectPrototype
	if proto.IsObject() || proto.IsNull() {
		prototype = proto
	}
	return NewObjectWithShape(NewInitialShape(FamilyOrdinary, Undefined, prototype))
}

// NewObjectWithShape creates an empty object using shape as its map.
func NewObjectWithShape(shape *Shape) Value {
	if shape == nil {
		panic("Cannot create object with a nil Shape")
	}
	plainObj := &PlainObject{shape: shape, extensible: true}
	if n := len(shape.fields); n > 0 {
		plainObj.properties = make([]Value, n)
	}
	return Value{typ: TypeObject, obj: unsafe.Pointer(plainObj)}
}

// Value returns the object as a Value.
func (o *PlainObject) Value() Value {
	return NewValueFromPlainObject(o)
}

func (o *PlainObject) Shape() *Shape {
	return o.shape
}

// GetPrototype returns the object's prototype.
func (o *PlainObject) GetPrototype() Value {
	return o.shape.prototype
}

// SetPrototype sets the object's prototype. The object moves to a new shape.
// Returns false if the object is non-extensible or the change would create a cycle.
func (o *PlainObject) SetPrototype(proto Value) bool {
	if !proto.IsObject() && !proto.IsNull() {
		return false
	}
	if o.shape.prototype.Is(proto) {
		return true
	}
	if !o.extensible {
		return false
	}
	for p := proto; p.IsObject(); p = p.AsPlainObject().shape.prototype {
		if p.AsPlainObject() == o {
			return false
		}
	}
	fields := make([]Field, len(o.shape.fields))
	copy(fields, o.shape.fields)
	o.shape = o.shape.detached(proto, fields)
	return true
}

// GetOwn looks up a direct (own) data property by name. Returns (value, true) if present.
// Accessor properties report (Undefined, true).
func (o *PlainObject) GetOwn(name string) (Value, bool) {
	f, ok := o.shape.lookupField(name)
	if !ok {
		return Undefined, false
	}
	if f.isAccessor || f.offset >= len(o.properties) {
		return Undefined, true
	}
	return o.properties[f.offset], true
}

// HasOwn reports whether an own property with the given name exists.
func (o *PlainObject) HasOwn(name string) bool {
	_, ok := o.shape.lookupField(name)
	return ok
}

// SetOwn sets or defines an own data property. Creates a new shape on first definition.
// Assigning to an own accessor property is a no-op.
func (o *PlainObject) SetOwn(name string, v Value) {
	if f, ok := o.shape.lookupField(name); ok {
		if !f.isAccessor {
			o.properties[f.offset] = v
		}
		return
	}
	if !o.extensible {
		return
	}
	o.shape = o.shape.transition(name, false)
	o.properties = append(o.properties, v)
}

// DefineAccessorProperty defines or replaces an accessor own property. Getter and
// setter may each be undefined, a function, or a template awaiting lazy
// instantiation.
func (o *PlainObject) DefineAccessorProperty(name string, getter Value, setter Value) {
	pair := &AccessorPair{Getter: getter, Setter: setter}
	if f, ok := o.shape.lookupField(name); ok {
		if !f.isAccessor {
			// Data to accessor conversion: rebuild the layout off the transition tree
			fields := make([]Field, len(o.shape.fields))
			copy(fields, o.shape.fields)
			for i := range fields {
				if fields[i].name == name {
					fields[i].isAccessor = true
				}
			}
			o.shape = o.shape.detached(o.shape.prototype, fields)
			o.properties[f.offset] = Undefined
		}
		if o.accessors == nil {
			o.accessors = make(map[string]*AccessorPair)
		}
		o.accessors[name] = pair
		return
	}
	if !o.extensible {
		return
	}
	o.shape = o.shape.transition(name, true)
	o.properties = append(o.properties, Undefined)
	if o.accessors == nil {
		o.accessors = make(map[string]*AccessorPair)
	}
	o.accessors[name] = pair
}

// GetOwnAccessor returns the accessor pair for an own accessor property.
func (o *PlainObject) GetOwnAccessor(name string) (*AccessorPair, bool) {
	f, ok := o.shape.lookupField(name)
	if !ok || !f.isAccessor {
		return nil, false
	}
	pair, ok := o.accessors[name]
	return pair, ok
}

// Get looks up a data property by name, walking the prototype chain if necessary.
func (o *PlainObject) Get(name string) (Value, bool) {
	for cur := o; cur != nil; {
		if v, ok := cur.GetOwn(name); ok {
			return v, true
		}
		proto := cur.shape.prototype
		if !proto.IsObject() {
			break
		}
		cur = proto.AsPlainObject()
	}
	return Undefined, false
}

// LookupAccessor walks the prototype chain for an accessor property and
// returns the pair together with the object that holds it. A data property
// found first shadows any accessor further up the chain.
func (o *PlainObject) LookupAccessor(name string) (*AccessorPair, *PlainObject, bool) {
	for cur := o; cur != nil; {
		if f, ok := cur.shape.lookupField(name); ok {
			if !f.isAccessor {
				return nil, nil, false
			}
			pair, ok := cur.accessors[name]
			return pair, cur, ok
		}
		proto := cur.shape.prototype
		if !proto.IsObject() {
			break
		}
		cur = proto.AsPlainObject()
	}
	return nil, nil, false
}

// OwnKeys returns the list of own property names in insertion order.
func (o *PlainObject) OwnKeys() []string {
	keys := make([]string, 0, len(o.shape.fields))
	for _, f := range o.shape.fields {
		keys = append(keys, f.name)
	}
	return keys
}

// IsExtensible returns whether new properties can be added to this object
func (o *PlainObject) IsExtensible() bool {
	return o.extensible
}

// PreventExtensions clears the extensible flag. It cannot be set back.
func (o *PlainObject) PreventExtensions() {
	o.extensible = false
}
