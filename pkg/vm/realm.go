package vm

// Realm represents an isolated JavaScript execution environment.
// Each realm has its own global object, built-in prototypes, and intrinsics.
type Realm struct {
	// Identity
	id   int // Unique realm identifier
	name string

	// Built-in prototypes
	ObjectPrototype   Value
	FunctionPrototype Value

	// Constructors
	ObjectConstructor Value

	// Global environment. Script code only ever sees GlobalProxy; property
	// lookups through it land on GlobalObject one prototype hop away.
	GlobalObject *PlainObject
	GlobalProxy  *PlainObject

	objectShape *Shape
}

// NewRealm creates a realm and its global object. When globalTemplate is
// non-nil the global object is an instance of it.
func NewRealm(id int, name string, globalTemplate *FunctionTemplate) *Realm {
	r := &Realm{id: id, name: name}

	r.ObjectConstructor = NewNativeFunction(r, 1, false, "Object", func(args []Value) Value {
		return r.NewObject().Value()
	})

	// Object.prototype is the root (inherits from null)
	r.ObjectPrototype = NewObjectWithShape(NewInitialShape(FamilyOrdinary, r.ObjectConstructor, Null))
	r.objectShape = NewInitialShape(FamilyOrdinary, r.ObjectConstructor, r.ObjectPrototype)
	r.FunctionPrototype = r.NewObject().Value()

	if globalTemplate != nil {
		r.GlobalObject = globalTemplate.NewInstance(r)
	} else {
		r.GlobalObject = r.NewObject()
	}
	// The proxy is never an instance of the global template itself; signature
	// checks have to look through it.
	proxyShape := NewInitialShape(FamilyGlobalProxy, r.ObjectConstructor, r.GlobalObject.Value())
	r.GlobalProxy = NewObjectWithShape(proxyShape).AsPlainObject()
	return r
}

// ID returns the unique identifier for this realm.
func (r *Realm) ID() int {
	return r.id
}

func (r *Realm) Name() string {
	return r.name
}

// NewObject creates an ordinary object inheriting from this realm's Object.prototype.
func (r *Realm) NewObject() *PlainObject {
	return NewObjectWithShape(r.objectShape).AsPlainObject()
}

// NewObjectWithPrototype creates an ordinary object owned by this realm with
// the given prototype.
func (r *Realm) NewObjectWithPrototype(proto Value) *PlainObject {
	if proto.Is(r.ObjectPrototype) {
		return r.NewObject()
	}
	return NewObjectWithShape(NewInitialShape(FamilyOrdinary, r.ObjectConstructor, proto)).AsPlainObject()
}

// NewFunctionObject creates an object with a function-family shape, used to
// represent function receivers in the shape graph.
func (r *Realm) NewFunctionObject() *PlainObject {
	return NewObjectWithShape(NewInitialShape(FamilyFunction, r.ObjectConstructor, r.FunctionPrototype)).AsPlainObject()
}
