package vm

import (
	"sync"
	"unsafe"
)

// NativeCallback is a host function invoked through a FunctionTemplate.
type NativeCallback func(info *CallbackInfo) Value

// CallbackInfo is what a NativeCallback sees of its invocation. Holder is the
// object that satisfied the template signature, which differs from This when
// the receiver is a global proxy.
type CallbackInfo struct {
	This   Value
	Holder Value
	Args   []Value
	Data   Value
	Realm  *Realm
}

// CallHandler describes the host callback behind a template.
type CallHandler struct {
	Callback NativeCallback
	Data     Value
}

// FunctionTemplate is a realm-independent description of a host function and
// of the objects it constructs. Templates are instantiated lazily, once per
// realm.
type FunctionTemplate struct {
	Name   string
	Length int

	callHandler       *CallHandler
	signature         *FunctionTemplate
	acceptAnyReceiver bool
	parent            *FunctionTemplate
	instanceFamily    ShapeFamily

	mu             sync.Mutex
	functions      map[*Realm]Value
	instanceShapes map[*Realm]*Shape
}

// NewFunctionTemplate creates a template. A nil callback leaves the template
// without a call handler.
func NewFunctionTemplate(name string, callback NativeCallback) *FunctionTemplate {
	t := &FunctionTemplate{
		Name:              name,
		acceptAnyReceiver: true,
		instanceFamily:    FamilyOrdinary,
		functions:         make(map[*Realm]Value),
		instanceShapes:    make(map[*Realm]*Shape),
	}
	if callback != nil {
		t.callHandler = &CallHandler{Callback: callback, Data: Undefined}
	}
	return t
}

// Value returns the template as a Value.
func (t *FunctionTemplate) Value() Value {
	return NewValueFromTemplate(t)
}

// SetCallHandler installs (or with a nil callback, removes) the host callback.
func (t *FunctionTemplate) SetCallHandler(callback NativeCallback, data Value) {
	if callback == nil {
		t.callHandler = nil
		return
	}
	t.callHandler = &CallHandler{Callback: callback, Data: data}
}

func (t *FunctionTemplate) CallHandler() *CallHandler {
	return t.callHandler
}

// SetSignature restricts receivers of the callback to instances of sig.
func (t *FunctionTemplate) SetSignature(sig *FunctionTemplate) {
	t.signature = sig
}

func (t *FunctionTemplate) Signature() *FunctionTemplate {
	return t.signature
}

func (t *FunctionTemplate) SetAcceptAnyReceiver(accept bool) {
	t.acceptAnyReceiver = accept
}

func (t *FunctionTemplate) AcceptAnyReceiver() bool {
	return t.acceptAnyReceiver
}

// Inherit makes instances of t also instances of parent. Returns false if it
// would create a cycle.
func (t *FunctionTemplate) Inherit(parent *FunctionTemplate) bool {
	for p := parent; p != nil; p = p.parent {
		if p == t {
			return false
		}
	}
	t.parent = parent
	return true
}

func (t *FunctionTemplate) Parent() *FunctionTemplate {
	return t.parent
}

// SetInstanceFamily selects the shape family of objects created from t.
func (t *FunctionTemplate) SetInstanceFamily(family ShapeFamily) {
	t.instanceFamily = family
}

// IsTemplateFor reports whether objects of the given shape were created by t
// or by a template inheriting from t.
func (t *FunctionTemplate) IsTemplateFor(shape *Shape) bool {
	if shape == nil || !shape.IsObjectShape() {
		return false
	}
	var typ *FunctionTemplate
	ctor := shape.constructor
	switch ctor.Type() {
	case TypeNativeFunction:
		typ = ctor.AsNativeFunction().template
	case TypeFunctionTemplate:
		typ = ctor.AsFunctionTemplate()
	default:
		return false
	}
	for ; typ != nil; typ = typ.parent {
		if typ == t {
			return true
		}
	}
	return false
}

// GetFunction instantiates t in realm, returning the same function on every
// call for that realm.
func (t *FunctionTemplate) GetFunction(realm *Realm) Value {
	t.mu.Lock()
	if fn, ok := t.functions[realm]; ok {
		t.mu.Unlock()
		return fn
	}
	t.mu.Unlock()

	// Resolve the parent first so its lock is never held while ours is.
	protoParent := realm.ObjectPrototype
	if t.parent != nil {
		protoParent = t.parent.GetFunction(realm).AsNativeFunction().instancePrototype
	}
	instanceProto := realm.NewObjectWithPrototype(protoParent)

	fnObj := &NativeFunctionObject{
		Arity:             t.Length,
		Name:              t.Name,
		realm:             realm,
		template:          t,
		instancePrototype: instanceProto.Value(),
	}
	fn := Value{typ: TypeNativeFunction, obj: unsafe.Pointer(fnObj)}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.functions[realm]; ok {
		return existing
	}
	t.functions[realm] = fn
	return fn
}

// InstanceShape returns the initial shape of objects t constructs in realm.
func (t *FunctionTemplate) InstanceShape(realm *Realm) *Shape {
	fn := t.GetFunction(realm)
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.instanceShapes[realm]; ok {
		return s
	}
	s := NewInitialShape(t.instanceFamily, fn, fn.AsNativeFunction().instancePrototype)
	t.instanceShapes[realm] = s
	return s
}

// NewInstance creates an object constructed by t in realm.
func (t *FunctionTemplate) NewInstance(realm *Realm) *PlainObject {
	return NewObjectWithShape(t.InstanceShape(realm)).AsPlainObject()
}
