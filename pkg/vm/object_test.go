package vm

import (
	"testing"
)

func TestPlainObjectBasic(t *testing.T) {
	poVal := NewObject(DefaultObjectPrototype)
	po := poVal.AsPlainObject()
	// No properties initially
	if po.HasOwn("foo") {
		t.Errorf("expected HasOwn(\"foo\") to be false on new object")
	}
	if v, ok := po.GetOwn("foo"); ok {
		t.Errorf("expected GetOwn(\"foo\") ok=false, got ok=true, v=%v", v.Inspect())
	}
	// Define a property
	po.SetOwn("foo", NewString("bar"))
	if !po.HasOwn("foo") {
		t.Errorf("expected HasOwn(\"foo\") true after SetOwn")
	}
	v, ok := po.GetOwn("foo")
	if !ok {
		t.Fatalf("expected GetOwn(\"foo\") ok=true after SetOwn")
	}
	if v.AsString() != "bar" {
		t.Errorf("expected GetOwn to return 'bar', got %s", v.Inspect())
	}
	// Overwrite existing property
	po.SetOwn("foo", NewString("baz"))
	v2, ok2 := po.GetOwn("foo")
	if !ok2 || v2.AsString() != "baz" {
		t.Errorf("expected overwritten value 'baz', got %s (ok=%v)", v2.Inspect(), ok2)
	}
	keys := po.OwnKeys()
	if len(keys) != 1 || keys[0] != "foo" {
		t.Errorf("OwnKeys mismatch, expected [foo], got %v", keys)
	}
}

func TestPlainObjectShapeTransitions(t *testing.T) {
	po := NewObject(DefaultObjectPrototype).AsPlainObject()
	root := po.shape
	// first definition creates new shape
	po.SetOwn("a", True)
	s1 := po.shape
	if s1 == root {
		t.Errorf("expected new shape after first property, got same shape")
	}
	// redefining same property should keep shape
	po.SetOwn("a", False)
	if po.shape != s1 {
		t.Errorf("expected same shape on overwrite, got different shapes")
	}
	// adding another property creates another shape
	po.SetOwn("b", True)
	s3 := po.shape
	if s3 == s1 {
		t.Errorf("expected new shape after adding second property, got same shape")
	}
	if s3.Parent() != s1 || s3.FieldCount() != 2 {
		t.Errorf("expected s3 to extend s1 with one field")
	}
	// Objects built the same way share shapes.
	other := &PlainObject{shape: root, extensible: true}
	other.SetOwn("a", Null)
	other.SetOwn("b", Null)
	if other.shape != s3 {
		t.Errorf("expected transition tree to be shared")
	}
	// Transitions keep the root's family, constructor and prototype.
	if s3.Family() != root.Family() || !s3.Prototype().Is(root.Prototype()) {
		t.Errorf("transition changed shape identity fields")
	}
}

func TestPlainObjectAccessors(t *testing.T) {
	r := NewRealm(1, "main", nil)
	getter := NewNativeFunction(r, 0, false, "get", func(args []Value) Value { return NewString("x") })

	proto := r.NewObject()
	proto.DefineAccessorProperty("x", getter, Undefined)
	child := r.NewObjectWithPrototype(proto.Value())

	pair, holder, ok := child.LookupAccessor("x")
	if !ok || holder != proto || !pair.Getter.Is(getter) {
		t.Fatalf("expected accessor found on proto, got ok=%v", ok)
	}
	if pair.IsLazy() {
		t.Errorf("materialized getter must not be lazy")
	}
	if v, ok := proto.GetOwn("x"); !ok || !v.IsUndefined() {
		t.Errorf("accessor should read as undefined through GetOwn")
	}

	// Assigning to an accessor does not replace it.
	proto.SetOwn("x", True)
	if _, ok := proto.GetOwnAccessor("x"); !ok {
		t.Errorf("accessor replaced by data assignment")
	}

	// A data property lower in the chain shadows the accessor.
	child.SetOwn("x", True)
	if _, _, ok := child.LookupAccessor("x"); ok {
		t.Errorf("expected data property to shadow accessor")
	}

	// Data to accessor conversion leaves the transition tree.
	obj := r.NewObject()
	obj.SetOwn("y", True)
	before := obj.Shape()
	obj.DefineAccessorProperty("y", Undefined, NewFunctionTemplate("set", nil).Value())
	if obj.Shape() == before {
		t.Errorf("expected a new shape after converting data to accessor")
	}
	pair, ok = obj.GetOwnAccessor("y")
	if !ok || !pair.IsLazy() {
		t.Errorf("expected lazy accessor after conversion")
	}
}

func TestPlainObjectSetPrototype(t *testing.T) {
	r := NewRealm(1, "main", nil)
	a := r.NewObject()
	b := r.NewObjectWithPrototype(a.Value())

	shape := a.Shape()
	if !a.SetPrototype(Null) {
		t.Fatalf("expected SetPrototype(null) to succeed")
	}
	if a.Shape() == shape || !a.GetPrototype().IsNull() {
		t.Errorf("expected a detached shape with null prototype")
	}
	if a.Shape().Constructor().Is(Undefined) {
		t.Errorf("constructor must survive a prototype change")
	}

	// Cycles are rejected.
	if a.SetPrototype(b.Value()) {
		t.Errorf("expected cycle to be rejected")
	}
	if a.SetPrototype(True) {
		t.Errorf("expected non-object prototype to be rejected")
	}

	// Non-extensible objects keep their prototype.
	b.PreventExtensions()
	if b.SetPrototype(Null) {
		t.Errorf("expected non-extensible object to refuse a new prototype")
	}
	if !b.SetPrototype(a.Value()) {
		t.Errorf("setting the same prototype is always allowed")
	}
	b.SetOwn("late", True)
	if b.HasOwn("late") {
		t.Errorf("non-extensible object gained a property")
	}
}

func TestShapeFamilies(t *testing.T) {
	r := NewRealm(1, "main", nil)
	tests := []struct {
		shape       *Shape
		objectShape bool
		proxy       bool
	}{
		{r.NewObject().Shape(), true, false},
		{r.GlobalProxy.Shape(), true, true},
		{r.NewFunctionObject().Shape(), false, false},
		{NewInitialShape(FamilyOtherExotic, Undefined, Null), false, false},
	}
	for _, tt := range tests {
		if tt.shape.IsObjectShape() != tt.objectShape {
			t.Errorf("%s: IsObjectShape = %v", tt.shape.Family(), !tt.objectShape)
		}
		if tt.shape.IsGlobalProxyShape() != tt.proxy {
			t.Errorf("%s: IsGlobalProxyShape = %v", tt.shape.Family(), !tt.proxy)
		}
	}

	if s := NewInitialShape(FamilyOrdinary, Undefined, True); !s.Prototype().IsNull() || s.PrototypeShape() != nil {
		t.Errorf("non-object prototype should be stored as null")
	}
	if r.NewObject().Shape().ConstructorRealm() != r {
		t.Errorf("expected realm objects to report their realm")
	}
	if NewObject(Null).AsPlainObject().Shape().ConstructorRealm() != nil {
		t.Errorf("realm-less objects have no constructor realm")
	}
}
