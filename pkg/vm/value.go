package vm

import (
	"fmt"
	"unsafe"
)

type ValueType uint8

const (
	TypeUndefined ValueType = iota
	TypeNull

	TypeBoolean
	TypeString

	TypeObject

	TypeFunction
	TypeNativeFunction
	TypeFunctionTemplate
)

// String returns a human-readable string representation of the ValueType
func (vt ValueType) String() string {
	switch vt {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeFunction:
		return "function"
	case TypeNativeFunction:
		return "native function"
	case TypeFunctionTemplate:
		return "function template"
	default:
		return "unknown"
	}
}

type StringObject struct {
	value string
}

type Value struct {
	typ     ValueType
	payload uint64
	obj     unsafe.Pointer
}

var (
	Undefined = Value{typ: TypeUndefined}
	Null      = Value{typ: TypeNull}
	True      = Value{typ: TypeBoolean, payload: 1}
	False     = Value{typ: TypeBoolean, payload: 0}
)

func BooleanValue(value bool) Value {
	if value {
		return True
	}
	return False
}

func NewString(value string) Value {
	return Value{typ: TypeString, obj: unsafe.Pointer(&StringObject{value: value})}
}

// NewValueFromPlainObject wraps an existing object pointer.
func NewValueFromPlainObject(po *PlainObject) Value {
	if po == nil {
		panic("Attempted to create Value from nil PlainObject pointer")
	}
	return Value{typ: TypeObject, obj: unsafe.Pointer(po)}
}

// NewValueFromTemplate wraps a function template so it can sit in accessor
// pairs and shape constructor slots before it is instantiated.
func NewValueFromTemplate(t *FunctionTemplate) Value {
	if t == nil {
		panic("Attempted to create Value from nil FunctionTemplate pointer")
	}
	return Value{typ: TypeFunctionTemplate, obj: unsafe.Pointer(t)}
}

func (v Value) Type() ValueType {
	return v.typ
}

func (v Value) TypeName() string {
	return v.typ.String()
}

func (v Value) IsUndefined() bool {
	return v.typ == TypeUndefined
}

func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

func (v Value) IsString() bool {
	return v.typ == TypeString
}

func (v Value) IsBoolean() bool {
	return v.typ == TypeBoolean
}

func (v Value) IsObject() bool {
	return v.typ == TypeObject
}

func (v Value) IsFunction() bool {
	return v.typ == TypeFunction
}

func (v Value) IsNativeFunction() bool {
	return v.typ == TypeNativeFunction
}

func (v Value) IsFunctionTemplate() bool {
	return v.typ == TypeFunctionTemplate
}

func (v Value) IsCallable() bool {
	return v.typ == TypeFunction || v.typ == TypeNativeFunction
}

func (v Value) AsBoolean() bool {
	if v.typ != TypeBoolean {
		panic("value is not a boolean")
	}
	return v.payload != 0
}

func (v Value) AsString() string {
	if v.typ != TypeString {
		panic("value is not a string")
	}
	return (*StringObject)(v.obj).value
}

func (v Value) AsPlainObject() *PlainObject {
	if v.typ != TypeObject {
		panic("value is not an object")
	}
	return (*PlainObject)(v.obj)
}

func (v Value) AsFunction() *FunctionObject {
	if v.typ != TypeFunction {
		panic("value is not a function")
	}
	return (*FunctionObject)(v.obj)
}

func (v Value) AsNativeFunction() *NativeFunctionObject {
	if v.typ != TypeNativeFunction {
		panic("value is not a native function")
	}
	return (*NativeFunctionObject)(v.obj)
}

func (v Value) AsFunctionTemplate() *FunctionTemplate {
	if v.typ != TypeFunctionTemplate {
		panic("value is not a function template")
	}
	return (*FunctionTemplate)(v.obj)
}

// AsJSFunction returns the materialization view of a callable value.
func (v Value) AsJSFunction() JSFunction {
	switch v.typ {
	case TypeFunction:
		return v.AsFunction()
	case TypeNativeFunction:
		return v.AsNativeFunction()
	}
	panic("value is not callable")
}

// Is reports identity for heap values and equality for primitives.
func (v Value) Is(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeUndefined, TypeNull:
		return true
	case TypeBoolean:
		return v.payload == other.payload
	case TypeString:
		return v.AsString() == other.AsString()
	default:
		return v.obj == other.obj
	}
}

func (v Value) ToString() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		if v.AsBoolean() {
			return "true"
		}
		return "false"
	case TypeString:
		return v.AsString()
	case TypeObject:
		return "[object Object]"
	case TypeFunction:
		return fmt.Sprintf("[Function: %s]", v.AsFunction().Name)
	case TypeNativeFunction:
		return fmt.Sprintf("[Function: %s]", v.AsNativeFunction().Name)
	case TypeFunctionTemplate:
		return fmt.Sprintf("[FunctionTemplate: %s]", v.AsFunctionTemplate().Name)
	default:
		return "<unknown>"
	}
}

// Inspect returns a debug representation of the value.
func (v Value) Inspect() string {
	if v.typ == TypeString {
		return fmt.Sprintf("%q", v.AsString())
	}
	return v.ToString()
}
