package ic

import (
	"fmt"

	"paserati-ic/pkg/vm"
)

// CallKind is the classification of a call target.
type CallKind uint8

const (
	CallKindNone        CallKind = iota // not optimizable
	CallKindConstant                    // function identity can be cached, no host callback
	CallKindConstantAPI                 // constant function backed by a host callback
	CallKindTemplateAPI                 // host callback reached through a template, no identity
)

func (k CallKind) String() string {
	switch k {
	case CallKindNone:
		return "none"
	case CallKindConstant:
		return "constant"
	case CallKindConstantAPI:
		return "constant-api"
	case CallKindTemplateAPI:
		return "template-api"
	default:
		return fmt.Sprintf("CallKind(%d)", uint8(k))
	}
}

// HolderLookup says where a receiver satisfies the expected receiver type.
type HolderLookup uint8

const (
	HolderNotFound HolderLookup = iota
	HolderIsReceiver
	HolderFound // one global-proxy hop away from the receiver
)

func (h HolderLookup) String() string {
	switch h {
	case HolderNotFound:
		return "not-found"
	case HolderIsReceiver:
		return "is-receiver"
	case HolderFound:
		return "found"
	default:
		return fmt.Sprintf("HolderLookup(%d)", uint8(h))
	}
}

// CallOptimization decides whether calls to a target can skip the generic
// call path. It is immutable after construction and safe for concurrent use
// as long as the shape graph it is queried with is not mutated meanwhile.
type CallOptimization struct {
	kind CallKind

	constantFunction     vm.Value
	expectedReceiverType *vm.FunctionTemplate
	apiCallInfo          *vm.CallHandler
	acceptAnyReceiver    bool
}

// NewCallOptimization classifies target, which may be a function value or a
// function template. Any other value classifies as CallKindNone.
func NewCallOptimization(target vm.Value) *CallOptimization {
	co := &CallOptimization{constantFunction: vm.Undefined}
	switch target.Type() {
	case vm.TypeFunction, vm.TypeNativeFunction:
		co.initializeFunction(target)
	case vm.TypeFunctionTemplate:
		co.initializeTemplate(target.AsFunctionTemplate())
	}
	traceClassification(target, co)
	return co
}

func (co *CallOptimization) initializeFunction(fn vm.Value) {
	jsfn := fn.AsJSFunction()
	if !jsfn.IsCompiled() {
		return
	}
	co.kind = CallKindConstant
	co.constantFunction = fn

	info := jsfn.APITemplate()
	if info == nil {
		return
	}
	// Require a host callback.
	if !co.analyzeTemplate(info) {
		return
	}
	co.kind = CallKindConstantAPI
}

func (co *CallOptimization) initializeTemplate(info *vm.FunctionTemplate) {
	if !co.analyzeTemplate(info) {
		return
	}
	co.kind = CallKindTemplateAPI
}

func (co *CallOptimization) analyzeTemplate(info *vm.FunctionTemplate) bool {
	handler := info.CallHandler()
	if handler == nil {
		return false
	}
	co.apiCallInfo = handler
	co.expectedReceiverType = info.Signature()
	co.acceptAnyReceiver = info.AcceptAnyReceiver()
	return true
}

func (co *CallOptimization) Kind() CallKind {
	return co.kind
}

func (co *CallOptimization) IsConstantCall() bool {
	return co.kind == CallKindConstant || co.kind == CallKindConstantAPI
}

func (co *CallOptimization) IsSimpleAPICall() bool {
	return co.kind == CallKindConstantAPI || co.kind == CallKindTemplateAPI
}

func (co *CallOptimization) AcceptAnyReceiver() bool {
	return co.acceptAnyReceiver
}

// ConstantFunction returns the function whose identity can be cached.
func (co *CallOptimization) ConstantFunction() (vm.Value, bool) {
	if !co.IsConstantCall() {
		return vm.Undefined, false
	}
	return co.constantFunction, true
}

// ExpectedReceiverType returns the receiver constraint, if the callback has one.
func (co *CallOptimization) ExpectedReceiverType() (*vm.FunctionTemplate, bool) {
	return co.expectedReceiverType, co.expectedReceiverType != nil
}

// APICallInfo returns the host callback descriptor of a simple API call.
func (co *CallOptimization) APICallInfo() (*vm.CallHandler, bool) {
	return co.apiCallInfo, co.apiCallInfo != nil
}

func (co *CallOptimization) String() string {
	expected := "<any>"
	if co.expectedReceiverType != nil {
		expected = co.expectedReceiverType.Name
	}
	return fmt.Sprintf("CallOptimization{kind: %s, expected: %s, acceptAny: %v}", co.kind, expected, co.acceptAnyReceiver)
}

func (co *CallOptimization) mustBeSimpleAPICall(query string) {
	if !co.IsSimpleAPICall() {
		panic(fmt.Sprintf("ic: %s called on %s, which is not a simple API call", query, co.kind))
	}
}

// LookupHolderOfExpectedType finds where objects of receiverShape satisfy the
// expected receiver type. For HolderFound it also returns the object standing
// in for the receiver. Must only be called on simple API calls.
func (co *CallOptimization) LookupHolderOfExpectedType(receiverShape *vm.Shape) (*vm.PlainObject, HolderLookup) {
	co.mustBeSimpleAPICall("LookupHolderOfExpectedType")
	if receiverShape == nil || !receiverShape.IsObjectShape() {
		return nil, HolderNotFound
	}
	if co.expectedReceiverType == nil || co.expectedReceiverType.IsTemplateFor(receiverShape) {
		return nil, HolderIsReceiver
	}
	if receiverShape.IsGlobalProxyShape() {
		proto := receiverShape.Prototype()
		if proto.IsObject() {
			global := proto.AsPlainObject()
			if co.expectedReceiverType.IsTemplateFor(global.Shape()) {
				return global, HolderFound
			}
		}
	}
	return nil, HolderNotFound
}

// IsCompatibleReceiver checks a holder lookup result against the object that
// actually holds the property. apiHolder is the object returned alongside
// HolderFound; holder is the object found on the real access chain. Must
// only be called on simple API calls.
func (co *CallOptimization) IsCompatibleReceiver(apiHolder, holder *vm.PlainObject, lookup HolderLookup) bool {
	co.mustBeSimpleAPICall("IsCompatibleReceiver")
	switch lookup {
	case HolderNotFound:
		return false
	case HolderIsReceiver:
		return true
	case HolderFound:
		if apiHolder == holder {
			return true
		}
		// Walk up from holder until apiHolder shows up in its chain.
		object := holder
		for object != nil {
			proto := object.Shape().Prototype()
			if !proto.IsObject() {
				return false
			}
			if proto.AsPlainObject() == apiHolder {
				return true
			}
			object = proto.AsPlainObject()
		}
		return false
	}
	panic(fmt.Sprintf("ic: unknown holder lookup %d", uint8(lookup)))
}

// AccessorRealm returns the realm an accessor call should run in: the realm
// of the constant function, or else the realm of holderShape's constructor.
// The result is nil when the constructor is not a function.
func (co *CallOptimization) AccessorRealm(holderShape *vm.Shape) *vm.Realm {
	if co.IsConstantCall() {
		return co.constantFunction.AsJSFunction().Realm()
	}
	if holderShape == nil {
		return nil
	}
	return holderShape.ConstructorRealm()
}

// IsCrossRealmLazyAccessorPair reports whether a lazily instantiated accessor
// seen from realm current would be instantiated in a different realm.
func (co *CallOptimization) IsCrossRealmLazyAccessorPair(current *vm.Realm, holderShape *vm.Shape) bool {
	if co.IsConstantCall() {
		return false
	}
	return co.AccessorRealm(holderShape) != current
}
