package vm

import "fmt"

// CompatibleReceiver finds the object a callback with signature sig may run
// against when called on receiver: the receiver itself, or for a global
// proxy the global object behind it.
func CompatibleReceiver(sig *FunctionTemplate, receiver Value) (Value, bool) {
	if sig == nil {
		return receiver, true
	}
	if !receiver.IsObject() {
		return Undefined, false
	}
	shape := receiver.AsPlainObject().shape
	if sig.IsTemplateFor(shape) {
		return receiver, true
	}
	if shape.IsGlobalProxyShape() {
		proto := shape.prototype
		if proto.IsObject() && sig.IsTemplateFor(proto.AsPlainObject().shape) {
			return proto, true
		}
	}
	return Undefined, false
}

// Call is the generic invocation path. realm is the calling realm, used to
// instantiate bare templates.
func Call(realm *Realm, fn Value, this Value, args []Value) (Value, error) {
	switch fn.Type() {
	case TypeFunctionTemplate:
		if realm == nil {
			return Undefined, fmt.Errorf("TypeError: cannot instantiate template %s without a realm", fn.AsFunctionTemplate().Name)
		}
		return Call(realm, fn.AsFunctionTemplate().GetFunction(realm), this, args)
	case TypeFunction:
		f := fn.AsFunction()
		if !f.IsCompiled() {
			f.Compile()
		}
		return Undefined, nil
	case TypeNativeFunction:
		nf := fn.AsNativeFunction()
		if nf.template == nil {
			if nf.Fn == nil {
				return Undefined, nil
			}
			return nf.Fn(args), nil
		}
		return callAPIFunction(nf, this, args)
	default:
		return Undefined, fmt.Errorf("TypeError: %s is not a function", fn.TypeName())
	}
}

func callAPIFunction(nf *NativeFunctionObject, this Value, args []Value) (Value, error) {
	t := nf.template
	handler := t.callHandler
	if handler == nil {
		return Undefined, nil
	}
	if !t.acceptAnyReceiver && this.IsObject() && this.AsPlainObject().shape.IsGlobalProxyShape() {
		proxied := this.AsPlainObject().shape.ConstructorRealm()
		if proxied != nf.realm {
			return Undefined, fmt.Errorf("TypeError: Illegal invocation of %s across realms", nf.Name)
		}
	}
	holder, ok := CompatibleReceiver(t.signature, this)
	if !ok {
		return Undefined, fmt.Errorf("TypeError: Illegal invocation of %s", nf.Name)
	}
	info := &CallbackInfo{
		This:   this,
		Holder: holder,
		Args:   args,
		Data:   handler.Data,
		Realm:  nf.realm,
	}
	return handler.Callback(info), nil
}

// InvokeCallback runs a call handler directly, skipping receiver checks. The
// caller has already proven that holder satisfies the template signature.
func InvokeCallback(handler *CallHandler, realm *Realm, this Value, holder Value, args []Value) Value {
	return handler.Callback(&CallbackInfo{
		This:   this,
		Holder: holder,
		Args:   args,
		Data:   handler.Data,
		Realm:  realm,
	})
}
