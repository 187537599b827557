package scenario

import (
	"fmt"
	"sort"
	"strings"

	"paserati-ic/pkg/ic"
	"paserati-ic/pkg/vm"
)

// Object references of the form prefix:realm.
const (
	refGlobalProxy  = "global"
	refGlobalObject = "globalobject"
)

// Graph is a built scenario: live realms, templates, functions and objects.
type Graph struct {
	Scenario *Scenario
	Config   ic.Config

	realms    map[string]*vm.Realm
	templates map[string]*vm.FunctionTemplate
	functions map[string]vm.Value
	targets   map[string]vm.Value
	objects   map[string]*vm.PlainObject
	names     map[*vm.PlainObject]string
}

// Build instantiates the scenario. Config starts from ic.DefaultConfig and
// may be replaced before Run.
func (sc *Scenario) Build() (*Graph, error) {
	g := &Graph{
		Scenario:  sc,
		Config:    ic.DefaultConfig(),
		realms:    make(map[string]*vm.Realm),
		templates: make(map[string]*vm.FunctionTemplate),
		functions: make(map[string]vm.Value),
		targets:   make(map[string]vm.Value),
		objects:   make(map[string]*vm.PlainObject),
		names:     make(map[*vm.PlainObject]string),
	}
	steps := []func() error{
		g.buildTemplates,
		g.buildRealms,
		g.buildFunctions,
		g.buildTargets,
		g.buildObjects,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}
	return g, nil
}

func parseFamily(name string) (vm.ShapeFamily, error) {
	switch name {
	case "", "ordinary":
		return vm.FamilyOrdinary, nil
	case "global-proxy":
		return vm.FamilyGlobalProxy, nil
	case "function":
		return vm.FamilyFunction, nil
	case "exotic", "other-exotic":
		return vm.FamilyOtherExotic, nil
	}
	return 0, fmt.Errorf("unknown shape family %q", name)
}

func returnsOwnName(name string) vm.NativeCallback {
	return func(info *vm.CallbackInfo) vm.Value {
		return vm.NewString(name)
	}
}

func (g *Graph) buildTemplates() error {
	for _, spec := range g.Scenario.Templates {
		var cb vm.NativeCallback
		if spec.Callback {
			cb = returnsOwnName(spec.Name)
		}
		t := vm.NewFunctionTemplate(spec.Name, cb)
		if spec.AcceptAnyReceiver != nil {
			t.SetAcceptAnyReceiver(*spec.AcceptAnyReceiver)
		}
		family, err := parseFamily(spec.Family)
		if err != nil {
			return fmt.Errorf("template %s: %w", spec.Name, err)
		}
		t.SetInstanceFamily(family)
		g.templates[spec.Name] = t
	}
	// Second pass: parents and signatures may refer forward.
	for _, spec := range g.Scenario.Templates {
		t := g.templates[spec.Name]
		if spec.Parent != "" {
			parent, err := g.template(spec.Parent)
			if err != nil {
				return fmt.Errorf("template %s: %w", spec.Name, err)
			}
			if !t.Inherit(parent) {
				return fmt.Errorf("template %s: inheriting from %s creates a cycle", spec.Name, spec.Parent)
			}
		}
		if spec.Signature != "" {
			sig, err := g.template(spec.Signature)
			if err != nil {
				return fmt.Errorf("template %s: %w", spec.Name, err)
			}
			t.SetSignature(sig)
		}
	}
	return nil
}

func (g *Graph) buildRealms() error {
	for i, spec := range g.Scenario.Realms {
		var global *vm.FunctionTemplate
		if spec.Global != "" {
			t, err := g.template(spec.Global)
			if err != nil {
				return fmt.Errorf("realm %s: %w", spec.Name, err)
			}
			global = t
		}
		r := vm.NewRealm(i+1, spec.Name, global)
		g.realms[spec.Name] = r
		g.names[r.GlobalProxy] = refGlobalProxy + ":" + spec.Name
		g.names[r.GlobalObject] = refGlobalObject + ":" + spec.Name
	}
	return nil
}

func (g *Graph) buildFunctions() error {
	for _, spec := range g.Scenario.Functions {
		realm, err := g.realm(spec.Realm)
		if err != nil {
			return fmt.Errorf("function %s: %w", spec.Name, err)
		}
		switch {
		case spec.Template != "":
			t, err := g.template(spec.Template)
			if err != nil {
				return fmt.Errorf("function %s: %w", spec.Name, err)
			}
			g.functions[spec.Name] = t.GetFunction(realm)
		case spec.Native:
			spec := spec // per-iteration capture (go.mod is go 1.21)
			g.functions[spec.Name] = vm.NewNativeFunction(realm, 0, false, spec.Name, func(args []vm.Value) vm.Value {
				return vm.NewString(spec.Name)
			})
		default:
			fn := vm.NewFunction(realm, 0, spec.Name)
			if spec.Compiled {
				fn.AsFunction().Compile()
			}
			g.functions[spec.Name] = fn
		}
	}
	return nil
}

func (g *Graph) buildTargets() error {
	for _, spec := range g.Scenario.Targets {
		if spec.Function != "" {
			fn, ok := g.functions[spec.Function]
			if !ok {
				return fmt.Errorf("target %s: unknown function %q", spec.Name, spec.Function)
			}
			g.targets[spec.Name] = fn
			continue
		}
		t, err := g.template(spec.Template)
		if err != nil {
			return fmt.Errorf("target %s: %w", spec.Name, err)
		}
		g.targets[spec.Name] = t.Value()
	}
	return nil
}

func (g *Graph) buildObjects() error {
	specs := make(map[string]*ObjectSpec, len(g.Scenario.Objects))
	for i := range g.Scenario.Objects {
		specs[g.Scenario.Objects[i].Name] = &g.Scenario.Objects[i]
	}
	building := make(map[string]bool)

	var build func(name string) (*vm.PlainObject, error)
	build = func(name string) (*vm.PlainObject, error) {
		if obj, ok := g.objects[name]; ok {
			return obj, nil
		}
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("unknown object %q", name)
		}
		if building[name] {
			return nil, fmt.Errorf("object %s: prototype cycle", name)
		}
		building[name] = true
		defer delete(building, name)

		proto := vm.Undefined
		switch {
		case spec.Prototype == "null":
			proto = vm.Null
		case strings.Contains(spec.Prototype, ":"):
			obj, err := g.object(spec.Prototype)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", name, err)
			}
			proto = obj.Value()
		case spec.Prototype != "":
			obj, err := build(spec.Prototype)
			if err != nil {
				return nil, err
			}
			proto = obj.Value()
		}

		obj, err := g.newObject(spec, proto)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", name, err)
		}
		g.objects[name] = obj
		g.names[obj] = name
		return obj, nil
	}

	for _, spec := range g.Scenario.Objects {
		if _, err := build(spec.Name); err != nil {
			return err
		}
	}
	return nil
}

// newObject creates one object. proto is undefined when the prototype is left
// to the template or realm.
func (g *Graph) newObject(spec *ObjectSpec, proto vm.Value) (*vm.PlainObject, error) {
	realm, err := g.realm(spec.Realm)
	if err != nil {
		return nil, err
	}
	family, err := parseFamily(spec.Family)
	if err != nil {
		return nil, err
	}

	var obj *vm.PlainObject
	switch {
	case spec.Template != "":
		if spec.Family != "" {
			return nil, fmt.Errorf("family comes from template %s", spec.Template)
		}
		t, err := g.template(spec.Template)
		if err != nil {
			return nil, err
		}
		obj = t.NewInstance(realm)
		if !proto.IsUndefined() && !obj.SetPrototype(proto) {
			return nil, fmt.Errorf("cannot set prototype")
		}
	case family != vm.FamilyOrdinary:
		if proto.IsUndefined() {
			proto = realm.ObjectPrototype
		}
		obj = vm.NewObjectWithShape(vm.NewInitialShape(family, realm.ObjectConstructor, proto)).AsPlainObject()
	case proto.IsUndefined():
		obj = realm.NewObject()
	default:
		obj = realm.NewObjectWithPrototype(proto)
	}

	keys := make([]string, 0, len(spec.Data))
	for k := range spec.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		obj.SetOwn(k, vm.NewString(spec.Data[k]))
	}
	for _, acc := range spec.Accessors {
		getter, ok := g.targets[acc.Getter]
		if !ok {
			return nil, fmt.Errorf("accessor %s: unknown target %q", acc.Name, acc.Getter)
		}
		obj.DefineAccessorProperty(acc.Name, getter, vm.Undefined)
	}
	return obj, nil
}

// realm resolves a realm name; the empty name is the first realm.
func (g *Graph) realm(name string) (*vm.Realm, error) {
	if name == "" {
		name = g.Scenario.Realms[0].Name
	}
	r, ok := g.realms[name]
	if !ok {
		return nil, fmt.Errorf("unknown realm %q", name)
	}
	return r, nil
}

func (g *Graph) template(name string) (*vm.FunctionTemplate, error) {
	t, ok := g.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	return t, nil
}

// object resolves an object name, global:<realm> (the realm's global proxy)
// or globalobject:<realm>.
func (g *Graph) object(ref string) (*vm.PlainObject, error) {
	if prefix, realmName, ok := strings.Cut(ref, ":"); ok {
		r, err := g.realm(realmName)
		if err != nil {
			return nil, err
		}
		switch prefix {
		case refGlobalProxy:
			return r.GlobalProxy, nil
		case refGlobalObject:
			return r.GlobalObject, nil
		}
		return nil, fmt.Errorf("unknown object reference %q", ref)
	}
	obj, ok := g.objects[ref]
	if !ok {
		return nil, fmt.Errorf("unknown object %q", ref)
	}
	return obj, nil
}

func (g *Graph) nameOf(obj *vm.PlainObject) string {
	if obj == nil {
		return ""
	}
	if name, ok := g.names[obj]; ok {
		return name
	}
	return "<anonymous>"
}

// Realm returns the named realm, for callers driving the graph directly.
func (g *Graph) Realm(name string) (*vm.Realm, bool) {
	r, ok := g.realms[name]
	return r, ok
}

// Object returns the named object or global reference.
func (g *Graph) Object(ref string) (*vm.PlainObject, bool) {
	obj, err := g.object(ref)
	return obj, err == nil
}

// Target returns the value behind a named target.
func (g *Graph) Target(name string) (vm.Value, bool) {
	v, ok := g.targets[name]
	return v, ok
}
