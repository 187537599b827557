package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"paserati-ic/pkg/ic"
	"paserati-ic/pkg/vm"
)

const (
	PathFast    = "fast"
	PathGeneric = "generic"
)

// Run classifies every target, then evaluates checks and loads in order.
// Expectation mismatches end up in Report.Failures; the error is reserved for
// a scenario that could not be evaluated at all.
func (g *Graph) Run() (rep *Report, err error) {
	if err := g.Config.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", g.Scenario.Name, err)
	}
	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("scenario %s: %v", g.Scenario.Name, r)
		}
	}()

	rep = &Report{
		RunID:    uuid.NewString(),
		Scenario: g.Scenario.Name,
		APICalls: g.Config.EnableAPICalls,
	}

	analyses := make(map[string]*ic.CallOptimization, len(g.targets))
	for _, spec := range g.Scenario.Targets {
		co := ic.NewCallOptimization(g.targets[spec.Name])
		analyses[spec.Name] = co
		res := classify(spec.Name, co)
		if spec.Expect != nil && spec.Expect.Kind != "" && spec.Expect.Kind != res.Kind {
			rep.fail("target %s: expected kind %s, got %s", spec.Name, spec.Expect.Kind, res.Kind)
		}
		rep.Targets = append(rep.Targets, res)
	}

	for i, spec := range g.Scenario.Checks {
		co, ok := analyses[spec.Target]
		if !ok {
			return nil, fmt.Errorf("scenario %s: check #%d: unknown target %q", g.Scenario.Name, i+1, spec.Target)
		}
		res, err := g.check(spec, co)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: check #%d: %w", g.Scenario.Name, i+1, err)
		}
		for _, msg := range res.mismatches(spec.Expect) {
			rep.fail("check #%d (%s on %s): %s", i+1, spec.Target, spec.Receiver, msg)
		}
		rep.Checks = append(rep.Checks, res)
	}

	sites := make(map[int]*ic.AccessorSite)
	table := ic.NewSiteTable(g.Config)
	for i, spec := range g.Scenario.Loads {
		id := spec.Site
		if id == 0 {
			id = i + 1
		}
		site := table.GetOrCreate(id, spec.Property)
		if site.Name() != spec.Property {
			return nil, fmt.Errorf("scenario %s: load #%d: site %d reads %q, not %q", g.Scenario.Name, i+1, id, site.Name(), spec.Property)
		}
		sites[id] = site
		res, err := g.load(id, site, spec)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: load #%d: %w", g.Scenario.Name, i+1, err)
		}
		for _, msg := range res.mismatches(spec.Expect) {
			rep.fail("load #%d (%s of %s): %s", i+1, spec.Property, spec.Receiver, msg)
		}
		rep.Loads = append(rep.Loads, res)
	}

	ids := make([]int, 0, len(sites))
	for id := range sites {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		site := sites[id]
		st := site.Stats()
		rep.Sites = append(rep.Sites, SiteResult{
			ID:       id,
			Property: site.Name(),
			State:    site.State().String(),
			Hits:     st.Hits,
			Misses:   st.Misses,
			Fast:     st.FastCalls,
			Generic:  st.GenericCalls,
		})
	}
	return rep, nil
}

func classify(name string, co *ic.CallOptimization) TargetResult {
	res := TargetResult{
		Name:      name,
		Kind:      co.Kind().String(),
		Constant:  co.IsConstantCall(),
		SimpleAPI: co.IsSimpleAPICall(),
		AcceptAny: co.AcceptAnyReceiver(),
	}
	if t, ok := co.ExpectedReceiverType(); ok {
		res.Expected = t.Name
	}
	return res
}

func (g *Graph) check(spec CheckSpec, co *ic.CallOptimization) (CheckResult, error) {
	receiver, err := g.object(spec.Receiver)
	if err != nil {
		return CheckResult{}, err
	}
	holderRef := spec.Holder
	holder := receiver
	if holderRef != "" {
		if holder, err = g.object(holderRef); err != nil {
			return CheckResult{}, err
		}
	} else if receiver.Shape().IsGlobalProxyShape() && receiver.GetPrototype().IsObject() {
		// The proxy itself holds nothing; accessors live on what it fronts.
		holder = receiver.GetPrototype().AsPlainObject()
	}
	current, err := g.realm(spec.Realm)
	if err != nil {
		return CheckResult{}, err
	}

	res := CheckResult{
		Target:   spec.Target,
		Receiver: spec.Receiver,
		Holder:   g.nameOf(holder),
		Realm:    current.Name(),
		Lookup:   "n/a",
	}
	if co.IsSimpleAPICall() {
		apiHolder, lookup := co.LookupHolderOfExpectedType(receiver.Shape())
		res.Lookup = lookup.String()
		res.APIHolder = g.nameOf(apiHolder)
		res.Compatible = co.IsCompatibleReceiver(apiHolder, holder, lookup)
	}
	if r := co.AccessorRealm(holder.Shape()); r != nil {
		res.AccessorRealm = r.Name()
	}
	res.CrossRealm = co.IsCrossRealmLazyAccessorPair(current, holder.Shape())
	return res, nil
}

func (g *Graph) load(id int, site *ic.AccessorSite, spec LoadSpec) (LoadResult, error) {
	current, err := g.realm(spec.Realm)
	if err != nil {
		return LoadResult{}, err
	}
	var receiver vm.Value
	switch spec.Receiver {
	case "undefined":
		receiver = vm.Undefined
	case "null":
		receiver = vm.Null
	default:
		obj, err := g.object(spec.Receiver)
		if err != nil {
			return LoadResult{}, err
		}
		receiver = obj.Value()
	}

	res := LoadResult{
		Site:     id,
		Property: spec.Property,
		Receiver: spec.Receiver,
		Realm:    current.Name(),
	}
	before := site.Stats()
	v, err := site.Load(current, receiver)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Value = v.ToString()
	}
	res.Path = PathGeneric
	if site.Stats().FastCalls > before.FastCalls {
		res.Path = PathFast
	}
	return res, nil
}

func (r CheckResult) mismatches(exp *CheckExpect) []string {
	if exp == nil {
		return nil
	}
	var out []string
	if exp.Lookup != "" && exp.Lookup != r.Lookup {
		out = append(out, fmt.Sprintf("expected lookup %s, got %s", exp.Lookup, r.Lookup))
	}
	if exp.APIHolder != "" && exp.APIHolder != r.APIHolder {
		out = append(out, fmt.Sprintf("expected api holder %s, got %q", exp.APIHolder, r.APIHolder))
	}
	if exp.Compatible != nil && *exp.Compatible != r.Compatible {
		out = append(out, fmt.Sprintf("expected compatible=%v", *exp.Compatible))
	}
	if exp.CrossRealm != nil && *exp.CrossRealm != r.CrossRealm {
		out = append(out, fmt.Sprintf("expected crossRealm=%v", *exp.CrossRealm))
	}
	return out
}

func (r LoadResult) mismatches(exp *LoadExpect) []string {
	if exp == nil {
		return nil
	}
	var out []string
	if exp.Value != nil && (r.Error != "" || *exp.Value != r.Value) {
		out = append(out, fmt.Sprintf("expected value %q, got %q", *exp.Value, r.describe()))
	}
	if exp.Error != "" && !strings.Contains(r.Error, exp.Error) {
		out = append(out, fmt.Sprintf("expected error containing %q, got %q", exp.Error, r.describe()))
	}
	if exp.Error == "" && exp.Value == nil && r.Error != "" {
		out = append(out, "unexpected error: "+r.Error)
	}
	if exp.Path != "" && exp.Path != r.Path {
		out = append(out, fmt.Sprintf("expected %s path, took %s", exp.Path, r.Path))
	}
	return out
}

func (r LoadResult) describe() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Value
}
