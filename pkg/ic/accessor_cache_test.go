package ic

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"paserati-ic/pkg/vm"
)

func testConfig() Config {
	return Config{EnableAPICalls: true, MaxPolymorphicEntries: 4}
}

func instancePrototype(t *vm.FunctionTemplate, realm *vm.Realm) *vm.PlainObject {
	return t.GetFunction(realm).AsNativeFunction().InstancePrototype().AsPlainObject()
}

// recordingGetter returns a template whose callback stores the last
// CallbackInfo it saw.
func recordingGetter(name string, sig *vm.FunctionTemplate, last **vm.CallbackInfo) *vm.FunctionTemplate {
	tmpl := vm.NewFunctionTemplate(name, func(info *vm.CallbackInfo) vm.Value {
		*last = info
		return vm.NewString(name)
	})
	tmpl.SetSignature(sig)
	return tmpl
}

func TestAccessorSiteFastPath(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("nodeName", w.node, &last)
	instancePrototype(w.node, w.main).DefineAccessorProperty("nodeName", getter.GetFunction(w.main), vm.Undefined)

	site := NewAccessorSite("nodeName", testConfig())
	receiver := w.node.NewInstance(w.main)

	for i := 0; i < 3; i++ {
		v, err := site.Load(w.main, receiver.Value())
		if err != nil {
			t.Fatalf("load %d: unexpected error: %v", i, err)
		}
		if v.ToString() != "nodeName" {
			t.Errorf("load %d: expected 'nodeName', got %s", i, v.Inspect())
		}
	}
	if site.State() != SiteMonomorphic {
		t.Errorf("expected MONOMORPHIC, got %s", site.State())
	}
	st := site.Stats()
	if st.Misses != 1 || st.Hits != 2 || st.FastCalls != 3 || st.GenericCalls != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if last == nil {
		t.Fatalf("callback did not run")
	}
	if !last.This.Is(receiver.Value()) || !last.Holder.Is(receiver.Value()) {
		t.Errorf("expected receiver as both this and holder")
	}
	if last.Realm != w.main {
		t.Errorf("expected callback to run in the function's realm")
	}
}

func TestAccessorSiteGlobalProxyReceiver(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("location", w.window, &last)
	w.main.GlobalObject.DefineAccessorProperty("location", getter.GetFunction(w.main), vm.Undefined)

	site := NewAccessorSite("location", testConfig())
	proxy := w.main.GlobalProxy.Value()
	v, err := site.Load(w.main, proxy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ToString() != "location" {
		t.Errorf("expected 'location', got %s", v.Inspect())
	}
	if site.Stats().FastCalls != 1 {
		t.Errorf("expected the proxy receiver to take the fast path, stats %+v", site.Stats())
	}
	if !last.This.Is(proxy) {
		t.Errorf("expected this to stay the global proxy")
	}
	if !last.Holder.Is(w.main.GlobalObject.Value()) {
		t.Errorf("expected holder to be the global object")
	}
}

func TestAccessorSiteGlobalProxyNeedsAccessCheck(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("location", w.window, &last)
	getter.SetAcceptAnyReceiver(false)
	w.main.GlobalObject.DefineAccessorProperty("location", getter.GetFunction(w.main), vm.Undefined)

	site := NewAccessorSite("location", testConfig())
	if _, err := site.Load(w.main, w.main.GlobalProxy.Value()); err != nil {
		t.Fatalf("same-realm proxy must still be callable: %v", err)
	}
	st := site.Stats()
	if st.FastCalls != 0 || st.GenericCalls != 1 {
		t.Errorf("expected generic call, stats %+v", st)
	}
}

func TestAccessorSiteIncompatibleReceiver(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("nodeName", w.node, &last)
	proto := w.main.NewObject()
	proto.DefineAccessorProperty("nodeName", getter.GetFunction(w.main), vm.Undefined)

	site := NewAccessorSite("nodeName", testConfig())
	receiver := w.main.NewObjectWithPrototype(proto.Value())
	_, err := site.Load(w.main, receiver.Value())
	if err == nil {
		t.Fatalf("expected Illegal invocation error")
	}
	if !strings.Contains(err.Error(), "Illegal invocation") {
		t.Errorf("unexpected error: %v", err)
	}
	if last != nil {
		t.Errorf("callback must not run for an incompatible receiver")
	}
	if site.Stats().GenericCalls != 1 {
		t.Errorf("expected generic call, stats %+v", site.Stats())
	}
}

func TestAccessorSiteCrossRealmLazyPair(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("title", nil, &last)
	holder := w.foreign.NewObject()
	holder.DefineAccessorProperty("title", getter.Value(), vm.Undefined)

	site := NewAccessorSite("title", testConfig())
	if _, err := site.Load(w.main, holder.Value()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if site.Stats().GenericCalls != 1 {
		t.Errorf("expected generic path for a foreign lazy pair, stats %+v", site.Stats())
	}

	// Same pair, seen from its own realm, is fast.
	local := NewAccessorSite("title", testConfig())
	if _, err := local.Load(w.foreign, holder.Value()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if local.Stats().FastCalls != 1 {
		t.Errorf("expected fast path in the holder's realm, stats %+v", local.Stats())
	}
	if last.Realm != w.foreign {
		t.Errorf("expected callback to run in the holder's realm")
	}
}

func TestAccessorSiteLazyPairWarmedInHolderRealm(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("title", nil, &last)
	holder := w.foreign.NewObject()
	holder.DefineAccessorProperty("title", getter.Value(), vm.Undefined)

	site := NewAccessorSite("title", testConfig())
	if _, err := site.Load(w.foreign, holder.Value()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if site.Stats().FastCalls != 1 || last.Realm != w.foreign {
		t.Fatalf("expected a fast call in the holder's realm, stats %+v", site.Stats())
	}

	// The same shape loaded from another realm must not reuse the fast entry.
	before := site.Stats()
	if _, err := site.Load(w.main, holder.Value()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := site.Stats()
	if st.GenericCalls != before.GenericCalls+1 || st.FastCalls != before.FastCalls {
		t.Errorf("expected generic call from main, stats %+v", st)
	}
	if last.Realm != w.main {
		t.Errorf("expected callback to run in main, got %s", last.Realm.Name())
	}

	// Both realms now hit their own entry.
	if _, err := site.Load(w.foreign, holder.Value()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := site.Load(w.main, holder.Value()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st = site.Stats()
	if st.Hits != 2 || st.Misses != 2 || st.FastCalls != 2 || st.GenericCalls != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if site.State() != SitePolymorphic {
		t.Errorf("expected POLYMORPHIC, got %s", site.State())
	}
}

func TestNewAccessorSiteOutOfRangeEntries(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("nodeName", nil, &last)
	instancePrototype(w.node, w.main).DefineAccessorProperty("nodeName", getter.Value(), vm.Undefined)

	cfg := testConfig()
	cfg.MaxPolymorphicEntries = 0
	if cfg.Validate() == nil {
		t.Fatalf("expected Validate to reject 0 entries")
	}
	site := NewAccessorSite("nodeName", cfg)
	for i := 0; i < 4; i++ {
		obj := w.node.NewInstance(w.main)
		for j := 0; j < i; j++ {
			obj.SetOwn(fmt.Sprintf("p%d", j), vm.True)
		}
		if _, err := site.Load(w.main, obj.Value()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if site.State() != SitePolymorphic {
		t.Errorf("expected four shapes to fit, got %s", site.State())
	}
}

func TestAccessorSiteDisabled(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("nodeName", w.node, &last)
	instancePrototype(w.node, w.main).DefineAccessorProperty("nodeName", getter.GetFunction(w.main), vm.Undefined)

	cfg := testConfig()
	cfg.EnableAPICalls = false
	site := NewAccessorSite("nodeName", cfg)
	v, err := site.Load(w.main, w.node.NewInstance(w.main).Value())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ToString() != "nodeName" {
		t.Errorf("expected 'nodeName', got %s", v.Inspect())
	}
	if site.Stats().FastCalls != 0 {
		t.Errorf("expected no fast calls when disabled")
	}
}

func TestAccessorSiteDataAndMissingProperties(t *testing.T) {
	w := newTestWorld()
	obj := w.main.NewObject()
	obj.SetOwn("id", vm.NewString("a1"))

	site := NewAccessorSite("id", testConfig())
	v, err := site.Load(w.main, obj.Value())
	if err != nil || v.ToString() != "a1" {
		t.Errorf("expected data property value, got %s (%v)", v.Inspect(), err)
	}

	missing := NewAccessorSite("nope", testConfig())
	v, err = missing.Load(w.main, obj.Value())
	if err != nil || !v.IsUndefined() {
		t.Errorf("expected undefined for a missing property, got %s (%v)", v.Inspect(), err)
	}

	if _, err := site.Load(w.main, vm.Undefined); err == nil {
		t.Errorf("expected error when reading from undefined")
	}
}

func TestAccessorSitePolymorphicAndMegamorphic(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("nodeName", w.node, &last)
	instancePrototype(w.node, w.main).DefineAccessorProperty("nodeName", getter.GetFunction(w.main), vm.Undefined)

	cfg := testConfig()
	cfg.MaxPolymorphicEntries = 2
	site := NewAccessorSite("nodeName", cfg)

	node := w.node.NewInstance(w.main)
	element := w.element.NewInstance(w.main)
	extended := w.node.NewInstance(w.main)
	extended.SetOwn("x", vm.True)

	load := func(obj *vm.PlainObject) {
		t.Helper()
		if _, err := site.Load(w.main, obj.Value()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	load(node)
	load(element)
	if site.State() != SitePolymorphic {
		t.Errorf("expected POLYMORPHIC, got %s", site.State())
	}
	load(node)
	if site.Stats().Hits != 1 {
		t.Errorf("expected a polymorphic hit, stats %+v", site.Stats())
	}
	load(extended)
	if site.State() != SiteMegamorphic {
		t.Errorf("expected MEGAMORPHIC, got %s", site.State())
	}

	// Megamorphic sites still produce correct results through the generic path.
	before := site.Stats().GenericCalls
	load(node)
	if site.Stats().GenericCalls != before+1 {
		t.Errorf("expected generic call in megamorphic state")
	}

	site.Reset()
	if site.State() != SiteUninitialized {
		t.Errorf("expected UNINITIALIZED after reset, got %s", site.State())
	}
	load(node)
	if site.State() != SiteMonomorphic {
		t.Errorf("expected MONOMORPHIC after reset, got %s", site.State())
	}
}

func TestSiteTable(t *testing.T) {
	w := newTestWorld()
	var last *vm.CallbackInfo
	getter := recordingGetter("nodeName", nil, &last)
	instancePrototype(w.node, w.main).DefineAccessorProperty("nodeName", getter.Value(), vm.Undefined)

	table := NewSiteTable(testConfig())
	a := table.GetOrCreate(1, "nodeName")
	if table.GetOrCreate(1, "nodeName") != a {
		t.Fatalf("expected the same site for the same id")
	}
	b := table.GetOrCreate(2, "nodeName")

	receiver := w.node.NewInstance(w.main).Value()
	for _, site := range []*AccessorSite{a, a, b} {
		if _, err := site.Load(w.main, receiver); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	total := table.Totals()
	if total.Hits != 1 || total.Misses != 2 || total.FastCalls != 3 {
		t.Errorf("unexpected totals: %+v", total)
	}

	var buf bytes.Buffer
	table.PrintStats(&buf)
	out := buf.String()
	if !strings.Contains(out, "Hits: 1, Misses: 2") {
		t.Errorf("missing totals in output: %q", out)
	}
	if !strings.Contains(out, `site 2 "nodeName": MONOMORPHIC`) {
		t.Errorf("missing site line in output: %q", out)
	}

	table.Reset()
	if a.State() != SiteUninitialized || b.State() != SiteUninitialized {
		t.Errorf("expected all sites reset")
	}
}
