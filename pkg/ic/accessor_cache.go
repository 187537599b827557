package ic

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"paserati-ic/pkg/vm"
)

// SiteState represents the different states of an accessor inline cache
type SiteState uint8

const (
	SiteUninitialized SiteState = iota
	SiteMonomorphic             // Single shape cached
	SitePolymorphic             // Multiple shapes cached
	SiteMegamorphic             // Too many shapes, always take the generic path
)

func (s SiteState) String() string {
	switch s {
	case SiteUninitialized:
		return "UNINITIALIZED"
	case SiteMonomorphic:
		return "MONOMORPHIC"
	case SitePolymorphic:
		return "POLYMORPHIC"
	case SiteMegamorphic:
		return "MEGAMORPHIC"
	default:
		return fmt.Sprintf("SiteState(%d)", uint8(s))
	}
}

// maxSiteEntries is the hard upper bound on polymorphic entries.
const maxSiteEntries = 8

// siteEntry is the cached handler for one receiver shape. Entries for lazy
// (template) getters are also keyed by the realm of the code doing the load.
type siteEntry struct {
	shape   *vm.Shape
	current *vm.Realm

	fast      bool
	handler   *vm.CallHandler
	realm     *vm.Realm
	apiHolder *vm.PlainObject
	lookup    HolderLookup

	reason string // why the generic path was chosen
}

func (e *siteEntry) matches(shape *vm.Shape, current *vm.Realm) bool {
	return e.shape == shape && (e.current == nil || e.current == current)
}

// SiteStats holds counters for one accessor site.
type SiteStats struct {
	Hits         uint64
	Misses       uint64
	FastCalls    uint64
	GenericCalls uint64
}

// AccessorSite caches, per receiver shape, how to call the getter of a named
// accessor property. Getters backed by host callbacks whose receiver
// constraint is proven for the shape are called directly; everything else
// goes through vm.Call.
//
// Handlers of accessors found on a prototype are cached by the receiver's
// shape, so callers must Reset the site after redefining an accessor pair.
type AccessorSite struct {
	name  string
	cfg   Config
	state SiteState

	mu         sync.Mutex
	entries    [maxSiteEntries]siteEntry
	entryCount int
	stats      SiteStats
}

// NewAccessorSite creates a site reading the property name. A
// MaxPolymorphicEntries outside 1..8 falls back to 4; Config.Validate rejects
// such values up front.
func NewAccessorSite(name string, cfg Config) *AccessorSite {
	if cfg.MaxPolymorphicEntries < 1 || cfg.MaxPolymorphicEntries > maxSiteEntries {
		cfg.MaxPolymorphicEntries = 4
	}
	return &AccessorSite{name: name, cfg: cfg}
}

func (s *AccessorSite) Name() string { return s.name }

func (s *AccessorSite) State() SiteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *AccessorSite) Stats() SiteStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Reset clears the cache (used when shapes change). Counters are kept.
func (s *AccessorSite) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SiteUninitialized
	s.entryCount = 0
	s.entries = [maxSiteEntries]siteEntry{}
}

func (s *AccessorSite) lookup(shape *vm.Shape, current *vm.Realm) (siteEntry, bool) {
	switch s.state {
	case SiteMonomorphic:
		if s.entries[0].matches(shape, current) {
			return s.entries[0], true
		}
	case SitePolymorphic:
		for i := 0; i < s.entryCount; i++ {
			if s.entries[i].matches(shape, current) {
				// Move hit entry to front for better cache locality
				if i > 0 {
					entry := s.entries[i]
					copy(s.entries[1:i+1], s.entries[0:i])
					s.entries[0] = entry
				}
				return s.entries[0], true
			}
		}
	}
	return siteEntry{}, false
}

func (s *AccessorSite) update(entry siteEntry) {
	switch s.state {
	case SiteUninitialized:
		s.state = SiteMonomorphic
		s.entries[0] = entry
		s.entryCount = 1
	case SiteMonomorphic, SitePolymorphic:
		for i := 0; i < s.entryCount; i++ {
			if s.entries[i].shape == entry.shape && s.entries[i].current == entry.current {
				s.entries[i] = entry
				return
			}
		}
		if s.entryCount < s.cfg.MaxPolymorphicEntries {
			s.entries[s.entryCount] = entry
			s.entryCount++
			s.state = SitePolymorphic
			return
		}
		// Too many shapes - transition to megamorphic
		s.state = SiteMegamorphic
		s.entryCount = 0
		s.entries = [maxSiteEntries]siteEntry{}
	case SiteMegamorphic:
		// Don't cache in megamorphic state
	}
}

// Load reads the accessor property from receiver as code running in realm
// current would.
func (s *AccessorSite) Load(current *vm.Realm, receiver vm.Value) (vm.Value, error) {
	if !receiver.IsObject() {
		return vm.Undefined, fmt.Errorf("TypeError: Cannot read property '%s' of %s", s.name, receiver.TypeName())
	}
	obj := receiver.AsPlainObject()
	shape := obj.Shape()

	s.mu.Lock()
	entry, hit := s.lookup(shape, current)
	if hit {
		s.stats.Hits++
	} else {
		s.stats.Misses++
		if s.state != SiteMegamorphic {
			entry = s.computeHandler(current, obj)
			s.update(entry)
			traceHandler(s, shape, &entry)
		}
	}
	if entry.fast {
		s.stats.FastCalls++
	} else {
		s.stats.GenericCalls++
	}
	s.mu.Unlock()

	if entry.fast {
		holder := receiver
		if entry.lookup == HolderFound {
			holder = entry.apiHolder.Value()
		}
		return vm.InvokeCallback(entry.handler, entry.realm, receiver, holder, nil), nil
	}
	return s.loadGeneric(current, obj)
}

func (s *AccessorSite) loadGeneric(current *vm.Realm, obj *vm.PlainObject) (vm.Value, error) {
	pair, _, ok := obj.LookupAccessor(s.name)
	if !ok {
		v, _ := obj.Get(s.name)
		return v, nil
	}
	if pair.Getter.IsUndefined() {
		return vm.Undefined, nil
	}
	return vm.Call(current, pair.Getter, obj.Value(), nil)
}

func generic(shape *vm.Shape, reason string) siteEntry {
	return siteEntry{shape: shape, reason: reason}
}

// computeHandler decides between the fast and the generic path for the
// receiver's shape.
func (s *AccessorSite) computeHandler(current *vm.Realm, receiver *vm.PlainObject) siteEntry {
	shape := receiver.Shape()
	if !s.cfg.EnableAPICalls {
		return generic(shape, "API call optimization disabled")
	}
	pair, holder, ok := receiver.LookupAccessor(s.name)
	if !ok {
		return generic(shape, "not an accessor property")
	}
	co := NewCallOptimization(pair.Getter)
	if !co.IsSimpleAPICall() {
		return generic(shape, fmt.Sprintf("getter is %s", co.Kind()))
	}
	if !co.AcceptAnyReceiver() && shape.IsGlobalProxyShape() {
		return generic(shape, "callback needs access checks on global proxy receivers")
	}
	apiHolder, lookup := co.LookupHolderOfExpectedType(shape)
	if !co.IsCompatibleReceiver(apiHolder, holder, lookup) {
		return generic(shape, fmt.Sprintf("incompatible receiver (holder %s)", lookup))
	}
	var lazyIn *vm.Realm
	if pair.Getter.IsFunctionTemplate() {
		lazyIn = current
		if co.IsCrossRealmLazyAccessorPair(current, holder.Shape()) {
			entry := generic(shape, "lazy accessor pair installed in another realm")
			entry.current = current
			return entry
		}
	}
	handler, _ := co.APICallInfo()
	return siteEntry{
		shape:     shape,
		current:   lazyIn,
		fast:      true,
		handler:   handler,
		realm:     co.AccessorRealm(holder.Shape()),
		apiHolder: apiHolder,
		lookup:    lookup,
	}
}

// SiteTable holds the accessor sites of one code unit, indexed by site id.
type SiteTable struct {
	cfg   Config
	mu    sync.Mutex
	sites map[int]*AccessorSite
}

func NewSiteTable(cfg Config) *SiteTable {
	return &SiteTable{cfg: cfg, sites: make(map[int]*AccessorSite)}
}

// GetOrCreate returns the site for id, creating one reading name if needed.
func (t *SiteTable) GetOrCreate(id int, name string) *AccessorSite {
	t.mu.Lock()
	defer t.mu.Unlock()
	if site := t.sites[id]; site != nil {
		return site
	}
	site := NewAccessorSite(name, t.cfg)
	t.sites[id] = site
	return site
}

// Reset clears every site in the table.
func (t *SiteTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, site := range t.sites {
		site.Reset()
	}
}

// Totals sums the counters of every site.
func (t *SiteTable) Totals() SiteStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total SiteStats
	for _, site := range t.sites {
		st := site.Stats()
		total.Hits += st.Hits
		total.Misses += st.Misses
		total.FastCalls += st.FastCalls
		total.GenericCalls += st.GenericCalls
	}
	return total
}

// PrintStats writes per-site cache information.
func (t *SiteTable) PrintStats(w io.Writer) {
	t.mu.Lock()
	ids := make([]int, 0, len(t.sites))
	for id := range t.sites {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Ints(ids)

	total := t.Totals()
	fmt.Fprintf(w, "API IC Stats: Hits: %d, Misses: %d, Fast: %d, Generic: %d\n",
		total.Hits, total.Misses, total.FastCalls, total.GenericCalls)
	for _, id := range ids {
		t.mu.Lock()
		site := t.sites[id]
		t.mu.Unlock()
		st := site.Stats()
		fmt.Fprintf(w, "  site %d %q: %s (hits: %d, misses: %d)\n", id, site.Name(), site.State(), st.Hits, st.Misses)
	}
}
