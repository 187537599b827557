package ic

import (
	"fmt"
	"sync/atomic"

	"github.com/dlclark/regexp2"
	"github.com/tliron/commonlog"

	"paserati-ic/pkg/vm"
)

var log = commonlog.GetLogger("paserati.ic")

// traceFilter holds the compiled filter; nil traces every target.
var traceFilter atomic.Pointer[regexp2.Regexp]

func compileTraceFilter(pattern string) (*regexp2.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("bad trace filter %q: %w", pattern, err)
	}
	return re, nil
}

// SetTraceFilter restricts debug tracing to targets whose name matches
// pattern. An empty pattern traces everything.
func SetTraceFilter(pattern string) error {
	re, err := compileTraceFilter(pattern)
	if err != nil {
		return err
	}
	traceFilter.Store(re)
	return nil
}

func targetName(target vm.Value) string {
	switch target.Type() {
	case vm.TypeFunction, vm.TypeNativeFunction:
		return target.AsJSFunction().FunctionName()
	case vm.TypeFunctionTemplate:
		return target.AsFunctionTemplate().Name
	}
	return target.TypeName()
}

func tracing(name string) bool {
	if !log.AllowLevel(commonlog.Debug) {
		return false
	}
	re := traceFilter.Load()
	if re == nil {
		return true
	}
	ok, err := re.MatchString(name)
	return err == nil && ok
}

func traceClassification(target vm.Value, co *CallOptimization) {
	name := targetName(target)
	if !tracing(name) {
		return
	}
	log.Debugf("classified %s (%s) as %s", name, target.TypeName(), co)
}

func traceHandler(site *AccessorSite, shape *vm.Shape, entry *siteEntry) {
	if !tracing(site.name) {
		return
	}
	if entry.fast {
		log.Debugf("site %q: fast API handler for %s receiver (holder %s)", site.name, shape.Family(), entry.lookup)
		return
	}
	log.Debugf("site %q: generic handler for %s receiver: %s", site.name, shape.Family(), entry.reason)
}
