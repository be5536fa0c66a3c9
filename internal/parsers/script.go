package parsers

import (
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

// ScriptRuntime evaluates a target's custom extractor script. Each call
// gets a fresh goja.Runtime with no network or filesystem bindings, so a
// script can transform bytes into releases but cannot perform I/O of
// its own, preserving the "parsers perform no I/O" invariant.
type ScriptRuntime struct {
	timeout time.Duration
}

// NewScriptRuntime builds a ScriptRuntime that aborts a script after
// timeout (default 2s) via goja's interrupt mechanism.
func NewScriptRuntime(timeout time.Duration) *ScriptRuntime {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ScriptRuntime{timeout: timeout}
}

// Run evaluates script against body, expecting the script to define a
// global function `extract(bodyString)` returning a JSON array matching
// the RawRelease wire shape (see wireRelease in json.go).
func (s *ScriptRuntime) Run(source, script string, body []byte) (result []schema.RawRelease, err error) {
	rt := goja.New()

	timer := time.AfterFunc(s.timeout, func() {
		rt.Interrupt("script extraction timed out")
	})
	defer timer.Stop()

	defer func() {
		if rec := recover(); rec != nil {
			err = errs.New("parsers", errs.KindParseError,
				errs.WithMessage(fmt.Sprintf("script panic: %v", rec)))
		}
	}()

	if _, runErr := rt.RunString(script); runErr != nil {
		return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(runErr),
			errs.WithMessage("evaluate extractor script"))
	}

	extractVal := rt.Get("extract")
	if goja.IsUndefined(extractVal) || goja.IsNull(extractVal) {
		return nil, errs.New("parsers", errs.KindParseError,
			errs.WithMessage("script does not define extract(body)"))
	}
	extract, ok := goja.AssertFunction(extractVal)
	if !ok {
		return nil, errs.New("parsers", errs.KindParseError,
			errs.WithMessage("extract is not callable"))
	}

	ret, callErr := extract(goja.Undefined(), rt.ToValue(string(body)))
	if callErr != nil {
		return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(callErr),
			errs.WithMessage("run extract(body)"))
	}

	jsonText, stringifyErr := stringifyValue(rt, ret)
	if stringifyErr != nil {
		return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(stringifyErr),
			errs.WithMessage("stringify extract() return value"))
	}

	releases, parseErr := ParseAPIFeed(source, []byte(jsonText))
	if parseErr != nil {
		return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(parseErr),
			errs.WithMessage("decode extract() return value"))
	}
	return releases, nil
}

// stringifyValue returns ret's JSON encoding: as-is if the script already
// returned a string, otherwise via the runtime's JSON.stringify so
// scripts may return a plain array/object of release records.
func stringifyValue(rt *goja.Runtime, ret goja.Value) (string, error) {
	if s, ok := ret.Export().(string); ok {
		return s, nil
	}
	jsonObj := rt.Get("JSON").ToObject(rt)
	stringify, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return "", fmt.Errorf("JSON.stringify unavailable")
	}
	encoded, err := stringify(jsonObj, ret)
	if err != nil {
		return "", err
	}
	return encoded.String(), nil
}
