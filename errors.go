package kestrel

import "fmt"

// StaleHandleError reports an operation targeting a destroyed entity.
type StaleHandleError struct{ Handle string }

func NewStaleHandle(handle string) error { return &StaleHandleError{Handle: handle} }
func (e *StaleHandleError) Error() string { return fmt.Sprintf("stale handle: %s", e.Handle) }

// HierarchyCycleError reports a rejected SetParent call that would have
// introduced a cycle into the entity forest.
type HierarchyCycleError struct{ Reason string }

func NewHierarchyCycle(reason string) error { return &HierarchyCycleError{Reason: reason} }
func (e *HierarchyCycleError) Error() string { return fmt.Sprintf("hierarchy cycle: %s", e.Reason) }

// CapabilityError reports a plugin invoking an API without the matching
// declared capability.
type CapabilityError struct {
	Plugin     string
	Capability string
}

func NewCapabilityError(plugin, capability string) error {
	return &CapabilityError{Plugin: plugin, Capability: capability}
}
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("plugin %q missing capability %q", e.Plugin, e.Capability)
}

// RateLimitedError reports a quota (asset readback, event rate) being
// exceeded.
type RateLimitedError struct{ Resource string }

func NewRateLimited(resource string) error { return &RateLimitedError{Resource: resource} }
func (e *RateLimitedError) Error() string   { return fmt.Sprintf("rate limited: %s", e.Resource) }

// ScriptError is a recoverable per-instance script failure: the instance is
// marked errored and skipped until reload/reset, but the rest of the
// runtime continues.
type ScriptError struct {
	Path  string
	Line  int
	Col   int
	Stack string
	Cause error
}

func NewScriptError(path string, line, col int, stack string, cause error) error {
	return &ScriptError{Path: path, Line: line, Col: col, Stack: stack, Cause: cause}
}
func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Col, e.Cause)
}
func (e *ScriptError) Unwrap() error { return e.Cause }

// PluginPanicError reports a recovered panic from a full-trust plugin
// callback; the plugin transitions to Failed.
type PluginPanicError struct {
	Plugin   string
	Callback string
	Recovered any
}

func NewPluginPanic(plugin, callback string, recovered any) error {
	return &PluginPanicError{Plugin: plugin, Callback: callback, Recovered: recovered}
}
func (e *PluginPanicError) Error() string {
	return fmt.Sprintf("plugin %q panicked in %s: %v", e.Plugin, e.Callback, e.Recovered)
}

// AssetLoadError is recoverable: a default/missing asset is substituted and
// the failure is logged once.
type AssetLoadError struct {
	Key    string
	Reason string
}

func NewAssetLoad(key, reason string) error { return &AssetLoadError{Key: key, Reason: reason} }
func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("asset load failed for %q: %s", e.Key, e.Reason)
}

// SurfaceLostError is recoverable in the next frame after a swapchain
// reconfigure; it must never cause a panic.
type SurfaceLostError struct{ Reason string }

func NewSurfaceLost(reason string) error { return &SurfaceLostError{Reason: reason} }
func (e *SurfaceLostError) Error() string { return fmt.Sprintf("surface lost: %s", e.Reason) }

// FatalInitError is unrecoverable: it propagates all the way to main, which
// maps it to a nonzero process exit code.
type FatalInitError struct{ Reason string }

func NewFatalInit(reason string) error { return &FatalInitError{Reason: reason} }
func (e *FatalInitError) Error() string { return fmt.Sprintf("fatal init error: %s", e.Reason) }

// BudgetExceededError reports a timing or quota overrun; the operation that
// triggered it is aborted and the breach is surfaced to telemetry.
type BudgetExceededError struct {
	Budget string
	Got    float64
	Limit  float64
}

func NewBudgetExceeded(budget string, got, limit float64) error {
	return &BudgetExceededError{Budget: budget, Got: got, Limit: limit}
}
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget %q exceeded: %.4f > %.4f", e.Budget, e.Got, e.Limit)
}
