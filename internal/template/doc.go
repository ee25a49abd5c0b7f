// Package template renders versioned JSON templates into canonical JSON.
//
// A template body is JSON text containing {{KEY}} placeholders. Versions are
// immutable once registered: the registry keys each version by the SHA-256
// of its body and refuses to change it. Compile binds a context into a
// version and emits the result through ir.MarshalCanonical, so identical
// inputs always produce identical bytes.
//
// Protected sections let a version declare text that later versions must keep;
// AssertSafeActivation enforces this before a new version replaces an old one.
package template
