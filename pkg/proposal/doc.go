// Package proposal parses and validates replacement graphs returned by a
// reasoning backend.
//
// Parsing runs in four steps: unwrap a markdown fence, decode JSON, check the
// response shape and check graph semantics. The first failure is reported as
// a typed error from pkg/domain and nothing partial is returned.
package proposal
