// Package imports resolves the imports of an expression into the normal
// forms of the expressions they denote.
//
// A Resolver reads local files, environment variables, and remote URLs
// through pluggable backends, chains relative imports to the document that
// contains them, and enforces the import sandbox (Policy), the rule that
// remote documents may not reach local state, and CORS for cross-origin
// remote imports.
//
// Key design constraints:
//   - The import stack and already-resolved set belong to one Resolve call
//   - The semantic cache and single-flight table are shared by all calls
//   - A pinned hash is fetched at most once at a time per process
//   - Cached bytes are re-hashed on read; corrupt entries are ignored
//   - Fallback (l ? r) recovers any failure of l except cancellation and
//     hash or security failures raised beneath another import
//
// Resolved code imports are type-checked and normalized before they are
// substituted, so a resolved expression never contains an Import node.
package imports
