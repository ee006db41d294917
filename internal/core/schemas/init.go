// Package schemas registers the built-in typed schemas and their
// normalizers with the core registry. Import it for side effects.
package schemas

// Each schema file uses init() to register its schemas.
