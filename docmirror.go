// Package docmirror incrementally mirrors a set of remote documentation
// pages, discovered through a sitemap, plus a changelog file into a local
// directory. A JSON manifest records per-file content hashes and timestamps
// so that repeated runs only rewrite files whose content changed.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., http/, fs/, goldmark/).
package docmirror
