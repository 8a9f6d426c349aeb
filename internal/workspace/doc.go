// Package workspace discovers source files under a project root.
//
// IterFiles returns sorted, slash-separated paths relative to the root so
// that symbol ids are stable across platforms. With RespectIgnore set, a
// .ctxpackignore at the root and any .gitignore found while walking are
// applied to the paths beneath their directory.
package workspace
