/*
Package page translates the registry and the filesystem result trees
into the static JSON artefacts consumed by the benchmark page template,
and stages/promotes the private and public page trees.

Stable scene ids come from the scene cache (scenecache.go): scenes are
enumerated in renderer order and assigned 0..N-1 once, so result
records can reference a scene by id across runs. private.go stages a
per-workspace preview page; public.go promotes one preview into the
shared public page, replacing any prior technique results atomically.
*/
package page
