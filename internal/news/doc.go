// Package news collects crypto headlines with a headless browser and
// caches them for prompt rendering. The collector is optional; when
// disabled the prompt's news section degrades to a placeholder.
package news
