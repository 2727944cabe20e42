// Package deps checks that the external tools swc drives are installed.
package deps
