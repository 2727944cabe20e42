// Package textutil turns downloader-reported titles into safe artifact names.
//
// Names are NFC normalized with golang.org/x/text so visually identical titles
// map to the same file, unsafe path characters are replaced, and lengths are
// capped on a rune boundary. Label title-cases identifiers for CLI output.
package textutil
