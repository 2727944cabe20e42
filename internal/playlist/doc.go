// Package playlist expands playlist locators into one locator per entry.
//
// Only locators carrying a `list=` query parameter are treated as playlists.
// Entries are enumerated through github.com/ytget/ytdlp, which talks to the
// site directly instead of spawning the downloader, and are returned as watch
// URLs in playlist order so each becomes its own job request.
package playlist
