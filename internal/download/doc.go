// Package download drives the external downloader (yt-dlp compatible).
//
// Stage builds the argument list from a job request, runs it through a
// procrun.Runner inside the job workspace, and feeds every output line to an
// OutputParser. The parser is the only code that understands the tool's text
// output; Stage only consumes the resulting Report. A run that exits zero but
// leaves no media file in the workspace fails with DownloadIncomplete.
package download
