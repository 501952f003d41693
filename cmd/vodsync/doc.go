// Command vodsync keeps local video folders in sync with YouTube channels
// and playlists using yt-dlp.
package main
