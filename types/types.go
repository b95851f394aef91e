package types

// Format describes a single media rendition offered by the player response.
// Progressive formats carry muxed audio+video, adaptive formats carry a
// single track. When URL is empty the format requires signature deciphering
// and SignatureCipher holds the raw cipher query.
type Format struct {
	Itag            int
	URL             string
	Quality         string
	MimeType        string
	Bitrate         int
	Size            int64
	SignatureCipher string
}

// VideoInfo describes video metadata together with all discovered formats.
// FilePath is set by Download to the path the media was saved to.
type VideoInfo struct {
	ID          string
	Title       string
	Description string
	Duration    int
	Uploader    string
	UploadDate  string
	ViewCount   int64
	Formats     []Format
	FilePath    string
}

// PlaylistInfo describes playlist metadata.
type PlaylistInfo struct {
	ID          string
	Title       string
	Description string
	Author      string
	VideoCount  int
	ViewCount   int64
}
